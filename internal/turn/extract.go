package turn

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/tesoro-app/tesoro/pkg/provider/llm"
)

// fenceRe matches markdown code fences, with or without a json info string.
var fenceRe = regexp.MustCompile("(?i)```(?:json)?")

// ExtractJSONObject locates and parses the JSON object embedded in raw LLM
// output. Code fences are stripped first, then the substring from the first
// '{' to the last '}' (inclusive) is parsed. This is a deliberate lenient
// heuristic, not a grammar: LLM output is inherently unstructured and any
// commentary around the object is discarded.
//
// Returns ErrMalformedResponse (wrapped) when no '{'/'}' pair exists, the
// pair is inverted, or the substring is not valid JSON.
func ExtractJSONObject(raw string) (map[string]any, error) {
	cleaned := strings.TrimSpace(fenceRe.ReplaceAllString(raw, ""))

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start == -1 || end == -1 || end < start {
		return nil, ErrMalformedResponse
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return obj, nil
}

// llmTurnOutput is the advisory schema the prompt asks for. Missing keys
// simply stay at their zero values; the orchestrator applies defaults.
type llmTurnOutput struct {
	CorrectedSentence      string       `json:"corrected_sentence"`
	NativeTranslation      string       `json:"native_translation"`
	UsedCardIDs            []string     `json:"used_card_ids"`
	ASRFixes               []ASRFix     `json:"asr_fixes"`
	BriefExplanationNative string       `json:"brief_explanation_native"`
	Notes                  string       `json:"notes"`
	AudioChunks            []AudioChunk `json:"audio_chunks"`

	// usedCardIDsPresent distinguishes "LLM said no cards" from "LLM omitted
	// the field"; only the latter falls back to the local detector.
	usedCardIDsPresent bool
}

// parseTurnOutput extracts the embedded JSON object from raw and decodes the
// turn schema out of it, tolerating unknown and missing fields.
func parseTurnOutput(raw string) (*llmTurnOutput, error) {
	obj, err := ExtractJSONObject(raw)
	if err != nil {
		return nil, err
	}

	// Re-encode the already-validated object; decoding straight into the
	// struct keeps field handling in one place.
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	var out llmTurnOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	_, out.usedCardIDsPresent = obj["used_card_ids"]
	return &out, nil
}

// parseCheckOutput decodes the answer-equivalence schema from raw output.
type llmCheckOutput struct {
	IsCorrect       bool   `json:"is_correct"`
	Feedback        string `json:"feedback"`
	CorrectedAnswer string `json:"corrected_answer"`
}

func parseCheckOutput(raw string) (*llmCheckOutput, error) {
	obj, err := ExtractJSONObject(raw)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	var out llmCheckOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return &out, nil
}

// textStrategy attempts to pull usable raw text out of a completion
// response. Strategies run in a fixed order; the first one that reports ok
// wins.
type textStrategy func(resp *llm.CompletionResponse) (string, bool)

// textStrategies is the ordered list of extraction attempts. SDK response
// shapes vary between backends, so each strategy guards its own assumptions.
var textStrategies = []textStrategy{
	func(resp *llm.CompletionResponse) (string, bool) {
		s := strings.TrimSpace(resp.Content)
		return s, s != ""
	},
}

// responseText resolves the raw text of a completion response via the
// strategy list.
func responseText(resp *llm.CompletionResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("%w: nil response", ErrMalformedResponse)
	}
	for _, try := range textStrategies {
		if s, ok := try(resp); ok {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: empty response text", ErrMalformedResponse)
}
