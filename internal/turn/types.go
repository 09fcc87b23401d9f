// Package turn implements the transcript-to-structured-response pipeline:
// prompt construction, the remote LLM call, lenient JSON extraction, card
// usage cross-checking, and the deterministic mock fallback that keeps a
// turn usable when any of those steps fail.
package turn

import (
	"errors"

	"github.com/tesoro-app/tesoro/internal/cards"
)

// ErrEmptyTranscript is returned by ProcessTurn when the input transcript is
// blank. It is the only error a turn surfaces past validation; the HTTP
// layer maps it to a 400.
var ErrEmptyTranscript = errors.New("turn: transcript required")

// ErrMalformedResponse indicates the LLM output did not contain a parseable
// JSON object. It never reaches the HTTP boundary; the orchestrator recovers
// with the mock result.
var ErrMalformedResponse = errors.New("turn: no JSON object found in response")

// LanguageSpec identifies one side of the language pair for a session.
type LanguageSpec struct {
	// Code is an ISO-639-1-like code, e.g. "es".
	Code string `json:"code"`

	// Name is the human-readable language name, e.g. "Spanish".
	Name string `json:"name"`
}

// ASRAlternative carries the recogniser's alternative hypotheses for a
// single token of the transcript.
type ASRAlternative struct {
	Token       string    `json:"token"`
	Alts        []string  `json:"alts"`
	Confidences []float64 `json:"confidences"`
}

// ASRFix is a single suggested correction of a misheard token.
type ASRFix struct {
	Original   string  `json:"original"`
	Guess      string  `json:"guess"`
	Confidence float64 `json:"confidence"`
}

// Audio chunk purposes. Consumers rely on positional order (corrected
// sentence first) as a fallback when the field is absent.
const (
	PurposeCorrectedSentence = "corrected_sentence"
	PurposeNativeTranslation = "native_translation"
)

// AudioChunk is one utterance to synthesize, tagged with a locale for voice
// selection.
type AudioChunk struct {
	Text    string `json:"text"`
	Lang    string `json:"lang"`
	Purpose string `json:"purpose"`
}

// TurnInput is everything one turn needs. Constructed per HTTP request,
// never persisted.
type TurnInput struct {
	SessionID       string           `json:"session_id"`
	Transcript      string           `json:"transcript"`
	ActiveCards     []cards.Card     `json:"active_cards"`
	Fluent          LanguageSpec     `json:"fluent"`
	Learning        LanguageSpec     `json:"learning"`
	ASRAlternatives []ASRAlternative `json:"asr_alternatives,omitempty"`
}

// TurnResult is the structured outcome of one turn. UsedCardIDs is always a
// subset of the input's active card ids.
type TurnResult struct {
	TurnID                 string       `json:"turn_id"`
	CorrectedSentence      string       `json:"corrected_sentence"`
	NativeTranslation      string       `json:"native_translation"`
	UsedCardIDs            []string     `json:"used_card_ids"`
	ASRFixes               []ASRFix     `json:"asr_fixes"`
	BriefExplanationNative string       `json:"brief_explanation_native"`
	Notes                  string       `json:"notes"`
	AudioChunks            []AudioChunk `json:"audio_chunks"`
}

// CheckInput asks whether a learner's answer means the same as the expected
// one.
type CheckInput struct {
	UserAnswer    string       `json:"user_answer"`
	CorrectAnswer string       `json:"correct_answer"`
	PromptContext string       `json:"prompt_context,omitempty"`
	Fluent        LanguageSpec `json:"fluent"`
	Learning      LanguageSpec `json:"learning"`
}

// CheckResult is the equivalence judgement for a CheckInput.
type CheckResult struct {
	IsCorrect       bool   `json:"is_correct"`
	Feedback        string `json:"feedback"`
	CorrectedAnswer string `json:"corrected_answer"`
}
