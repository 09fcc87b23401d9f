package turn

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tesoro-app/tesoro/internal/cards"
	"github.com/tesoro-app/tesoro/internal/textnorm"
	"github.com/tesoro-app/tesoro/pkg/provider/llm"
)

const (
	defaultTemperature = 0.15
	defaultTimeout     = 30 * time.Second
	defaultMaxTokens   = 600
)

// Config configures an Orchestrator.
type Config struct {
	// Provider is the LLM backend. When nil the orchestrator runs in mock
	// mode: every turn produces a deterministic local result and no network
	// call is ever made.
	Provider llm.Provider

	// Detector cross-checks card usage and supplies used_card_ids in mock
	// mode or when the LLM omits the field. Defaults to cards.NewDetector().
	Detector *cards.Detector

	// Temperature for LLM sampling. Defaults to 0.15 for near-deterministic
	// output.
	Temperature float64

	// Timeout bounds each LLM call. Defaults to 30s.
	Timeout time.Duration

	// Logger receives warnings when a turn degrades to the mock fallback.
	// Defaults to slog.Default().
	Logger *slog.Logger
}

// Orchestrator runs the turn pipeline. Safe for concurrent use; it holds no
// per-turn state.
type Orchestrator struct {
	provider    llm.Provider
	detector    *cards.Detector
	temperature float64
	timeout     time.Duration
	log         *slog.Logger
}

// New creates an Orchestrator from cfg, filling in defaults for unset
// fields.
func New(cfg Config) *Orchestrator {
	o := &Orchestrator{
		provider:    cfg.Provider,
		detector:    cfg.Detector,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		log:         cfg.Logger,
	}
	if o.detector == nil {
		o.detector = cards.NewDetector()
	}
	if o.temperature == 0 {
		o.temperature = defaultTemperature
	}
	if o.timeout == 0 {
		o.timeout = defaultTimeout
	}
	if o.log == nil {
		o.log = slog.Default()
	}
	return o
}

// MockMode reports whether the orchestrator has no LLM backend configured.
func (o *Orchestrator) MockMode() bool { return o.provider == nil }

// ProcessTurn runs one full turn. Past transcript validation it never
// returns an error: any LLM or extraction failure degrades to the
// deterministic mock result so the caller always gets a usable turn.
func (o *Orchestrator) ProcessTurn(ctx context.Context, in TurnInput) (*TurnResult, error) {
	in.Transcript = strings.TrimSpace(in.Transcript)
	if in.Transcript == "" {
		return nil, ErrEmptyTranscript
	}

	turnID := "turn_" + uuid.NewString()

	if o.provider == nil {
		return o.mockResult(turnID, in), nil
	}

	out, err := o.callLLM(ctx, in)
	if err != nil {
		o.log.WarnContext(ctx, "llm turn failed, falling back to mock result",
			"session_id", in.SessionID, "error", err)
		return o.mockResult(turnID, in), nil
	}

	res := &TurnResult{
		TurnID:                 turnID,
		CorrectedSentence:      out.CorrectedSentence,
		NativeTranslation:      out.NativeTranslation,
		UsedCardIDs:            out.UsedCardIDs,
		ASRFixes:               out.ASRFixes,
		BriefExplanationNative: out.BriefExplanationNative,
		Notes:                  out.Notes,
		AudioChunks:            out.AudioChunks,
	}

	if res.CorrectedSentence == "" {
		res.CorrectedSentence = in.Transcript
	}
	if res.NativeTranslation == "" {
		res.NativeTranslation = "(translation) " + in.Transcript
	}

	// The LLM's judgement is authoritative when the field is present; the
	// local detector only fills a genuine omission.
	if !out.usedCardIDsPresent {
		res.UsedCardIDs = o.detector.DetectUsed(in.Transcript, in.ActiveCards)
	}
	res.UsedCardIDs = restrictToActive(res.UsedCardIDs, in.ActiveCards)

	if res.ASRFixes == nil {
		res.ASRFixes = pickASRFixes(in.ASRAlternatives)
	}
	if len(res.AudioChunks) == 0 {
		res.AudioChunks = defaultChunks(res.CorrectedSentence, res.NativeTranslation, in.Learning)
	}
	normalizeSlices(res)
	return res, nil
}

// callLLM builds the prompt, invokes the provider with a bounded timeout,
// and parses the structured output.
func (o *Orchestrator) callLLM(ctx context.Context, in TurnInput) (*llmTurnOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	resp, err := o.provider.Complete(ctx, llm.CompletionRequest{
		Messages:    []llm.Message{llm.User(buildTurnPrompt(in))},
		Temperature: o.temperature,
		MaxTokens:   defaultMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("turn: complete: %w", err)
	}

	raw, err := responseText(resp)
	if err != nil {
		return nil, err
	}
	return parseTurnOutput(raw)
}

// mockResult synthesizes the deterministic no-network turn outcome.
func (o *Orchestrator) mockResult(turnID string, in TurnInput) *TurnResult {
	corrected := in.Transcript
	native := "(mock) " + in.Transcript

	res := &TurnResult{
		TurnID:                 turnID,
		CorrectedSentence:      corrected,
		NativeTranslation:      native,
		UsedCardIDs:            o.detector.DetectUsed(in.Transcript, in.ActiveCards),
		ASRFixes:               pickASRFixes(in.ASRAlternatives),
		BriefExplanationNative: "(mock) small wording adjustments.",
		AudioChunks:            defaultChunks(corrected, native, in.Learning),
	}
	normalizeSlices(res)
	return res
}

// defaultChunks builds the two-chunk fallback: corrected sentence in the
// learning language's default locale, then the translation in en-US.
func defaultChunks(corrected, native string, learning LanguageSpec) []AudioChunk {
	return []AudioChunk{
		{Text: corrected, Lang: defaultLocale(learning.Code), Purpose: PurposeCorrectedSentence},
		{Text: native, Lang: "en-US", Purpose: PurposeNativeTranslation},
	}
}

// restrictToActive drops ids that do not belong to the active card set,
// preserving order.
func restrictToActive(ids []string, active []cards.Card) []string {
	allowed := make(map[string]struct{}, len(active))
	for _, c := range active {
		allowed[c.ID] = struct{}{}
	}
	kept := ids[:0]
	for _, id := range ids {
		if _, ok := allowed[id]; ok {
			kept = append(kept, id)
		}
	}
	return kept
}

// pickASRFixes derives token corrections from recogniser alternatives: the
// top alternative is suggested whenever it differs from the heard token.
func pickASRFixes(alts []ASRAlternative) []ASRFix {
	fixes := []ASRFix{}
	for _, a := range alts {
		if len(a.Alts) == 0 {
			continue
		}
		best := a.Alts[0]
		if best == a.Token {
			continue
		}
		fix := ASRFix{Original: a.Token, Guess: best}
		if len(a.Confidences) > 0 {
			fix.Confidence = a.Confidences[0]
		}
		fixes = append(fixes, fix)
	}
	return fixes
}

// normalizeSlices replaces nil slices with empty ones so JSON responses
// serialise as [] rather than null.
func normalizeSlices(res *TurnResult) {
	if res.UsedCardIDs == nil {
		res.UsedCardIDs = []string{}
	}
	if res.ASRFixes == nil {
		res.ASRFixes = []ASRFix{}
	}
	if res.AudioChunks == nil {
		res.AudioChunks = []AudioChunk{}
	}
}

// CheckAnswer asks the LLM whether the user's answer is semantically
// equivalent to the expected one. In mock mode, or when the call or the
// extraction fails, it falls back to exact normalized-string equality.
func (o *Orchestrator) CheckAnswer(ctx context.Context, in CheckInput) (*CheckResult, error) {
	if strings.TrimSpace(in.UserAnswer) == "" {
		return nil, fmt.Errorf("turn: user_answer required")
	}

	if o.provider == nil {
		return o.localCheck(in), nil
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	resp, err := o.provider.Complete(ctx, llm.CompletionRequest{
		Messages:    []llm.Message{llm.User(buildCheckPrompt(in))},
		Temperature: o.temperature,
		MaxTokens:   defaultMaxTokens,
	})
	if err == nil {
		if raw, rerr := responseText(resp); rerr == nil {
			if out, perr := parseCheckOutput(raw); perr == nil {
				res := &CheckResult{
					IsCorrect:       out.IsCorrect,
					Feedback:        out.Feedback,
					CorrectedAnswer: out.CorrectedAnswer,
				}
				if res.CorrectedAnswer == "" {
					res.CorrectedAnswer = in.CorrectAnswer
				}
				return res, nil
			}
		}
		err = ErrMalformedResponse
	}

	o.log.WarnContext(ctx, "answer check failed, falling back to normalized equality", "error", err)
	return o.localCheck(in), nil
}

// localCheck is the no-network equivalence judgement: normalized exact
// match.
func (o *Orchestrator) localCheck(in CheckInput) *CheckResult {
	equal := textnorm.Normalize(in.UserAnswer) == textnorm.Normalize(in.CorrectAnswer)
	feedback := "Not quite. Compare your answer with the expected one."
	if equal {
		feedback = "Correct!"
	}
	return &CheckResult{
		IsCorrect:       equal,
		Feedback:        feedback,
		CorrectedAnswer: in.CorrectAnswer,
	}
}
