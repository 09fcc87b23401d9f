package turn

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/tesoro-app/tesoro/internal/cards"
	"github.com/tesoro-app/tesoro/pkg/provider/llm"
	llmmock "github.com/tesoro-app/tesoro/pkg/provider/llm/mock"
)

func testInput() TurnInput {
	return TurnInput{
		SessionID:  "sess_test",
		Transcript: "Quiero caminar por el camino al lobo",
		ActiveCards: []cards.Card{
			{ID: "c_camino", Type: cards.TypeWord, Value: "camino"},
			{ID: "c_lobo", Type: cards.TypeWord, Value: "lobo"},
		},
		Fluent:   LanguageSpec{Code: "en", Name: "English"},
		Learning: LanguageSpec{Code: "es", Name: "Spanish"},
	}
}

func TestProcessTurn_EmptyTranscript(t *testing.T) {
	t.Parallel()

	o := New(Config{})
	if _, err := o.ProcessTurn(context.Background(), TurnInput{Transcript: "   "}); !errors.Is(err, ErrEmptyTranscript) {
		t.Fatalf("err = %v, want ErrEmptyTranscript", err)
	}
}

func TestProcessTurn_MockMode(t *testing.T) {
	t.Parallel()

	o := New(Config{})
	if !o.MockMode() {
		t.Fatal("expected mock mode with nil provider")
	}

	in := testInput()
	res, err := o.ProcessTurn(context.Background(), in)
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}

	if res.CorrectedSentence != in.Transcript {
		t.Errorf("CorrectedSentence = %q, want transcript unchanged", res.CorrectedSentence)
	}
	if res.NativeTranslation != "(mock) "+in.Transcript {
		t.Errorf("NativeTranslation = %q", res.NativeTranslation)
	}

	want := cards.NewDetector().DetectUsed(in.Transcript, in.ActiveCards)
	if !slices.Equal(res.UsedCardIDs, want) {
		t.Errorf("UsedCardIDs = %v, want detector output %v", res.UsedCardIDs, want)
	}
	if !slices.Contains(res.UsedCardIDs, "c_camino") || !slices.Contains(res.UsedCardIDs, "c_lobo") {
		t.Errorf("UsedCardIDs = %v, want both cards detected", res.UsedCardIDs)
	}

	if len(res.AudioChunks) != 2 {
		t.Fatalf("expected 2 audio chunks, got %d", len(res.AudioChunks))
	}
	if res.AudioChunks[0].Purpose != PurposeCorrectedSentence || res.AudioChunks[0].Lang != "es-MX" {
		t.Errorf("unexpected first chunk: %+v", res.AudioChunks[0])
	}
	if res.AudioChunks[1].Purpose != PurposeNativeTranslation || res.AudioChunks[1].Lang != "en-US" {
		t.Errorf("unexpected second chunk: %+v", res.AudioChunks[1])
	}

	if res.ASRFixes == nil || res.UsedCardIDs == nil {
		t.Error("result slices must be non-nil")
	}
	if res.TurnID == "" {
		t.Error("TurnID must be set")
	}
}

func TestProcessTurn_LLMSuccess(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: `{
				"corrected_sentence": "Quiero caminar por el camino hacia el lobo.",
				"native_translation": "I want to walk along the path to the wolf.",
				"used_card_ids": ["c_camino"],
				"brief_explanation_native": "Added the preposition.",
				"audio_chunks": [
					{"text":"Quiero caminar por el camino hacia el lobo.","lang":"es-MX","purpose":"corrected_sentence"},
					{"text":"I want to walk along the path to the wolf.","lang":"en-US","purpose":"native_translation"}
				]
			}`,
		},
	}
	o := New(Config{Provider: p})

	res, err := o.ProcessTurn(context.Background(), testInput())
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}

	if len(p.CompleteCalls) != 1 {
		t.Fatalf("expected 1 LLM call, got %d", len(p.CompleteCalls))
	}
	req := p.CompleteCalls[0].Req
	if req.Temperature != 0.15 {
		t.Errorf("temperature = %v, want 0.15", req.Temperature)
	}
	if req.MaxTokens != 600 {
		t.Errorf("max tokens = %d, want 600", req.MaxTokens)
	}

	// The LLM's judgement is authoritative: only c_camino even though the
	// detector would also find c_lobo.
	if !slices.Equal(res.UsedCardIDs, []string{"c_camino"}) {
		t.Errorf("UsedCardIDs = %v, want [c_camino]", res.UsedCardIDs)
	}
	if res.CorrectedSentence != "Quiero caminar por el camino hacia el lobo." {
		t.Errorf("CorrectedSentence = %q", res.CorrectedSentence)
	}
}

func TestProcessTurn_RestrictsToActiveCards(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: `{"corrected_sentence":"x","used_card_ids":["c_camino","c_invented"]}`,
		},
	}
	o := New(Config{Provider: p})

	res, err := o.ProcessTurn(context.Background(), testInput())
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if !slices.Equal(res.UsedCardIDs, []string{"c_camino"}) {
		t.Errorf("UsedCardIDs = %v, want hallucinated ids dropped", res.UsedCardIDs)
	}
}

func TestProcessTurn_DetectorFillsOmittedField(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: `{"corrected_sentence":"Quiero caminar"}`,
		},
	}
	o := New(Config{Provider: p})

	res, err := o.ProcessTurn(context.Background(), testInput())
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if !slices.Contains(res.UsedCardIDs, "c_camino") || !slices.Contains(res.UsedCardIDs, "c_lobo") {
		t.Errorf("UsedCardIDs = %v, want detector fallback", res.UsedCardIDs)
	}
}

func TestProcessTurn_ExplicitEmptyUsedCardsIsKept(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: `{"corrected_sentence":"x","used_card_ids":[]}`,
		},
	}
	o := New(Config{Provider: p})

	res, err := o.ProcessTurn(context.Background(), testInput())
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if len(res.UsedCardIDs) != 0 {
		t.Errorf("UsedCardIDs = %v, want explicit empty list respected", res.UsedCardIDs)
	}
}

func TestProcessTurn_FailureFallsBackToMock(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		provider *llmmock.Provider
	}{
		{"call error", &llmmock.Provider{CompleteErr: errors.New("connection refused")}},
		{"malformed response", &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "no json here"}}},
		{"empty response", &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{}}},
	}

	in := testInput()
	mockRes, err := New(Config{}).ProcessTurn(context.Background(), in)
	if err != nil {
		t.Fatalf("mock ProcessTurn: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			o := New(Config{Provider: tt.provider})
			res, err := o.ProcessTurn(context.Background(), in)
			if err != nil {
				t.Fatalf("ProcessTurn must not fail past validation: %v", err)
			}
			if res.CorrectedSentence != mockRes.CorrectedSentence ||
				res.NativeTranslation != mockRes.NativeTranslation ||
				!slices.Equal(res.UsedCardIDs, mockRes.UsedCardIDs) {
				t.Errorf("fallback result differs from mock result: %+v vs %+v", res, mockRes)
			}
		})
	}
}

func TestProcessTurn_DefaultChunksWhenAbsent(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: `{"corrected_sentence":"Aku mau jalan","native_translation":"I want to walk"}`,
		},
	}
	o := New(Config{Provider: p})

	in := testInput()
	in.Learning = LanguageSpec{Code: "id", Name: "Indonesian"}
	res, err := o.ProcessTurn(context.Background(), in)
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}

	if len(res.AudioChunks) != 2 {
		t.Fatalf("expected 2 default chunks, got %d", len(res.AudioChunks))
	}
	if res.AudioChunks[0].Lang != "id-ID" || res.AudioChunks[0].Text != "Aku mau jalan" {
		t.Errorf("unexpected first chunk: %+v", res.AudioChunks[0])
	}
	if res.AudioChunks[1].Lang != "en-US" {
		t.Errorf("unexpected second chunk: %+v", res.AudioChunks[1])
	}
}

func TestProcessTurn_ChunkOrdering(t *testing.T) {
	t.Parallel()

	o := New(Config{})
	res, err := o.ProcessTurn(context.Background(), testInput())
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}

	corrected, translation := -1, -1
	for i, c := range res.AudioChunks {
		switch c.Purpose {
		case PurposeCorrectedSentence:
			if corrected == -1 {
				corrected = i
			}
		case PurposeNativeTranslation:
			if translation == -1 {
				translation = i
			}
		}
	}
	if corrected == -1 || translation == -1 || corrected >= translation {
		t.Errorf("chunk ordering violated: corrected at %d, translation at %d", corrected, translation)
	}
}

func TestPickASRFixes(t *testing.T) {
	t.Parallel()

	fixes := pickASRFixes([]ASRAlternative{
		{Token: "camion", Alts: []string{"camino", "camión"}, Confidences: []float64{0.8, 0.1}},
		{Token: "lobo", Alts: []string{"lobo"}, Confidences: []float64{0.9}},
		{Token: "por", Alts: nil},
	})

	if len(fixes) != 1 {
		t.Fatalf("expected 1 fix, got %d: %v", len(fixes), fixes)
	}
	if fixes[0].Original != "camion" || fixes[0].Guess != "camino" || fixes[0].Confidence != 0.8 {
		t.Errorf("unexpected fix: %+v", fixes[0])
	}
}

func TestCheckAnswer_MockFallback(t *testing.T) {
	t.Parallel()

	o := New(Config{})

	res, err := o.CheckAnswer(context.Background(), CheckInput{
		UserAnswer:    "¡Quisiera reservar una MESA!",
		CorrectAnswer: "Quisiera reservar una mesa",
	})
	if err != nil {
		t.Fatalf("CheckAnswer: %v", err)
	}
	if !res.IsCorrect {
		t.Error("normalized-equal answers should be judged correct")
	}

	res, err = o.CheckAnswer(context.Background(), CheckInput{
		UserAnswer:    "Quiero una silla",
		CorrectAnswer: "Quisiera reservar una mesa",
	})
	if err != nil {
		t.Fatalf("CheckAnswer: %v", err)
	}
	if res.IsCorrect {
		t.Error("different answers should be judged incorrect")
	}
	if res.CorrectedAnswer != "Quisiera reservar una mesa" {
		t.Errorf("CorrectedAnswer = %q", res.CorrectedAnswer)
	}
}

func TestCheckAnswer_LLM(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: `{"is_correct": true, "feedback": "Close enough.", "corrected_answer": "Quisiera reservar una mesa."}`,
		},
	}
	o := New(Config{Provider: p})

	res, err := o.CheckAnswer(context.Background(), CheckInput{
		UserAnswer:    "Quiero reservar mesa",
		CorrectAnswer: "Quisiera reservar una mesa.",
	})
	if err != nil {
		t.Fatalf("CheckAnswer: %v", err)
	}
	if !res.IsCorrect || res.Feedback != "Close enough." {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestCheckAnswer_EmptyAnswer(t *testing.T) {
	t.Parallel()

	o := New(Config{})
	if _, err := o.CheckAnswer(context.Background(), CheckInput{CorrectAnswer: "x"}); err == nil {
		t.Fatal("expected validation error for empty user answer")
	}
}
