package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/tesoro-app/tesoro/pkg/provider/llm"
	llmmock "github.com/tesoro-app/tesoro/pkg/provider/llm/mock"
	"github.com/tesoro-app/tesoro/pkg/provider/tts"
	ttsmock "github.com/tesoro-app/tesoro/pkg/provider/tts/mock"
)

func TestGuardLLM_ForwardsSuccess(t *testing.T) {
	inner := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "hola"},
	}
	g := GuardLLM("openai", inner, nil, CircuitBreakerConfig{})

	resp, err := g.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{llm.User("hi")},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "hola" {
		t.Errorf("content = %q, want hola", resp.Content)
	}
	if len(inner.CompleteCalls) != 1 {
		t.Errorf("inner called %d times, want 1", len(inner.CompleteCalls))
	}
}

func TestGuardLLM_OpensAfterConsecutiveFailures(t *testing.T) {
	inner := &llmmock.Provider{CompleteErr: errTest}
	g := GuardLLM("openai", inner, nil, CircuitBreakerConfig{MaxFailures: 2})

	ctx := context.Background()
	req := llm.CompletionRequest{Messages: []llm.Message{llm.User("hi")}}

	for range 2 {
		if _, err := g.Complete(ctx, req); !errors.Is(err, errTest) {
			t.Fatalf("error = %v, want errTest", err)
		}
	}
	if g.State() != StateOpen {
		t.Fatalf("state = %v, want open", g.State())
	}

	// The open breaker rejects without touching the backend.
	calls := len(inner.CompleteCalls)
	if _, err := g.Complete(ctx, req); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("error = %v, want ErrCircuitOpen", err)
	}
	if len(inner.CompleteCalls) != calls {
		t.Error("inner provider was called while the breaker was open")
	}
}

func TestGuardLLM_ReadyTracksBreakerState(t *testing.T) {
	inner := &llmmock.Provider{CompleteErr: errTest}
	g := GuardLLM("openai", inner, nil, CircuitBreakerConfig{MaxFailures: 1})

	ctx := context.Background()
	if err := g.Ready(ctx); err != nil {
		t.Fatalf("Ready before any call: %v", err)
	}

	_, _ = g.Complete(ctx, llm.CompletionRequest{Messages: []llm.Message{llm.User("hi")}})
	err := g.Ready(ctx)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Ready with open breaker = %v, want ErrCircuitOpen", err)
	}
}

func TestGuardTTS_ReadyTracksBreakerState(t *testing.T) {
	inner := &ttsmock.Provider{SynthesizeErr: errTest}
	g := GuardTTS("azure", inner, nil, CircuitBreakerConfig{MaxFailures: 1})

	ctx := context.Background()
	if err := g.Ready(ctx); err != nil {
		t.Fatalf("Ready before any call: %v", err)
	}

	_, _ = g.Synthesize(ctx, tts.SynthesisRequest{Text: "x"})
	if err := g.Ready(ctx); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Ready with open breaker = %v, want ErrCircuitOpen", err)
	}
}

func TestGuardTTS_ForwardsAndBreaks(t *testing.T) {
	inner := &ttsmock.Provider{SynthesizeResult: []byte("RIFF")}
	g := GuardTTS("azure", inner, nil, CircuitBreakerConfig{MaxFailures: 1})

	ctx := context.Background()
	audio, err := g.Synthesize(ctx, tts.SynthesisRequest{Text: "hola", Voice: "es-MX-JorgeNeural"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(audio) != "RIFF" {
		t.Errorf("audio = %q", audio)
	}

	inner.SynthesizeErr = errTest
	if _, err := g.Synthesize(ctx, tts.SynthesisRequest{Text: "x"}); !errors.Is(err, errTest) {
		t.Fatalf("error = %v, want errTest", err)
	}
	if g.State() != StateOpen {
		t.Fatalf("state = %v, want open", g.State())
	}
	if _, err := g.Synthesize(ctx, tts.SynthesisRequest{Text: "y"}); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("error = %v, want ErrCircuitOpen", err)
	}
}

func TestGuardTTS_ListVoicesBypassesBreaker(t *testing.T) {
	inner := &ttsmock.Provider{
		SynthesizeErr:    errTest,
		ListVoicesResult: []tts.Voice{{ID: "v1"}},
	}
	g := GuardTTS("azure", inner, nil, CircuitBreakerConfig{MaxFailures: 1})

	ctx := context.Background()
	_, _ = g.Synthesize(ctx, tts.SynthesisRequest{Text: "x"})
	if g.State() != StateOpen {
		t.Fatalf("state = %v, want open", g.State())
	}

	voices, err := g.ListVoices(ctx)
	if err != nil {
		t.Fatalf("ListVoices: %v", err)
	}
	if len(voices) != 1 || voices[0].ID != "v1" {
		t.Errorf("voices = %+v", voices)
	}
}
