package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/tesoro-app/tesoro/internal/observe"
	"github.com/tesoro-app/tesoro/pkg/provider/llm"
	"github.com/tesoro-app/tesoro/pkg/provider/tts"
)

// GuardedLLM wraps an [llm.Provider] with a circuit breaker and call
// telemetry. While the breaker is open every call fails immediately with
// [ErrCircuitOpen], so the orchestrator degrades to its local result instead
// of stacking timeouts.
type GuardedLLM struct {
	name    string
	inner   llm.Provider
	breaker *CircuitBreaker
	metrics *observe.Metrics
}

var _ llm.Provider = (*GuardedLLM)(nil)

// GuardLLM wraps provider. The name labels the breaker and the provider
// attribute on metrics. A nil metrics disables telemetry, not the breaker.
func GuardLLM(name string, provider llm.Provider, metrics *observe.Metrics, cfg CircuitBreakerConfig) *GuardedLLM {
	cfg.Name = "llm/" + name
	return &GuardedLLM{
		name:    name,
		inner:   provider,
		breaker: NewCircuitBreaker(cfg),
		metrics: metrics,
	}
}

// Complete forwards to the wrapped provider through the breaker.
func (g *GuardedLLM) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	var resp *llm.CompletionResponse
	start := time.Now()

	err := g.breaker.Execute(func() error {
		var innerErr error
		resp, innerErr = g.inner.Complete(ctx, req)
		return innerErr
	})

	if g.metrics != nil {
		g.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())
		status := "ok"
		if err != nil {
			status = "error"
			g.metrics.RecordProviderError(ctx, g.name, "llm")
		}
		g.metrics.RecordProviderRequest(ctx, g.name, "llm", status)
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// State returns the current breaker state.
func (g *GuardedLLM) State() State { return g.breaker.State() }

// Ready is a readiness probe for /readyz. It fails while the breaker is open;
// a half-open breaker counts as ready since it is about to admit probes.
func (g *GuardedLLM) Ready(context.Context) error {
	if g.breaker.State() == StateOpen {
		return fmt.Errorf("llm provider %s: %w", g.name, ErrCircuitOpen)
	}
	return nil
}

// GuardedTTS wraps a [tts.Provider] the same way [GuardedLLM] wraps an LLM:
// fail fast while the backend is down, let the synthesizer fall back to
// silence per chunk.
type GuardedTTS struct {
	name    string
	inner   tts.Provider
	breaker *CircuitBreaker
	metrics *observe.Metrics
}

var _ tts.Provider = (*GuardedTTS)(nil)

// GuardTTS wraps provider with a breaker named after it.
func GuardTTS(name string, provider tts.Provider, metrics *observe.Metrics, cfg CircuitBreakerConfig) *GuardedTTS {
	cfg.Name = "tts/" + name
	return &GuardedTTS{
		name:    name,
		inner:   provider,
		breaker: NewCircuitBreaker(cfg),
		metrics: metrics,
	}
}

// Synthesize forwards to the wrapped provider through the breaker.
func (g *GuardedTTS) Synthesize(ctx context.Context, req tts.SynthesisRequest) ([]byte, error) {
	var audio []byte
	start := time.Now()

	err := g.breaker.Execute(func() error {
		var innerErr error
		audio, innerErr = g.inner.Synthesize(ctx, req)
		return innerErr
	})

	if g.metrics != nil {
		g.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())
		status := "ok"
		if err != nil {
			status = "error"
			g.metrics.RecordProviderError(ctx, g.name, "tts")
		}
		g.metrics.RecordProviderRequest(ctx, g.name, "tts", status)
	}
	if err != nil {
		return nil, err
	}
	return audio, nil
}

// ListVoices bypasses the breaker: it is a management call, not part of the
// per-turn hot path, and a tripped breaker should not hide the catalogue.
func (g *GuardedTTS) ListVoices(ctx context.Context) ([]tts.Voice, error) {
	return g.inner.ListVoices(ctx)
}

// State returns the current breaker state.
func (g *GuardedTTS) State() State { return g.breaker.State() }

// Ready is a readiness probe for /readyz. It fails while the breaker is open.
func (g *GuardedTTS) Ready(context.Context) error {
	if g.breaker.State() == StateOpen {
		return fmt.Errorf("tts provider %s: %w", g.name, ErrCircuitOpen)
	}
	return nil
}
