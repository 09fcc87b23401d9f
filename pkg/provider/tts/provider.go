// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., Azure Speech or
// ElevenLabs) and presents a uniform batch interface: one utterance in, one
// complete WAV file out. The speech fan-out layer calls Synthesize once per
// reply chunk, in parallel, and substitutes silence for any chunk that fails.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"
	"errors"
)

// ErrSynthesisFailed indicates the backend accepted the request but could not
// produce audio (bad voice, quota exhausted, upstream 4xx/5xx). Callers that
// want graceful degradation should treat any error from Synthesize as a cue
// to fall back to silence; this sentinel lets them distinguish synthesis
// failures from context cancellation.
var ErrSynthesisFailed = errors.New("tts: synthesis failed")

// Provider is the abstraction over any TTS backend.
//
// Implementations must be safe for concurrent use. Multiple synthesis
// requests may run in parallel (one per reply chunk).
type Provider interface {
	// Synthesize renders req.Text with req.Voice and returns a complete WAV
	// file (RIFF container, 16-bit PCM).
	//
	// Returns an error wrapping ErrSynthesisFailed when the backend cannot
	// produce audio, or ctx.Err() when the context is cancelled first.
	// Implementations must not return a non-nil result alongside an error.
	Synthesize(ctx context.Context, req SynthesisRequest) ([]byte, error)

	// ListVoices returns the voices available from this provider. The list
	// reflects the provider's current catalogue and may change between calls.
	ListVoices(ctx context.Context) ([]Voice, error)
}
