// Package speech fans a turn's audio chunks out to the TTS provider and
// persists the resulting WAV artifacts. Chunks are synthesized concurrently
// but artifacts keep the positional order of the input: the corrected
// sentence stays ahead of the translation no matter which HTTP call
// finishes first.
//
// Failure policy matches the rest of the pipeline: a chunk that cannot be
// synthesized degrades to silence scaled by word count, and a chunk that
// cannot be written to disk is skipped. SynthesizeTurn never fails a turn.
package speech

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tesoro-app/tesoro/internal/audiostore"
	"github.com/tesoro-app/tesoro/internal/turn"
	"github.com/tesoro-app/tesoro/pkg/provider/tts"
	"github.com/tesoro-app/tesoro/pkg/wav"
)

const (
	// maxSilence caps the length of fallback silence regardless of text
	// length.
	maxSilence = 4 * time.Second

	// perWordSilence scales fallback silence with the word count of the
	// text that should have been spoken.
	perWordSilence = 250 * time.Millisecond

	// defaultParallelism bounds in-flight synthesis requests per turn.
	defaultParallelism = 4
)

var errNilStore = errors.New("speech: Store must not be nil")

// DefaultVoices maps locale tags to the per-locale default neural voices.
// Config may override individual entries.
var DefaultVoices = map[string]string{
	"es-MX": "es-MX-JorgeNeural",
	"en-US": "en-US-JennyNeural",
	"id-ID": "id-ID-GadisNeural",
}

// Artifact describes one persisted audio chunk of a turn.
type Artifact struct {
	Purpose  string `json:"purpose"`
	Lang     string `json:"lang"`
	Filename string `json:"-"`
	URL      string `json:"audio_file"`
}

// Config configures a Synthesizer.
type Config struct {
	// Provider is the TTS backend. When nil the synthesizer runs in mock
	// mode: it serves the sample file or silence and never performs any
	// network call, regardless of configured credentials elsewhere.
	Provider tts.Provider

	// Store persists artifacts. Must not be nil.
	Store *audiostore.Store

	// Cache, when non-nil, additionally holds recent artifacts in memory
	// keyed by filename so the serving path can skip the disk.
	Cache *audiostore.Cache

	// Voices overrides entries of DefaultVoices per locale tag.
	Voices map[string]string

	// SamplePath optionally points to a WAV file returned verbatim for
	// every chunk in mock mode. Loaded once at construction.
	SamplePath string

	// Parallelism bounds concurrent synthesis requests per turn.
	// Defaults to 4.
	Parallelism int

	// Logger receives degradation warnings. Defaults to slog.Default().
	Logger *slog.Logger
}

// Synthesizer renders and stores a turn's audio chunks. Safe for concurrent
// use.
type Synthesizer struct {
	provider    tts.Provider
	store       *audiostore.Store
	cache       *audiostore.Cache
	voices      map[string]string
	sample      []byte
	parallelism int
	log         *slog.Logger
}

// NewSynthesizer creates a Synthesizer from cfg.
func NewSynthesizer(cfg Config) (*Synthesizer, error) {
	if cfg.Store == nil {
		return nil, errNilStore
	}

	voices := make(map[string]string, len(DefaultVoices))
	for tag, voice := range DefaultVoices {
		voices[tag] = voice
	}
	for tag, voice := range cfg.Voices {
		if voice != "" {
			voices[tag] = voice
		}
	}

	s := &Synthesizer{
		provider:    cfg.Provider,
		store:       cfg.Store,
		cache:       cfg.Cache,
		voices:      voices,
		parallelism: cfg.Parallelism,
		log:         cfg.Logger,
	}
	if s.parallelism < 1 {
		s.parallelism = defaultParallelism
	}
	if s.log == nil {
		s.log = slog.Default()
	}

	if cfg.SamplePath != "" {
		data, err := os.ReadFile(cfg.SamplePath)
		if err != nil {
			s.log.Warn("sample audio unavailable, mock mode will use silence",
				"path", cfg.SamplePath, "error", err)
		} else {
			s.sample = data
		}
	}
	return s, nil
}

// SynthesizeTurn renders every chunk and writes the artifacts under the
// session directory. The returned slice preserves chunk order; chunks whose
// artifact could not be written are absent.
func (s *Synthesizer) SynthesizeTurn(ctx context.Context, sessionID, turnID string, chunks []turn.AudioChunk) []Artifact {
	results := make([]*Artifact, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i, chunk := range chunks {
		g.Go(func() error {
			results[i] = s.renderChunk(gctx, sessionID, turnID, i, chunk)
			return nil
		})
	}
	// Workers never return errors; degradation happens per chunk.
	_ = g.Wait()

	artifacts := make([]Artifact, 0, len(chunks))
	for _, a := range results {
		if a != nil {
			artifacts = append(artifacts, *a)
		}
	}
	return artifacts
}

// renderChunk synthesizes one chunk and persists it. Returns nil only when
// the artifact could not be written.
func (s *Synthesizer) renderChunk(ctx context.Context, sessionID, turnID string, index int, chunk turn.AudioChunk) *Artifact {
	lang := chunk.Lang
	if lang == "" {
		lang = "en-US"
	}

	audio := s.Synthesize(ctx, chunk.Text, lang)

	langShort, _, _ := strings.Cut(lang, "-")
	name, err := s.store.Save(sessionID, turnID, langShort, index, audio)
	if err != nil {
		s.log.WarnContext(ctx, "failed to persist audio chunk, dropping it",
			"session_id", sessionID, "turn_id", turnID, "index", index, "error", err)
		return nil
	}
	if s.cache != nil {
		s.cache.Put(name, audio)
	}

	return &Artifact{
		Purpose:  chunk.Purpose,
		Lang:     lang,
		Filename: name,
		URL:      s.store.URLPath(sessionID, name),
	}
}

// Synthesize renders a single utterance, applying the full degradation
// chain: mock sample or silence in mock mode, provider audio otherwise,
// silence when the provider fails. It never returns an empty result.
func (s *Synthesizer) Synthesize(ctx context.Context, text, lang string) []byte {
	if s.provider == nil {
		if s.sample != nil {
			return s.sample
		}
		return silenceFor(text)
	}

	audio, err := s.provider.Synthesize(ctx, tts.SynthesisRequest{
		Text:  text,
		Voice: s.voiceFor(lang),
	})
	if err != nil {
		s.log.WarnContext(ctx, "tts synthesis failed, falling back to silence",
			"lang", lang, "error", err)
		return silenceFor(text)
	}
	return audio
}

// voiceFor resolves the configured voice for a locale tag, defaulting to
// the en-US voice for unknown locales.
func (s *Synthesizer) voiceFor(lang string) string {
	if v, ok := s.voices[lang]; ok {
		return v
	}
	return s.voices["en-US"]
}

// silenceFor builds the placeholder WAV whose duration scales with word
// count: min(4s, 250ms per word), at least one word.
func silenceFor(text string) []byte {
	words := len(strings.Fields(text))
	if words < 1 {
		words = 1
	}
	d := time.Duration(words) * perWordSilence
	if d > maxSilence {
		d = maxSilence
	}
	return wav.EncodeSilence(d, wav.SilenceSampleRate)
}
