// Package server exposes the tesoro game over HTTP: session start, turn
// processing, answer checks, audio artifact serving, and conversation
// persistence, plus the operational endpoints (health, readiness, metrics).
//
// Handlers are thin: they validate and decode, call into the pipeline
// packages, and encode. All game semantics live in internal/turn,
// internal/speech, and internal/conversation.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tesoro-app/tesoro/internal/audiostore"
	"github.com/tesoro-app/tesoro/internal/conversation"
	"github.com/tesoro-app/tesoro/internal/health"
	"github.com/tesoro-app/tesoro/internal/observe"
	"github.com/tesoro-app/tesoro/internal/speech"
	"github.com/tesoro-app/tesoro/internal/turn"
)

// Config holds the dependencies of a Server.
type Config struct {
	// Orchestrator runs the turn pipeline. Required.
	Orchestrator *turn.Orchestrator

	// Synthesizer renders turn audio. Required.
	Synthesizer *speech.Synthesizer

	// Conversations persists chat histories. Required.
	Conversations conversation.Store

	// AudioStore serves persisted WAV artifacts. Required.
	AudioStore *audiostore.Store

	// AudioCache, when non-nil, is consulted before the disk on the audio
	// serving path.
	AudioCache *audiostore.Cache

	// Sessions tracks live games. Defaults to a fresh tracker with a
	// 7-card hand.
	Sessions *Sessions

	// Metrics receives request and pipeline telemetry. Optional.
	Metrics *observe.Metrics

	// Health serves /healthz and /readyz with the caller's readiness probes.
	// Defaults to a probe-less handler.
	Health *health.Handler

	// MockMode marks the server as running without providers: conversation
	// saves are skipped and loads always miss.
	MockMode bool

	// CORSOrigins lists allowed browser origins. Defaults to the local dev
	// servers (ports 3000 and 5173).
	CORSOrigins []string

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Server is the HTTP layer of the tesoro backend. Safe for concurrent use.
type Server struct {
	orch          *turn.Orchestrator
	synth         *speech.Synthesizer
	conversations conversation.Store
	audio         *audiostore.Store
	cache         *audiostore.Cache
	sessions      *Sessions
	metrics       *observe.Metrics
	health        *health.Handler
	mock          bool
	corsOrigins   []string
	log           *slog.Logger
}

// New creates a Server from cfg.
func New(cfg Config) (*Server, error) {
	switch {
	case cfg.Orchestrator == nil:
		return nil, errors.New("server: Orchestrator must not be nil")
	case cfg.Synthesizer == nil:
		return nil, errors.New("server: Synthesizer must not be nil")
	case cfg.Conversations == nil:
		return nil, errors.New("server: Conversations must not be nil")
	case cfg.AudioStore == nil:
		return nil, errors.New("server: AudioStore must not be nil")
	}

	s := &Server{
		orch:          cfg.Orchestrator,
		synth:         cfg.Synthesizer,
		conversations: cfg.Conversations,
		audio:         cfg.AudioStore,
		cache:         cfg.AudioCache,
		sessions:      cfg.Sessions,
		metrics:       cfg.Metrics,
		health:        cfg.Health,
		mock:          cfg.MockMode,
		corsOrigins:   cfg.CORSOrigins,
		log:           cfg.Logger,
	}
	if s.sessions == nil {
		s.sessions = NewSessions(0, cfg.Metrics)
	}
	if s.health == nil {
		s.health = health.New(cfg.MockMode)
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s, nil
}

// Handler returns the full HTTP handler: routes wrapped in the telemetry and
// CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/game/start", s.handleStart)
	mux.HandleFunc("POST /api/game/turn", s.handleTurn)
	mux.HandleFunc("DELETE /api/game/{session}", s.handleEndSession)
	mux.HandleFunc("POST /api/check", s.handleCheck)
	mux.HandleFunc("GET /api/audio_file/{session}/{filename}", s.handleAudioFile)

	mux.HandleFunc("POST /api/conversations/{session}", s.handleSaveConversation)
	mux.HandleFunc("GET /api/conversations", s.handleListConversations)
	mux.HandleFunc("GET /api/conversations/{session}", s.handleLoadConversation)

	s.health.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	var h http.Handler = mux
	if s.metrics != nil {
		h = observe.Middleware(s.metrics)(h)
	}
	return corsMiddleware(s.corsOrigins, h)
}

// decodeJSON decodes the request body into v. An empty body leaves v at its
// zero value.
func decodeJSON(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// writeJSON encodes v with the given status. Encoding errors are logged, not
// surfaced; the status line is already on the wire.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("failed to encode response", "error", err)
	}
}

// httpError writes the JSON error shape clients expect: {"detail": ...}.
func (s *Server) httpError(w http.ResponseWriter, status int, detail string) {
	s.writeJSON(w, status, map[string]string{"detail": detail})
}
