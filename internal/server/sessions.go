package server

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tesoro-app/tesoro/internal/cards"
	"github.com/tesoro-app/tesoro/internal/observe"
	"github.com/tesoro-app/tesoro/internal/turn"
)

// defaultHandSize is the number of cards dealt at session start.
const defaultHandSize = 7

// Session is one live game. The card hand is dealt at start and read-only
// afterwards; turns reference cards by id.
type Session struct {
	ID          string
	StoryTitle  string
	ActiveCards []cards.Card
	Fluent      turn.LanguageSpec
	Learning    turn.LanguageSpec
	StartedAt   time.Time
}

// Sessions tracks live game sessions in memory. Sessions are cheap and the
// game state is small, so there is no eviction; a restart simply starts
// fresh. All methods are safe for concurrent use.
type Sessions struct {
	mu       sync.RWMutex
	byID     map[string]*Session
	handSize int
	metrics  *observe.Metrics
}

// NewSessions creates a session tracker dealing handSize cards per game.
// A non-positive handSize falls back to 7.
func NewSessions(handSize int, metrics *observe.Metrics) *Sessions {
	if handSize < 1 {
		handSize = defaultHandSize
	}
	return &Sessions{
		byID:     make(map[string]*Session),
		handSize: handSize,
		metrics:  metrics,
	}
}

// Start creates a session with a fresh hand of cards. Empty language specs
// default to English fluent, Spanish learning.
func (s *Sessions) Start(ctx context.Context, storyTitle string, fluent, learning turn.LanguageSpec) *Session {
	if storyTitle == "" {
		storyTitle = "A Strange Tale"
	}
	if fluent.Code == "" {
		fluent = turn.LanguageSpec{Code: "en", Name: "English"}
	}
	if learning.Code == "" {
		learning = turn.LanguageSpec{Code: "es", Name: "Spanish"}
	}

	sess := &Session{
		ID:          "sess_" + uuid.NewString(),
		StoryTitle:  storyTitle,
		ActiveCards: cards.Deal(s.handSize),
		Fluent:      fluent,
		Learning:    learning,
		StartedAt:   time.Now(),
	}

	s.mu.Lock()
	s.byID[sess.ID] = sess
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.ActiveSessions.Add(ctx, 1)
	}
	return sess
}

// Get returns the session with the given id.
func (s *Sessions) Get(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.byID[id]
	return sess, ok
}

// End removes a session. Reports whether it existed.
func (s *Sessions) End(ctx context.Context, id string) bool {
	s.mu.Lock()
	_, ok := s.byID[id]
	delete(s.byID, id)
	s.mu.Unlock()

	if ok && s.metrics != nil {
		s.metrics.ActiveSessions.Add(ctx, -1)
	}
	return ok
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
