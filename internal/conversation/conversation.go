// Package conversation persists chat histories per session so a learner can
// resume where they left off. Audio payloads are stripped before saving;
// conversations are text only on disk.
package conversation

import (
	"context"
	"errors"
	"time"

	"github.com/tesoro-app/tesoro/internal/turn"
)

// ErrNotFound is returned by Load when no conversation exists for the
// session.
var ErrNotFound = errors.New("conversation: not found")

// Conversation is one session's saved chat history. Messages keep the
// client's message shape as-is, minus embedded audio.
type Conversation struct {
	SessionID        string             `json:"session_id"`
	Messages         []map[string]any   `json:"messages"`
	FluentLanguage   *turn.LanguageSpec `json:"fluent_language,omitempty"`
	LearningLanguage *turn.LanguageSpec `json:"learning_language,omitempty"`
	SavedAt          int64              `json:"saved_at"`
}

// Summary is a listing entry for one saved conversation.
type Summary struct {
	SessionID string `json:"session_id"`
	SavedAt   int64  `json:"saved_at"`
}

// Store persists and retrieves conversations keyed by session ID. Saving the
// same session again replaces the previous snapshot.
type Store interface {
	Save(ctx context.Context, conv *Conversation) error
	Load(ctx context.Context, sessionID string) (*Conversation, error)
	List(ctx context.Context) ([]Summary, error)
}

// Pinger is implemented by stores that can verify their backend is reachable.
// Used by the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Prepare normalizes a conversation for persistence: audio payloads are
// removed from every message and SavedAt is stamped if unset.
func Prepare(conv *Conversation) {
	for i, msg := range conv.Messages {
		conv.Messages[i] = stripAudio(msg)
	}
	if conv.SavedAt == 0 {
		conv.SavedAt = time.Now().Unix()
	}
}

// stripAudio removes "audio_base64" keys from a message and from any nested
// objects, such as translation check results embedded in a pair message.
func stripAudio(msg map[string]any) map[string]any {
	out := make(map[string]any, len(msg))
	for k, v := range msg {
		if k == "audio_base64" {
			continue
		}
		switch nested := v.(type) {
		case map[string]any:
			out[k] = stripAudio(nested)
		case []any:
			items := make([]any, len(nested))
			for i, item := range nested {
				if m, ok := item.(map[string]any); ok {
					items[i] = stripAudio(m)
				} else {
					items[i] = item
				}
			}
			out[k] = items
		default:
			out[k] = v
		}
	}
	return out
}
