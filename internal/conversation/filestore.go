package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tesoro-app/tesoro/internal/audiostore"
)

// Compile-time interface checks.
var (
	_ Store  = (*FileStore)(nil)
	_ Pinger = (*FileStore)(nil)
)

// FileStore is a Store that keeps one JSON file per session under a root
// directory. It is the default backend; no database required.
type FileStore struct {
	root string
}

// NewFileStore creates the root directory if needed and returns a FileStore
// over it.
func NewFileStore(root string) (*FileStore, error) {
	if root == "" {
		return nil, fmt.Errorf("conversation: root directory must not be empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("conversation: create root: %w", err)
	}
	return &FileStore{root: root}, nil
}

// Ping verifies the root directory still exists. Implements [Pinger].
func (s *FileStore) Ping(_ context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("conversation: stat root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("conversation: root %q is not a directory", s.root)
	}
	return nil
}

func (s *FileStore) path(sessionID string) string {
	return filepath.Join(s.root, "session_"+audiostore.SanitizeID(sessionID)+".json")
}

// Save writes the conversation snapshot, replacing any previous one for the
// session. The write goes through a temp file and rename so readers never
// observe a partial file.
func (s *FileStore) Save(ctx context.Context, conv *Conversation) error {
	if conv.SessionID == "" {
		return fmt.Errorf("conversation: session id must not be empty")
	}
	Prepare(conv)

	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("conversation: marshal: %w", err)
	}

	dst := s.path(conv.SessionID)
	tmp, err := os.CreateTemp(s.root, ".session_*.tmp")
	if err != nil {
		return fmt.Errorf("conversation: create temp: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("conversation: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("conversation: close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("conversation: rename: %w", err)
	}
	return nil
}

// Load reads the saved conversation for a session. Returns ErrNotFound when
// the session has never been saved.
func (s *FileStore) Load(ctx context.Context, sessionID string) (*Conversation, error) {
	data, err := os.ReadFile(s.path(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: session %q", ErrNotFound, sessionID)
		}
		return nil, fmt.Errorf("conversation: read: %w", err)
	}

	var conv Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("conversation: unmarshal %q: %w", sessionID, err)
	}
	return &conv, nil
}

// List returns summaries for every saved conversation, newest first.
func (s *FileStore) List(ctx context.Context) ([]Summary, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("conversation: list: %w", err)
	}

	summaries := make([]Summary, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "session_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.root, name))
		if err != nil {
			continue
		}
		var conv Conversation
		if err := json.Unmarshal(data, &conv); err != nil {
			// Skip corrupt files rather than failing the whole listing.
			continue
		}
		summaries = append(summaries, Summary{
			SessionID: conv.SessionID,
			SavedAt:   conv.SavedAt,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].SavedAt > summaries[j].SavedAt
	})
	return summaries, nil
}
