// Package audiostore persists synthesized WAV files under a per-session
// directory and serves them back by name. Session ids are sanitised before
// touching the filesystem so a hostile id can never escape the audio root.
package audiostore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// ErrNotFound is returned by Open when the requested artifact does not
// exist. The HTTP layer maps it to a 404.
var ErrNotFound = errors.New("audiostore: file not found")

// unsafeChars matches every character that may not appear in a session id
// on disk.
var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_\-]`)

// SanitizeID replaces every character outside [A-Za-z0-9_-] with an
// underscore. The result is safe to use as a single path element.
func SanitizeID(id string) string {
	return unsafeChars.ReplaceAllString(id, "_")
}

// Store writes and reads session-scoped audio artifacts below a fixed root
// directory. Safe for concurrent use; every artifact is written exactly once
// under a unique name and never updated.
type Store struct {
	root string
}

// NewStore creates a Store rooted at dir, creating it if necessary.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("audiostore: root directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("audiostore: create root: %w", err)
	}
	return &Store{root: dir}, nil
}

// Root returns the store's root directory.
func (s *Store) Root() string { return s.root }

// Save writes one WAV artifact and returns its filename within the session
// directory. The name embeds turn id, language, chunk index, and a
// millisecond timestamp so repeated turns never collide.
func (s *Store) Save(sessionID, turnID, lang string, index int, wavBytes []byte) (string, error) {
	dir := s.sessionDir(sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("audiostore: create session dir: %w", err)
	}

	name := fmt.Sprintf("%s_%s_%d_%d.wav",
		SanitizeID(turnID), SanitizeID(lang), index, time.Now().UnixMilli())
	if err := os.WriteFile(filepath.Join(dir, name), wavBytes, 0o644); err != nil {
		return "", fmt.Errorf("audiostore: write %s: %w", name, err)
	}
	return name, nil
}

// URLPath returns the relative URL under which a saved artifact is served.
func (s *Store) URLPath(sessionID, filename string) string {
	return "/api/audio_file/" + SanitizeID(sessionID) + "/" + filename
}

// Open returns a reader for a previously saved artifact. The filename must
// be a bare name inside the session directory; anything containing a path
// separator or resolving outside it is rejected as not found.
func (s *Store) Open(sessionID, filename string) (io.ReadCloser, error) {
	if filename == "" || filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") {
		return nil, ErrNotFound
	}

	path := filepath.Join(s.sessionDir(sessionID), filename)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("audiostore: open %s: %w", filename, err)
	}
	return f, nil
}

func (s *Store) sessionDir(sessionID string) string {
	return filepath.Join(s.root, "session_"+SanitizeID(sessionID))
}
