// Package postgres provides a conversation.Store backed by PostgreSQL,
// storing each session's history as a JSONB payload keyed by session ID.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tesoro-app/tesoro/internal/conversation"
)

// Schema is the SQL DDL for the conversations table. Execute it via
// [Store.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS conversations (
    session_id TEXT PRIMARY KEY,
    payload    JSONB NOT NULL,
    saved_at   BIGINT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_conversations_saved_at ON conversations(saved_at DESC);
`

// DB is the database interface used by [Store]. Both *pgxpool.Pool and
// *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store is a conversation.Store backed by a PostgreSQL database.
type Store struct {
	db DB
}

// Compile-time interface checks.
var (
	_ conversation.Store  = (*Store)(nil)
	_ conversation.Pinger = (*Store)(nil)
)

// New creates a Store using the given connection or pool. The caller is
// responsible for calling [Store.Migrate] before issuing queries.
func New(db DB) *Store {
	return &Store{db: db}
}

// Migrate executes the [Schema] DDL, creating the conversations table and
// index if they do not already exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("conversation: migrate: %w", err)
	}
	return nil
}

// Ping verifies the database is reachable. Implements [conversation.Pinger].
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, "SELECT 1"); err != nil {
		return fmt.Errorf("conversation: ping: %w", err)
	}
	return nil
}

// Save upserts the conversation snapshot for its session.
func (s *Store) Save(ctx context.Context, conv *conversation.Conversation) error {
	if conv.SessionID == "" {
		return fmt.Errorf("conversation: session id must not be empty")
	}
	conversation.Prepare(conv)

	payload, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("conversation: marshal: %w", err)
	}

	const query = `
		INSERT INTO conversations (session_id, payload, saved_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_id) DO UPDATE SET
			payload = EXCLUDED.payload,
			saved_at = EXCLUDED.saved_at`

	if _, err := s.db.Exec(ctx, query, conv.SessionID, payload, conv.SavedAt); err != nil {
		return fmt.Errorf("conversation: save %q: %w", conv.SessionID, err)
	}
	return nil
}

// Load retrieves the saved conversation for a session. Returns
// conversation.ErrNotFound when the session has never been saved.
func (s *Store) Load(ctx context.Context, sessionID string) (*conversation.Conversation, error) {
	const query = `SELECT payload FROM conversations WHERE session_id = $1`

	var payload []byte
	err := s.db.QueryRow(ctx, query, sessionID).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: session %q", conversation.ErrNotFound, sessionID)
		}
		return nil, fmt.Errorf("conversation: load %q: %w", sessionID, err)
	}

	var conv conversation.Conversation
	if err := json.Unmarshal(payload, &conv); err != nil {
		return nil, fmt.Errorf("conversation: unmarshal %q: %w", sessionID, err)
	}
	return &conv, nil
}

// List returns summaries for every saved conversation, newest first.
func (s *Store) List(ctx context.Context) ([]conversation.Summary, error) {
	const query = `SELECT session_id, saved_at FROM conversations ORDER BY saved_at DESC`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("conversation: list: %w", err)
	}
	defer rows.Close()

	var summaries []conversation.Summary
	for rows.Next() {
		var sum conversation.Summary
		if err := rows.Scan(&sum.SessionID, &sum.SavedAt); err != nil {
			return nil, fmt.Errorf("conversation: list scan: %w", err)
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conversation: list: %w", err)
	}
	return summaries, nil
}
