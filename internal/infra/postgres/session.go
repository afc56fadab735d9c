package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/stepstudy/bigbook-rag/internal/core/session"
	"github.com/stepstudy/bigbook-rag/pkg/db"
)

// SessionRepository persists conversation turns in chat_messages.
type SessionRepository struct {
	db *db.DB
}

// NewSessionRepository creates a SessionRepository.
func NewSessionRepository(database *db.DB) *SessionRepository {
	return &SessionRepository{db: database}
}

var _ session.Store = (*SessionRepository)(nil)

// EnsureSchema creates the chat_messages table if it does not exist.
func (r *SessionRepository) EnsureSchema(ctx context.Context) error {
	ddl := `
		CREATE TABLE IF NOT EXISTS chat_messages (
			id BIGSERIAL PRIMARY KEY,
			session_id TEXT NOT NULL,
			ts TIMESTAMPTZ NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL
		)`
	if _, err := r.db.Pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create chat_messages table: %w", err)
	}

	if _, err := r.db.Pool.Exec(ctx, "CREATE INDEX IF NOT EXISTS chat_messages_session_idx ON chat_messages (session_id, id)"); err != nil {
		return fmt.Errorf("failed to create session index: %w", err)
	}

	return nil
}

// Append stores one turn at the end of the session transcript.
func (r *SessionRepository) Append(ctx context.Context, sessionID, role, content string) error {
	_, err := r.db.Pool.Exec(ctx,
		"INSERT INTO chat_messages (session_id, ts, role, content) VALUES ($1, $2, $3, $4)",
		sessionID, time.Now().UTC(), role, content,
	)
	if err != nil {
		return fmt.Errorf("failed to append session turn: %w", err)
	}
	return nil
}

// Load returns the most recent limit turns in oldest-first order.
func (r *SessionRepository) Load(ctx context.Context, sessionID string, limit int) ([]session.Turn, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT role, content FROM (
			SELECT id, role, content
			FROM chat_messages
			WHERE session_id = $1
			ORDER BY id DESC
			LIMIT $2
		) latest
		ORDER BY id ASC`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load session turns: %w", err)
	}
	defer rows.Close()

	var turns []session.Turn
	for rows.Next() {
		var t session.Turn
		if err := rows.Scan(&t.Role, &t.Content); err != nil {
			return nil, fmt.Errorf("failed to scan session turn: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read session turns: %w", err)
	}

	return turns, nil
}
