package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"redirect-agent-backend/internal/conversation"
	"redirect-agent-backend/internal/db"
)

// DatabaseStore stores session history as a JSONB array in PostgreSQL.
// Append and trim happen in a single statement, so concurrent appends to the
// same session do not lose entries.
type DatabaseStore struct {
	db   *db.DB
	opts Options
}

func NewDatabaseStore(database *db.DB, opts Options) *DatabaseStore {
	return &DatabaseStore{db: database, opts: opts}
}

const (
	selectHistorySQL = `
		SELECT history
		FROM conversation_sessions
		WHERE session_id = $1 AND updated_at > $2
	`

	saveHistorySQL = `
		INSERT INTO conversation_sessions (session_id, history, created_at, updated_at)
		VALUES ($1, $2::jsonb, NOW(), NOW())
		ON CONFLICT (session_id)
		DO UPDATE SET
			history = EXCLUDED.history,
			updated_at = NOW()
	`

	// Expired rows are reset before the new entries are added; the result is
	// trimmed to the last $3 elements.
	appendHistorySQL = `
		INSERT INTO conversation_sessions AS s (session_id, history, created_at, updated_at)
		VALUES ($1, $2::jsonb, NOW(), NOW())
		ON CONFLICT (session_id)
		DO UPDATE SET
			history = (
				SELECT COALESCE(jsonb_agg(t.e ORDER BY t.i), '[]'::jsonb)
				FROM jsonb_array_elements(
					CASE WHEN s.updated_at > $4 THEN s.history ELSE '[]'::jsonb END || EXCLUDED.history
				) WITH ORDINALITY AS t(e, i)
				WHERE t.i > jsonb_array_length(
					CASE WHEN s.updated_at > $4 THEN s.history ELSE '[]'::jsonb END || EXCLUDED.history
				) - $3
			),
			updated_at = NOW()
	`

	deleteHistorySQL = `DELETE FROM conversation_sessions WHERE session_id = $1`
)

// cutoff is the oldest updated_at still considered live.
func (ds *DatabaseStore) cutoff() time.Time {
	if ds.opts.TTL <= 0 {
		return time.Time{}
	}
	return time.Now().Add(-ds.opts.TTL)
}

func (ds *DatabaseStore) limit() int {
	if ds.opts.MaxMessages <= 0 {
		return math.MaxInt32
	}
	return ds.opts.MaxMessages
}

func (ds *DatabaseStore) Get(ctx context.Context, sessionID string) ([]conversation.Message, error) {
	if sessionID == "" {
		return nil, ErrEmptySessionID
	}
	var raw []byte
	err := ds.db.QueryRowContext(ctx, selectHistorySQL, sessionID, ds.cutoff()).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session history: %w", err)
	}
	var msgs []conversation.Message
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil, fmt.Errorf("failed to decode session history: %w", err)
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	return msgs, nil
}

func (ds *DatabaseStore) Save(ctx context.Context, sessionID string, history []conversation.Message) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}
	b, err := encodeHistory(trim(history, ds.opts.MaxMessages))
	if err != nil {
		return err
	}
	if _, err := ds.db.ExecContext(ctx, saveHistorySQL, sessionID, b); err != nil {
		return fmt.Errorf("failed to save session history: %w", err)
	}
	return nil
}

func (ds *DatabaseStore) Append(ctx context.Context, sessionID string, msgs ...conversation.Message) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}
	b, err := encodeHistory(trim(msgs, ds.opts.MaxMessages))
	if err != nil {
		return err
	}
	if _, err := ds.db.ExecContext(ctx, appendHistorySQL, sessionID, b, ds.limit(), ds.cutoff()); err != nil {
		return fmt.Errorf("failed to append session history: %w", err)
	}
	return nil
}

func (ds *DatabaseStore) Delete(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}
	if _, err := ds.db.ExecContext(ctx, deleteHistorySQL, sessionID); err != nil {
		return fmt.Errorf("failed to delete session history: %w", err)
	}
	return nil
}

func (ds *DatabaseStore) Ping(ctx context.Context) error {
	return ds.db.HealthCheck(ctx)
}

func (ds *DatabaseStore) Close() error {
	return ds.db.Close()
}

func encodeHistory(msgs []conversation.Message) (string, error) {
	if msgs == nil {
		msgs = []conversation.Message{}
	}
	b, err := json.Marshal(msgs)
	if err != nil {
		return "", fmt.Errorf("failed to encode session history: %w", err)
	}
	return string(b), nil
}
