// Package store persists per-session conversation history.
package store

import (
	"context"
	"errors"
	"time"

	"redirect-agent-backend/internal/conversation"
)

// SessionStore keeps the bounded history of every session. Implementations
// trim to Options.MaxMessages on every write, so Append never grows a session
// past the memory window.
type SessionStore interface {
	// Get returns the session history, or nil when the session is unknown or
	// expired.
	Get(ctx context.Context, sessionID string) ([]conversation.Message, error)

	// Save replaces the whole history of a session.
	Save(ctx context.Context, sessionID string, history []conversation.Message) error

	// Append adds entries to the end of the history in one atomic step.
	Append(ctx context.Context, sessionID string, msgs ...conversation.Message) error

	// Delete removes a session. Deleting an unknown session is not an error.
	Delete(ctx context.Context, sessionID string) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend connection.
	Close() error
}

// Options apply to every backend.
type Options struct {
	// MaxMessages bounds stored history; 0 keeps everything.
	MaxMessages int
	// TTL expires sessions that were not written for this long; 0 disables.
	TTL time.Duration
}

var ErrEmptySessionID = errors.New("session id is required")

func trim(msgs []conversation.Message, max int) []conversation.Message {
	if max > 0 && len(msgs) > max {
		return msgs[len(msgs)-max:]
	}
	return msgs
}
