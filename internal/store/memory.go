package store

import (
	"context"
	"sync"
	"time"

	"redirect-agent-backend/internal/conversation"
)

type memorySession struct {
	msgs      []conversation.Message
	updatedAt time.Time
}

// MemoryStore keeps sessions in process memory. History is lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]memorySession
	opts     Options
	now      func() time.Time
}

func NewMemoryStore(opts Options) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]memorySession),
		opts:     opts,
		now:      time.Now,
	}
}

func (m *MemoryStore) Get(_ context.Context, sessionID string) ([]conversation.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok || m.expiredLocked(s) || len(s.msgs) == 0 {
		return nil, nil
	}
	copyMsgs := make([]conversation.Message, len(s.msgs))
	copy(copyMsgs, s.msgs)
	return copyMsgs, nil
}

func (m *MemoryStore) Save(_ context.Context, sessionID string, history []conversation.Message) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sessionID] = memorySession{
		msgs:      trim(append([]conversation.Message(nil), history...), m.opts.MaxMessages),
		updatedAt: m.now(),
	}
	return nil
}

func (m *MemoryStore) Append(_ context.Context, sessionID string, msgs ...conversation.Message) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sessions[sessionID]
	if m.expiredLocked(s) {
		s.msgs = nil
	}
	s.msgs = trim(append(s.msgs, msgs...), m.opts.MaxMessages)
	s.updatedAt = m.now()
	m.sessions[sessionID] = s
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) expiredLocked(s memorySession) bool {
	return m.opts.TTL > 0 && !s.updatedAt.IsZero() && m.now().Sub(s.updatedAt) > m.opts.TTL
}
