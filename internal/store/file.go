package store

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"redirect-agent-backend/internal/conversation"
)

type fileSession struct {
	History   []conversation.Message `json:"history"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// FileStore persists one JSON file per session under a directory. It is
// meant for single-instance development setups.
type FileStore struct {
	mu   sync.Mutex
	dir  string
	opts Options
}

func NewFileStore(dir string, opts Options) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	return &FileStore{dir: dir, opts: opts}, nil
}

// path encodes the session id so arbitrary ids map to safe file names.
func (f *FileStore) path(sessionID string) string {
	return filepath.Join(f.dir, base64.RawURLEncoding.EncodeToString([]byte(sessionID))+".json")
}

func (f *FileStore) read(sessionID string) (*fileSession, error) {
	b, err := os.ReadFile(f.path(sessionID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var s fileSession
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	if f.opts.TTL > 0 && time.Since(s.UpdatedAt) > f.opts.TTL {
		return nil, nil
	}
	return &s, nil
}

func (f *FileStore) write(sessionID string, history []conversation.Message) error {
	b, err := json.MarshalIndent(fileSession{
		History:   trim(history, f.opts.MaxMessages),
		UpdatedAt: time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return err
	}
	p := f.path(sessionID)
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, p)
}

func (f *FileStore) Get(_ context.Context, sessionID string) ([]conversation.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, err := f.read(sessionID)
	if err != nil || s == nil || len(s.History) == 0 {
		return nil, err
	}
	return s.History, nil
}

func (f *FileStore) Save(_ context.Context, sessionID string, history []conversation.Message) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.write(sessionID, history)
}

func (f *FileStore) Append(_ context.Context, sessionID string, msgs ...conversation.Message) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s, err := f.read(sessionID)
	if err != nil {
		return err
	}
	var history []conversation.Message
	if s != nil {
		history = s.History
	}
	return f.write(sessionID, append(history, msgs...))
}

func (f *FileStore) Delete(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path(sessionID)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (f *FileStore) Ping(context.Context) error {
	_, err := os.Stat(f.dir)
	return err
}

func (f *FileStore) Close() error { return nil }
