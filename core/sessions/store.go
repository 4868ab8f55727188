// Package sessions persists the tutor chat session id between runs so a
// conversation can be continued.
package sessions

import (
	"context"
	"errors"
	"sync"
)

var ErrNotFound = errors.New("session not found")

type Store interface {
	// Load returns the session id stored under key or ErrNotFound.
	Load(ctx context.Context, key string) (string, error)
	Save(ctx context.Context, key string, sessionID string) error
}

type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: map[string]string{}}
}

func (s *MemoryStore) Load(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sessionID, ok := s.sessions[key]; ok {
		return sessionID, nil
	}
	return "", ErrNotFound
}

func (s *MemoryStore) Save(_ context.Context, key string, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[key] = sessionID
	return nil
}
