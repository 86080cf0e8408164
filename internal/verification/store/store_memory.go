// Package store provides the persistence backends for verification
// sessions.
package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"verify-gateway/internal/verification"
	"verify-gateway/pkg/platform/sentinel"
)

// InMemoryStore keeps sessions in a map. Used in tests and local runs
// without Postgres.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]verification.Session
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[uuid.UUID]verification.Session)}
}

func (s *InMemoryStore) Save(_ context.Context, session verification.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id uuid.UUID) (verification.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return verification.Session{}, sentinel.ErrNotFound
	}
	return session, nil
}
