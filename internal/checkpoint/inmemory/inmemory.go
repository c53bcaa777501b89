// Package inmemory provides a non-durable checkpoint store for tests
// and single-process development runs.
package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/questor-ai/questor/internal/checkpoint"
)

type Store struct {
	mu       sync.RWMutex
	sessions map[string][]checkpoint.Record
}

func NewStore() *Store {
	return &Store{sessions: make(map[string][]checkpoint.Record)}
}

func (s *Store) Save(ctx context.Context, sessionID string, state []byte, nextNode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(state))
	copy(cp, state)
	s.sessions[sessionID] = append(s.sessions[sessionID], checkpoint.Record{
		SessionID: sessionID,
		State:     cp,
		NextNode:  nextNode,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (s *Store) Load(ctx context.Context, sessionID string) (checkpoint.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := s.sessions[sessionID]
	if len(recs) == 0 {
		return checkpoint.Record{}, checkpoint.ErrNotFound
	}
	return recs[len(recs)-1], nil
}

func (s *Store) History(ctx context.Context, sessionID string) ([]checkpoint.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := s.sessions[sessionID]
	out := make([]checkpoint.Record, len(recs))
	copy(out, recs)
	return out, nil
}
