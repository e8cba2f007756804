package session

import (
	"context"
	"sync"

	"github.com/hupe1980/carbonmesh/core"
)

// InMemoryStore keeps sessions in a process-local map. Sessions are created
// lazily on first Get and live until Delete or process teardown; deployments
// that need bounded retention should use the Redis store instead.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*core.Session
}

// NewInMemoryStore creates an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: map[string]*core.Session{}}
}

// Get returns the session for id, creating it if absent.
func (s *InMemoryStore) Get(_ context.Context, id string) (*core.Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return sess, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		return sess, nil
	}
	sess = core.NewSession(id)
	s.sessions[id] = sess
	return sess, nil
}

// ApplyDelta merges the delta into the session's state, creating the session
// if needed.
func (s *InMemoryStore) ApplyDelta(ctx context.Context, id string, delta map[string]any) error {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	sess.ApplyStateDelta(delta)
	return nil
}

// Delete removes the session.
func (s *InMemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// Len returns the number of live sessions.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

var _ core.SessionStore = (*InMemoryStore)(nil)
