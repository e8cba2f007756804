package core

import (
	"context"
	"sync"
	"time"
)

// Session is per-conversation key/value scratch space, keyed by session id.
// Tools use it to persist small pieces of data (e.g. a generated correlation
// id) across multiple invocations within one reasoning turn. It is safe for
// concurrent access.
type Session struct {
	ID      string         `json:"id"`
	State   map[string]any `json:"state"`
	Created time.Time      `json:"created"`
	Updated time.Time      `json:"updated"`

	mu sync.RWMutex
}

// NewSession creates an empty session with the given id.
func NewSession(id string) *Session {
	now := time.Now()
	return &Session{ID: id, State: map[string]any{}, Created: now, Updated: now}
}

// GetState returns the value and existence flag for a state key.
func (s *Session) GetState(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.State[key]
	return v, ok
}

// SetState sets a key/value pair, updating the Updated timestamp.
func (s *Session) SetState(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State[key] = value
	s.Updated = time.Now()
}

// LoadOrStoreState returns the existing value for key if present. Otherwise
// it stores value and returns it. The loaded result is true if the value was
// already present. The check and the store happen under one lock, so
// concurrent callers agree on a single value.
func (s *Session) LoadOrStoreState(key string, value any) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.State[key]; ok {
		return v, true
	}
	s.State[key] = value
	s.Updated = time.Now()
	return value, false
}

// ApplyStateDelta merges the provided key/value pairs into State.
func (s *Session) ApplyStateDelta(delta map[string]any) {
	if len(delta) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range delta {
		s.State[k] = v
	}
	s.Updated = time.Now()
}

// Clone returns a deep copy of the session safe for independent mutation.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := &Session{ID: s.ID, State: make(map[string]any, len(s.State)), Created: s.Created, Updated: s.Updated}
	for k, v := range s.State {
		clone.State[k] = v
	}
	return clone
}

// SessionStore persists sessions and their evolving state. Get creates the
// session lazily on first reference. Implementations must be safe for
// concurrent use; state written through ApplyDelta must never be observed
// half-merged.
type SessionStore interface {
	Get(ctx context.Context, id string) (*Session, error)
	ApplyDelta(ctx context.Context, id string, delta map[string]any) error
	Delete(ctx context.Context, id string) error
}
