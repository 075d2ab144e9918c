package flowsession

import (
	"context"
	"errors"
	"sync"
)

// InMemoryRepo is a thread-safe in-memory implementation of the Repo interface.
// Suitable for a single-instance deployment; clustered deployments should use
// RedisRepo so all instances share one store.
type InMemoryRepo struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewInMemoryRepo creates a new in-memory flow session repository.
func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		sessions: make(map[string]*Session),
	}
}

// Upsert stores or replaces the session for a key. A second Initiate from the
// same browser overwrites the first attempt's state (last writer wins).
func (r *InMemoryRepo) Upsert(_ context.Context, key string, session *Session) error {
	if key == "" {
		return errors.New("session key cannot be empty")
	}
	if session == nil {
		return errors.New("session cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Store a copy to prevent external modifications
	copied := *session
	r.sessions[key] = &copied

	return nil
}

// Consume returns the session for a key and removes it in the same critical
// section, so a replayed callback can never observe it a second time.
func (r *InMemoryRepo) Consume(_ context.Context, key string) (*Session, error) {
	if key == "" {
		return nil, ErrNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.sessions[key]
	if !exists {
		return nil, ErrNotFound
	}
	delete(r.sessions, key)

	copied := *session
	return &copied, nil
}

// Delete removes a session without reading it.
func (r *InMemoryRepo) Delete(_ context.Context, key string) error {
	if key == "" {
		return errors.New("session key cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, key)
	return nil
}
