// Package preferences hands a submitted workout request over to the OAuth
// callback that builds the playlist.
package preferences

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/osa030/xflow/internal/domain/workout"
)

var ErrMissingSessionState = errors.New("missing session state")

// Store saves workout requests between the form submission and the callback.
// Load returns ErrMissingSessionState for unknown or expired ids.
type Store interface {
	Save(ctx context.Context, id string, req workout.Request) error
	Load(ctx context.Context, id string) (workout.Request, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// NewID returns a fresh opaque session id.
func NewID() string {
	return uuid.NewString()
}

type entry struct {
	req       workout.Request
	expiresAt time.Time
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore creates a new MemoryStore. Entries expire after ttl; a
// non-positive ttl keeps them until deleted.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryStore) Save(ctx context.Context, id string, req workout.Request) error {
	if id == "" {
		return errors.New("session id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.purgeLocked()
	e := entry{req: cloneRequest(req)}
	if s.ttl > 0 {
		e.expiresAt = s.now().Add(s.ttl)
	}
	s.entries[id] = e
	return nil
}

func (s *MemoryStore) Load(ctx context.Context, id string) (workout.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok || s.expired(e) {
		return workout.Request{}, errors.Wrapf(ErrMissingSessionState, "session %q", id)
	}
	return cloneRequest(e.req), nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

// Len returns the number of live entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, e := range s.entries {
		if !s.expired(e) {
			n++
		}
	}
	return n
}

func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) expired(e entry) bool {
	return !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt)
}

// purgeLocked drops expired entries. The caller holds the write lock.
func (s *MemoryStore) purgeLocked() {
	for id, e := range s.entries {
		if s.expired(e) {
			delete(s.entries, id)
		}
	}
}

func cloneRequest(req workout.Request) workout.Request {
	req.Genres = append([]string(nil), req.Genres...)
	return req
}
