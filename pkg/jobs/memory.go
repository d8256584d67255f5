package jobs

import (
	"context"
	"sync"

	"github.com/distkit/conveyor/pkg/clock"
)

// MemoryStore is a process-local job store for single-process substrates and
// tests.
type MemoryStore struct {
	mu    sync.RWMutex
	jobs  map[string]Record
	clock clock.Clock
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(clock.NewReal())
}

// NewMemoryStoreWithClock creates a store stamping records with the given
// clock.
func NewMemoryStoreWithClock(c clock.Clock) *MemoryStore {
	return &MemoryStore{
		jobs:  make(map[string]Record),
		clock: c,
	}
}

// SaveJob creates or updates a job record
func (s *MemoryStore) SaveJob(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.UpdatedAt = s.clock.Now()
	s.jobs[rec.ID] = rec
	return nil
}

// GetJob retrieves a job record, or ErrJobNotFound
func (s *MemoryStore) GetJob(_ context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return &rec, nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}
