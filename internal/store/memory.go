package store

import (
	"context"
	"sync"

	"github.com/i474232898/solar-yield-forecast/internal/solar"
)

// MemoryStore is a concurrency-safe in-memory snapshot cache. It keeps the
// snapshot for the lifetime of the process only.
type MemoryStore struct {
	mu   sync.RWMutex
	snap *solar.CacheSnapshot

	// saves counts successful Save calls.
	saves int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(_ context.Context) (solar.CacheSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.snap == nil {
		return solar.CacheSnapshot{}, solar.ErrCacheMiss
	}
	return *s.snap, nil
}

func (s *MemoryStore) Save(_ context.Context, snap solar.CacheSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snap = &snap
	s.saves++
	return nil
}

func (s *MemoryStore) Invalidate(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snap = nil
	return nil
}

// Saves returns how many snapshots have been written.
func (s *MemoryStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}
