package ratelimit

import (
	"context"
	"slices"
	"sync"
	"time"
)

// Store holds per-key request timestamps in ascending order.
type Store interface {
	Get(ctx context.Context, key string) ([]time.Time, error)
	Add(ctx context.Context, key string, at time.Time) error

	// Prune drops timestamps at or before cutoff.
	Prune(ctx context.Context, key string, cutoff time.Time) error
	Delete(ctx context.Context, key string) error

	// GC prunes every key against cutoff, removes keys left empty and returns how many keys remain.
	GC(ctx context.Context, cutoff time.Time) (int, error)
}

// MemoryStore is an in-process Store. Counters are lost on restart.
type MemoryStore struct {
	mu   sync.Mutex
	hits map[string][]time.Time
}

var _ Store = &MemoryStore{} // Compile-time check

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{hits: make(map[string][]time.Time)}
}

// Get implements the Store interface.
func (m *MemoryStore) Get(_ context.Context, key string) ([]time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.hits[key]), nil
}

// Add implements the Store interface.
func (m *MemoryStore) Add(_ context.Context, key string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	hits := m.hits[key]
	i, _ := slices.BinarySearchFunc(hits, at, func(a, b time.Time) int { return a.Compare(b) })
	for i < len(hits) && hits[i].Equal(at) {
		i++
	}
	m.hits[key] = slices.Insert(hits, i, at)
	return nil
}

// Prune implements the Store interface.
func (m *MemoryStore) Prune(_ context.Context, key string, cutoff time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneLocked(key, cutoff)
	return nil
}

// Delete implements the Store interface.
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.hits, key)
	return nil
}

// GC implements the Store interface.
func (m *MemoryStore) GC(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.hits {
		m.pruneLocked(key, cutoff)
	}
	return len(m.hits), nil
}

func (m *MemoryStore) pruneLocked(key string, cutoff time.Time) {
	hits := m.hits[key]
	n := len(hits) - countAfter(hits, cutoff)
	if n == 0 {
		return
	}
	if n == len(hits) {
		delete(m.hits, key)
		return
	}
	m.hits[key] = slices.Clone(hits[n:])
}
