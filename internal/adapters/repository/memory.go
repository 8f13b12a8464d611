package repository

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/okian/restock/internal/domain/model"
	"github.com/okian/restock/pkg/metrics"
)

const backendMemory = "memory"

type indexedSnapshot struct {
	Snapshot
	byID map[string]int
}

// MemoryStore keeps the current snapshot behind an atomic pointer so readers
// never block a publisher.
type MemoryStore struct {
	current atomic.Pointer[indexedSnapshot]
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func index(snap Snapshot) *indexedSnapshot {
	byID := make(map[string]int, len(snap.Items))
	for i, it := range snap.Items {
		byID[it.ID] = i
	}
	return &indexedSnapshot{Snapshot: snap, byID: byID}
}

// Replace publishes snap.
func (s *MemoryStore) Replace(_ context.Context, snap Snapshot) error {
	s.current.Store(index(snap))
	metrics.RecordStoreReplace(backendMemory)
	return nil
}

// Snapshot returns the current snapshot.
func (s *MemoryStore) Snapshot(_ context.Context) (Snapshot, error) {
	start := time.Now()
	defer observeRead(backendMemory, start)

	cur := s.current.Load()
	if cur == nil {
		return Snapshot{}, ErrNoSnapshot
	}
	return cur.Snapshot, nil
}

// Get returns the item with id.
func (s *MemoryStore) Get(_ context.Context, id string) (model.EnrichedItem, error) {
	start := time.Now()
	defer observeRead(backendMemory, start)

	cur := s.current.Load()
	if cur == nil {
		return model.EnrichedItem{}, ErrNoSnapshot
	}
	i, ok := cur.byID[id]
	if !ok {
		return model.EnrichedItem{}, ErrNotFound
	}
	return cur.Items[i], nil
}

// Count returns the current item count.
func (s *MemoryStore) Count(_ context.Context) int {
	cur := s.current.Load()
	if cur == nil {
		return 0
	}
	return len(cur.Items)
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

func observeRead(backend string, start time.Time) {
	metrics.RecordStoreQueryLatency(backend, float64(time.Since(start).Microseconds())/1000)
}
