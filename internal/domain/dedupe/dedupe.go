// Package dedupe tracks catalog item identifiers so a load accepts each id once.
package dedupe

import (
	"context"
	"sync"

	"github.com/okian/restock/pkg/metrics"
)

// Deduper records identifiers seen during a catalog load.
type Deduper interface {
	// SeenAndRecord atomically checks whether id was seen and records it if
	// not. It returns true when id is a duplicate.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id, used when an accepted item could not be queued.
	Unrecord(ctx context.Context, id string)

	// Reset forgets every identifier before the next load.
	Reset()

	Size() int64
}

type inMemoryDeduper struct {
	mu           sync.Mutex
	seen         map[string]struct{}
	capacityHint int
}

// NewInMemoryDeduper returns a map-backed Deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{capacityHint: defaultCapacityHint}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]struct{}, d.capacityHint)
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[id]; ok {
		metrics.RecordDuplicateItem()
		return true
	}
	d.seen[id] = struct{}{}
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	delete(d.seen, id)
	d.mu.Unlock()
}

func (d *inMemoryDeduper) Reset() {
	d.mu.Lock()
	d.seen = make(map[string]struct{}, d.capacityHint)
	d.mu.Unlock()
}

func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.seen))
}
