// Package repository stores the published catalog snapshot.
package repository

import (
	"context"
	"time"

	"github.com/okian/restock/internal/domain/model"
	"github.com/okian/restock/internal/domain/types"
)

// Snapshot is one fully enriched catalog. It is published whole and never
// modified afterwards.
type Snapshot struct {
	Items      []model.EnrichedItem `json:"items"`
	Rejections []model.Rejection    `json:"rejections"`
	Summary    types.Summary        `json:"summary"`
	LoadedAt   time.Time            `json:"loadedAt"`
}

// Store publishes and serves catalog snapshots.
type Store interface {
	// Replace atomically swaps in snap as the current catalog.
	Replace(ctx context.Context, snap Snapshot) error

	// Snapshot returns the current catalog or ErrNoSnapshot.
	Snapshot(ctx context.Context) (Snapshot, error)

	// Get returns one item of the current catalog or ErrNotFound.
	Get(ctx context.Context, id string) (model.EnrichedItem, error)

	// Count returns the number of items in the current catalog.
	Count(ctx context.Context) int

	Close() error
}
