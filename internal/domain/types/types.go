// Package types contains common types used across the application
package types

import "github.com/okian/restock/internal/domain/model"

// Summary holds the dashboard aggregates of a catalog.
type Summary struct {
	TotalProducts int     `json:"totalProducts"`
	ReorderCount  int     `json:"reorderCount"`
	AvgInventory  float64 `json:"avgInventory"`
}

// LoadReport describes the outcome of enriching one catalog.
type LoadReport struct {
	Received   int               `json:"received"`
	Accepted   int               `json:"accepted"`
	Rejected   []model.Rejection `json:"rejected"`
	DurationMS int64             `json:"durationMs"`
	Summary    Summary           `json:"summary"`
}

// Complete reports whether every received item was accepted.
func (r LoadReport) Complete() bool {
	return len(r.Rejected) == 0 && r.Accepted == r.Received
}
