// Package model contains domain models passed between layers.
package model

// CatalogItem is one augmented catalog record as consumed by the reorder engine.
type CatalogItem struct {
	ID               string  `json:"id" validate:"required"`
	Name             string  `json:"name"`
	SKU              string  `json:"sku"`
	CurrentInventory int     `json:"currentInventory" validate:"gte=0"`
	AvgSalesPerWeek  float64 `json:"avgSalesPerWeek" validate:"finite,gte=0,lte=1e9"`
	DaysToReplenish  int     `json:"daysToReplenish" validate:"gt=0"`
}

// FeatureVector is the classifier input. The order of the three values is part
// of the trained model's contract.
type FeatureVector [3]float64

// Features copies the item fields into a FeatureVector without normalization.
func (c CatalogItem) Features() FeatureVector {
	return FeatureVector{
		float64(c.CurrentInventory),
		c.AvgSalesPerWeek,
		float64(c.DaysToReplenish),
	}
}

// ReorderDecision is the outcome of evaluating a single item.
type ReorderDecision struct {
	NeedsReorder        bool         `json:"needsReorder"`
	SuggestedReorderQty int          `json:"suggestedReorderQty"`
	WeeksOfStock        WeeksOfStock `json:"weeksOfStock"`
}

// EnrichedItem is a catalog item together with its reorder decision.
// It is built once per load and never re-derived.
type EnrichedItem struct {
	CatalogItem
	Reorder ReorderDecision `json:"reorder"`
}

// Rejection reports an item that was excluded from a load.
type Rejection struct {
	Index  int    `json:"index"`
	ID     string `json:"id"`
	Reason string `json:"reason"`
}
