package catalog

import (
	"fmt"
	"strings"
)

// SortKey names an EnrichedItem attribute the pipeline can order by.
type SortKey string

// Supported sort keys.
const (
	SortNeedsReorder     SortKey = "needsReorder"
	SortName             SortKey = "name"
	SortCurrentInventory SortKey = "currentInventory"
	SortAvgSalesPerWeek  SortKey = "avgSalesPerWeek"
	SortDaysToReplenish  SortKey = "daysToReplenish"
	SortWeeksOfStock     SortKey = "weeksOfStock"
)

// DefaultSortKey is used when a query names no key.
const DefaultSortKey = SortNeedsReorder

// SortKeys lists every supported key in display order.
func SortKeys() []SortKey {
	return []SortKey{
		SortNeedsReorder,
		SortName,
		SortCurrentInventory,
		SortAvgSalesPerWeek,
		SortDaysToReplenish,
		SortWeeksOfStock,
	}
}

// ParseSortKey resolves s case-insensitively. Blank input yields DefaultSortKey.
func ParseSortKey(s string) (SortKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultSortKey, nil
	}
	for _, k := range SortKeys() {
		if strings.EqualFold(s, string(k)) {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSortKey, s)
}

// Query holds the view parameters. The zero value matches everything and
// sorts by needsReorder descending.
type Query struct {
	// Text is matched case-insensitively against name and SKU.
	Text string
	// OnlyReorder keeps only items flagged for reorder.
	OnlyReorder bool
	// Expr is an optional CEL boolean expression over `item`.
	Expr string
	// SortKey defaults to DefaultSortKey when empty.
	SortKey SortKey
	// Ascending flips the default descending order.
	Ascending bool
}
