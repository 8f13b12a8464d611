package source

import (
	"math"
	"math/rand/v2"
	"sync"

	"github.com/okian/restock/internal/domain/model"
)

// Synthetic field ranges.
const (
	maxInventory    = 500
	maxWeeklySales  = 40
	maxReplenishDay = 30
)

// Augmenter fills the inventory fields upstream records lack with seeded
// random values.
type Augmenter struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewAugmenter returns an Augmenter. Equal seeds give equal catalogs.
func NewAugmenter(seed uint64) *Augmenter {
	return &Augmenter{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Augment maps each record to a CatalogItem. Inventory is in [0,500],
// weekly sales in [0,40] at one decimal and lead time in [1,30] days.
func (a *Augmenter) Augment(products []RawProduct) []model.CatalogItem {
	a.mu.Lock()
	defer a.mu.Unlock()

	items := make([]model.CatalogItem, len(products))
	for i, p := range products {
		items[i] = model.CatalogItem{
			ID:               string(p.ID),
			Name:             p.Title,
			SKU:              string(p.ID),
			CurrentInventory: a.rng.IntN(maxInventory + 1),
			AvgSalesPerWeek:  math.Round(a.rng.Float64()*maxWeeklySales*10) / 10,
			DaysToReplenish:  1 + a.rng.IntN(maxReplenishDay),
		}
	}
	return items
}
