package probe

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"

	"github.com/okian/restock/internal/domain/catalog"
	"github.com/okian/restock/internal/domain/model"
	"github.com/okian/restock/internal/domain/reorder"
	"github.com/okian/restock/internal/domain/types"
)

// noMatchText is a filter no catalog name or SKU contains.
const noMatchText = "zz-probe-no-match-zz"

// check is one invariant. It returns a non-nil error describing the violation.
type check struct {
	name string
	run  func(ctx context.Context, c *client) error
}

func checkHealth(ctx context.Context, c *client) error {
	var h health
	if err := c.getJSON(ctx, "/healthz", nil, &h); err != nil {
		return err
	}
	if h.Status != "ok" {
		return fmt.Errorf("status is %q", h.Status)
	}
	if !h.ClassifierReady {
		return errors.New("classifier is not ready")
	}
	return nil
}

// checkSummary verifies that the aggregates describe the unfiltered catalog.
func checkSummary(ctx context.Context, c *client) error {
	view, err := c.catalog(ctx, nil)
	if err != nil {
		return err
	}
	var sum types.Summary
	if err := c.getJSON(ctx, "/summary", nil, &sum); err != nil {
		return err
	}
	if view.Summary != sum {
		return fmt.Errorf("catalog summary %+v differs from /summary %+v", view.Summary, sum)
	}
	if want := catalog.Summarize(view.Items); want != sum {
		return fmt.Errorf("summary %+v does not match the %d catalog rows (%+v)", sum, len(view.Items), want)
	}
	if view.Count != len(view.Items) {
		return fmt.Errorf("count %d but %d rows", view.Count, len(view.Items))
	}
	return nil
}

// checkDecisions verifies every row's derived fields against its inputs.
func checkDecisions(ctx context.Context, c *client) error {
	view, err := c.catalog(ctx, nil)
	if err != nil {
		return err
	}
	for _, it := range view.Items {
		if err := decisionConsistent(it); err != nil {
			return err
		}
	}
	return nil
}

func decisionConsistent(it model.EnrichedItem) error {
	d := it.Reorder
	wantQty := 0
	if d.NeedsReorder {
		wantQty = reorder.SuggestedQty(it.AvgSalesPerWeek)
	}
	if d.SuggestedReorderQty != wantQty {
		return fmt.Errorf("item %q: suggestedReorderQty %d, want %d", it.ID, d.SuggestedReorderQty, wantQty)
	}
	want := reorder.WeeksOfStock(it.CurrentInventory, it.AvgSalesPerWeek)
	if want.IsUnbounded() != d.WeeksOfStock.IsUnbounded() {
		return fmt.Errorf("item %q: weeksOfStock %s, want %s", it.ID, d.WeeksOfStock, want)
	}
	got, _ := d.WeeksOfStock.Value()
	exp, _ := want.Value()
	if math.Abs(got-exp) > 1e-9 {
		return fmt.Errorf("item %q: weeksOfStock %s, want %s", it.ID, d.WeeksOfStock, want)
	}
	return nil
}

func checkReorderOnly(ctx context.Context, c *client) error {
	view, err := c.catalog(ctx, url.Values{"only_reorder": {"true"}})
	if err != nil {
		return err
	}
	for _, it := range view.Items {
		if !it.Reorder.NeedsReorder {
			return fmt.Errorf("item %q is not flagged but passed the reorder-only filter", it.ID)
		}
	}
	if len(view.Items) != view.Summary.ReorderCount {
		return fmt.Errorf("reorder-only returned %d rows, summary counts %d", len(view.Items), view.Summary.ReorderCount)
	}
	return nil
}

// checkConjunctive verifies that the filters narrow each other.
func checkConjunctive(ctx context.Context, c *client) error {
	view, err := c.catalog(ctx, url.Values{"q": {noMatchText}, "only_reorder": {"true"}})
	if err != nil {
		return err
	}
	if len(view.Items) != 0 {
		return fmt.Errorf("non-matching text with reorder-only returned %d rows", len(view.Items))
	}

	all, err := c.catalog(ctx, nil)
	if err != nil || len(all.Items) == 0 {
		return err
	}
	text := strings.ToLower(all.Items[0].Name)
	view, err = c.catalog(ctx, url.Values{"q": {text}, "only_reorder": {"true"}})
	if err != nil {
		return err
	}
	for _, it := range view.Items {
		if !it.Reorder.NeedsReorder {
			return fmt.Errorf("item %q is not flagged", it.ID)
		}
		if !strings.Contains(strings.ToLower(it.Name), text) && !strings.Contains(strings.ToLower(it.SKU), text) {
			return fmt.Errorf("item %q does not match %q", it.ID, text)
		}
	}
	return nil
}

// checkItemLookup verifies that single item reads agree with the catalog.
func checkItemLookup(ctx context.Context, c *client) error {
	all, err := c.catalog(ctx, nil)
	if err != nil || len(all.Items) == 0 {
		return err
	}
	want := all.Items[0]
	var got model.EnrichedItem
	if err := c.getJSON(ctx, "/items/"+url.PathEscape(want.ID), nil, &got); err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("item %q differs from its catalog row", want.ID)
	}
	return nil
}

// sortCheck verifies that key orders the catalog in the given direction
// without dropping rows.
func sortCheck(key catalog.SortKey, ascending bool) check {
	order := "desc"
	if ascending {
		order = "asc"
	}
	return check{
		name: fmt.Sprintf("sort %s %s", key, order),
		run: func(ctx context.Context, c *client) error {
			cmp, err := catalog.Comparator(key)
			if err != nil {
				return err
			}
			view, err := c.catalog(ctx, url.Values{"sort": {string(key)}, "order": {order}})
			if err != nil {
				return err
			}
			if len(view.Items) != view.Summary.TotalProducts {
				return fmt.Errorf("%d rows for %d products", len(view.Items), view.Summary.TotalProducts)
			}
			for i := 1; i < len(view.Items); i++ {
				r := cmp(view.Items[i-1], view.Items[i])
				if (ascending && r > 0) || (!ascending && r < 0) {
					return fmt.Errorf("rows %d (%q) and %d (%q) are out of order", i-1, view.Items[i-1].ID, i, view.Items[i].ID)
				}
			}
			return nil
		},
	}
}

func checks() []check {
	return []check{
		{name: "health", run: checkHealth},
		{name: "summary", run: checkSummary},
		{name: "decisions", run: checkDecisions},
		{name: "reorder-only", run: checkReorderOnly},
		{name: "conjunctive filters", run: checkConjunctive},
		{name: "item lookup", run: checkItemLookup},
	}
}

func sortChecks() []check {
	var out []check
	for _, key := range catalog.SortKeys() {
		out = append(out, sortCheck(key, true), sortCheck(key, false))
	}
	return out
}
