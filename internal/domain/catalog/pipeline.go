// Package catalog projects an enriched catalog into filtered, sorted rows and
// catalog-wide aggregates.
package catalog

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/okian/restock/internal/domain/model"
	"github.com/okian/restock/internal/domain/types"
	"github.com/okian/restock/pkg/metrics"
)

const defaultProgramCacheSize = 128

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithProgramCacheSize bounds the number of compiled expressions kept.
func WithProgramCacheSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.cacheSize = n
		}
	}
}

// Pipeline runs catalog queries. It never mutates its input and is safe for
// concurrent use.
type Pipeline struct {
	env       *cel.Env
	cacheSize int

	mu       sync.RWMutex
	programs map[string]cel.Program
}

// NewPipeline builds the expression environment.
func NewPipeline(opts ...Option) (*Pipeline, error) {
	env, err := cel.NewEnv(
		cel.Variable("item", cel.MapType(cel.StringType, cel.DynType)),
		cel.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		return nil, fmt.Errorf("create expression environment: %w", err)
	}
	p := &Pipeline{
		env:       env,
		cacheSize: defaultProgramCacheSize,
		programs:  make(map[string]cel.Program),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Run filters and sorts items per q and summarizes the full input.
// Stages run in order: text, reorder-only, expression, stable sort.
func (p *Pipeline) Run(items []model.EnrichedItem, q Query) ([]model.EnrichedItem, types.Summary, error) {
	start := time.Now()
	defer func() { metrics.RecordPipelineRun(float64(time.Since(start).Microseconds()) / 1000) }()

	key := q.SortKey
	if key == "" {
		key = DefaultSortKey
	}
	less, err := Comparator(key)
	if err != nil {
		return nil, types.Summary{}, err
	}

	var prg cel.Program
	if expr := strings.TrimSpace(q.Expr); expr != "" {
		if prg, err = p.program(expr); err != nil {
			metrics.RecordPipelineExprError()
			return nil, types.Summary{}, err
		}
	}

	text := strings.ToLower(strings.TrimSpace(q.Text))
	rows := make([]model.EnrichedItem, 0, len(items))
	for _, it := range items {
		if text != "" && !matchesText(it, text) {
			continue
		}
		if q.OnlyReorder && !it.Reorder.NeedsReorder {
			continue
		}
		if prg != nil {
			ok, err := evalBool(prg, it)
			if err != nil {
				metrics.RecordPipelineExprError()
				return nil, types.Summary{}, err
			}
			if !ok {
				continue
			}
		}
		rows = append(rows, it)
	}

	if q.Ascending {
		slices.SortStableFunc(rows, less)
	} else {
		slices.SortStableFunc(rows, func(a, b model.EnrichedItem) int { return less(b, a) })
	}

	return rows, Summarize(items), nil
}

// Summarize computes the catalog-wide aggregates. The mean inventory is
// rounded to one decimal and is zero for an empty catalog.
func Summarize(items []model.EnrichedItem) types.Summary {
	s := types.Summary{TotalProducts: len(items)}
	if len(items) == 0 {
		return s
	}
	var inv int64
	for _, it := range items {
		inv += int64(it.CurrentInventory)
		if it.Reorder.NeedsReorder {
			s.ReorderCount++
		}
	}
	s.AvgInventory = math.Round(float64(inv)/float64(len(items))*10) / 10
	return s
}

func matchesText(it model.EnrichedItem, text string) bool {
	return strings.Contains(strings.ToLower(it.Name), text) ||
		strings.Contains(strings.ToLower(it.SKU), text)
}

// Comparator returns the ascending order of key. Unbounded weeks of stock
// sort after every finite value.
func Comparator(key SortKey) (func(a, b model.EnrichedItem) int, error) {
	switch key {
	case SortNeedsReorder:
		return func(a, b model.EnrichedItem) int {
			return cmp.Compare(boolRank(a.Reorder.NeedsReorder), boolRank(b.Reorder.NeedsReorder))
		}, nil
	case SortName:
		return func(a, b model.EnrichedItem) int {
			return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		}, nil
	case SortCurrentInventory:
		return func(a, b model.EnrichedItem) int {
			return cmp.Compare(a.CurrentInventory, b.CurrentInventory)
		}, nil
	case SortAvgSalesPerWeek:
		return func(a, b model.EnrichedItem) int {
			return cmp.Compare(a.AvgSalesPerWeek, b.AvgSalesPerWeek)
		}, nil
	case SortDaysToReplenish:
		return func(a, b model.EnrichedItem) int {
			return cmp.Compare(a.DaysToReplenish, b.DaysToReplenish)
		}, nil
	case SortWeeksOfStock:
		return func(a, b model.EnrichedItem) int {
			return cmp.Compare(a.Reorder.WeeksOfStock.SortValue(), b.Reorder.WeeksOfStock.SortValue())
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSortKey, key)
	}
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

// program returns the compiled expression, compiling and caching on miss.
func (p *Pipeline) program(expr string) (cel.Program, error) {
	p.mu.RLock()
	prg, ok := p.programs[expr]
	p.mu.RUnlock()
	if ok {
		return prg, nil
	}

	ast, issues := p.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidExpression, issues.Err())
	}
	if t := ast.OutputType(); !t.IsExactType(cel.BoolType) && !t.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("%w: expression yields %s, want bool", ErrInvalidExpression, t)
	}
	prg, err := p.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidExpression, err)
	}

	p.mu.Lock()
	if len(p.programs) >= p.cacheSize {
		clear(p.programs)
	}
	p.programs[expr] = prg
	p.mu.Unlock()
	return prg, nil
}

func evalBool(prg cel.Program, it model.EnrichedItem) (bool, error) {
	out, _, err := prg.Eval(map[string]any{"item": exprInput(it)})
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrInvalidExpression, err)
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("%w: expression yields %T, want bool", ErrInvalidExpression, out.Value())
	}
	return b, nil
}

func exprInput(it model.EnrichedItem) map[string]any {
	return map[string]any{
		"id":                  it.ID,
		"name":                it.Name,
		"sku":                 it.SKU,
		"currentInventory":    int64(it.CurrentInventory),
		"avgSalesPerWeek":     it.AvgSalesPerWeek,
		"daysToReplenish":     int64(it.DaysToReplenish),
		"needsReorder":        it.Reorder.NeedsReorder,
		"suggestedReorderQty": int64(it.Reorder.SuggestedReorderQty),
		"weeksOfStock":        it.Reorder.WeeksOfStock.SortValue(),
		"unbounded":           it.Reorder.WeeksOfStock.IsUnbounded(),
	}
}
