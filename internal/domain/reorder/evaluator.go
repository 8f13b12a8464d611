// Package reorder turns catalog items into reorder decisions.
package reorder

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/okian/restock/internal/domain/classifier"
	"github.com/okian/restock/internal/domain/model"
	"github.com/okian/restock/pkg/metrics"
)

// coverWeeks is how many weeks of sales a suggested reorder replenishes.
const coverWeeks = 2

// Predictor returns the reorder probability for a feature vector.
type Predictor interface {
	Predict(ctx context.Context, fv model.FeatureVector) (float64, error)
}

// Evaluator derives reorder decisions. It holds no mutable state and is safe
// for concurrent use.
type Evaluator struct {
	predictor Predictor
	validate  *validator.Validate
}

// NewEvaluator returns an Evaluator backed by predictor.
func NewEvaluator(predictor Predictor) *Evaluator {
	return &Evaluator{
		predictor: predictor,
		validate:  NewValidator(),
	}
}

// NewValidator returns a validator that knows the item rules, including the
// "finite" tag for floats.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		f := fl.Field()
		switch f.Kind() {
		case reflect.Float32, reflect.Float64:
			x := f.Float()
			return !math.IsNaN(x) && !math.IsInf(x, 0)
		default:
			return true
		}
	})
	return v
}

// Validate checks the item invariants without classifying it.
func (e *Evaluator) Validate(item model.CatalogItem) error {
	err := e.validate.Struct(item)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return &MalformedItemError{ID: item.ID, Field: verrs[0].Field(), Rule: verrs[0].Tag()}
	}
	return fmt.Errorf("%w: %w", ErrMalformedItem, err)
}

// Evaluate classifies item and derives its reorder quantity and weeks of stock.
// It waits for the classifier to finish training if it has not yet.
func (e *Evaluator) Evaluate(ctx context.Context, item model.CatalogItem) (model.ReorderDecision, error) {
	if err := e.Validate(item); err != nil {
		metrics.RecordMalformedItem()
		return model.ReorderDecision{}, err
	}

	start := time.Now()
	p, err := e.predictor.Predict(ctx, item.Features())
	metrics.RecordEvaluationLatency(float64(time.Since(start).Milliseconds()))
	if err != nil {
		return model.ReorderDecision{}, err
	}
	metrics.RecordEvaluation()

	return Decide(item, p), nil
}

// Enrich evaluates item and attaches the decision.
func (e *Evaluator) Enrich(ctx context.Context, item model.CatalogItem) (model.EnrichedItem, error) {
	d, err := e.Evaluate(ctx, item)
	if err != nil {
		return model.EnrichedItem{}, err
	}
	return model.EnrichedItem{CatalogItem: item, Reorder: d}, nil
}

// Decide applies the threshold to p and computes the derived metrics.
func Decide(item model.CatalogItem, p float64) model.ReorderDecision {
	needs := p > classifier.Threshold
	d := model.ReorderDecision{
		NeedsReorder: needs,
		WeeksOfStock: WeeksOfStock(item.CurrentInventory, item.AvgSalesPerWeek),
	}
	if needs {
		d.SuggestedReorderQty = SuggestedQty(item.AvgSalesPerWeek)
	}
	return d
}

// SuggestedQty is two weeks of sales rounded up, saturating at math.MaxInt.
func SuggestedQty(avgSalesPerWeek float64) int {
	q := math.Ceil(avgSalesPerWeek * coverWeeks)
	if q >= float64(math.MaxInt) {
		return math.MaxInt
	}
	return int(q)
}

// WeeksOfStock is inventory over weekly sales rounded to two decimals, or
// unbounded when nothing sells. A sales rate so small that the ratio
// overflows float64 is also unbounded.
func WeeksOfStock(inventory int, avgSalesPerWeek float64) model.WeeksOfStock {
	if avgSalesPerWeek <= 0 {
		return model.UnboundedWeeks()
	}
	ratio := float64(inventory) / avgSalesPerWeek
	if math.IsInf(ratio, 0) {
		return model.UnboundedWeeks()
	}
	rounded := math.Round(ratio*100) / 100
	if math.IsInf(rounded, 0) {
		// ratio*100 overflowed; two decimals are below float64 precision here.
		rounded = ratio
	}
	return model.FiniteWeeks(rounded)
}
