package reorder_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/goccy/go-json"

	"github.com/okian/restock/internal/domain/classifier"
	"github.com/okian/restock/internal/domain/model"
	"github.com/okian/restock/internal/domain/reorder"
	"github.com/okian/restock/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

type stubPredictor struct {
	p     float64
	err   error
	calls int
}

func (s *stubPredictor) Predict(_ context.Context, _ model.FeatureVector) (float64, error) {
	s.calls++
	return s.p, s.err
}

func widget() model.CatalogItem {
	return model.CatalogItem{
		ID:               "1",
		Name:             "Widget",
		SKU:              "1",
		CurrentInventory: 0,
		AvgSalesPerWeek:  10,
		DaysToReplenish:  7,
	}
}

func TestEvaluator_Evaluate(t *testing.T) {
	Convey("Given an evaluator", t, func() {
		ctx := context.Background()
		stub := &stubPredictor{p: 0.9}
		ev := reorder.NewEvaluator(stub)

		Convey("When the classifier says reorder for an empty shelf", func() {
			d, err := ev.Evaluate(ctx, widget())

			Convey("Then two weeks of sales are suggested", func() {
				So(err, ShouldBeNil)
				So(d.NeedsReorder, ShouldBeTrue)
				So(d.SuggestedReorderQty, ShouldEqual, 20)
				v, ok := d.WeeksOfStock.Value()
				So(ok, ShouldBeTrue)
				So(v, ShouldEqual, 0.0)
			})
		})

		Convey("When the probability is exactly the threshold", func() {
			stub.p = classifier.Threshold
			d, err := ev.Evaluate(ctx, widget())

			Convey("Then no reorder is needed and the quantity is zero", func() {
				So(err, ShouldBeNil)
				So(d.NeedsReorder, ShouldBeFalse)
				So(d.SuggestedReorderQty, ShouldEqual, 0)
			})
		})

		Convey("When an item sells nothing", func() {
			stub.p = 0.1
			item := widget()
			item.CurrentInventory = 40
			item.AvgSalesPerWeek = 0
			d, err := ev.Evaluate(ctx, item)

			Convey("Then weeks of stock are unbounded", func() {
				So(err, ShouldBeNil)
				So(d.WeeksOfStock.IsUnbounded(), ShouldBeTrue)
				So(d.SuggestedReorderQty, ShouldEqual, 0)
			})
		})

		Convey("When weeks of stock has many decimals", func() {
			stub.p = 0.2
			item := widget()
			item.CurrentInventory = 10
			item.AvgSalesPerWeek = 3
			d, err := ev.Evaluate(ctx, item)

			Convey("Then it is rounded to two places", func() {
				So(err, ShouldBeNil)
				v, _ := d.WeeksOfStock.Value()
				So(v, ShouldEqual, 3.33)
			})
		})

		Convey("When the sales rate is fractional and a reorder is needed", func() {
			item := widget()
			item.AvgSalesPerWeek = 2.1
			d, err := ev.Evaluate(ctx, item)

			Convey("Then the quantity rounds up", func() {
				So(err, ShouldBeNil)
				So(d.SuggestedReorderQty, ShouldEqual, 5)
			})
		})

		Convey("When the sales rate is so small the ratio overflows", func() {
			item := widget()
			item.CurrentInventory = 500
			item.AvgSalesPerWeek = 1e-320
			d, err := ev.Evaluate(ctx, item)

			Convey("Then weeks of stock are unbounded and the decision encodes", func() {
				So(err, ShouldBeNil)
				So(d.WeeksOfStock.IsUnbounded(), ShouldBeTrue)
				So(d.SuggestedReorderQty, ShouldEqual, 1)
				_, err := json.Marshal(d)
				So(err, ShouldBeNil)
			})
		})

		Convey("When the sales rate is at the upper bound", func() {
			item := widget()
			item.AvgSalesPerWeek = 1e9
			d, err := ev.Evaluate(ctx, item)

			Convey("Then the quantity is exact and non-negative", func() {
				So(err, ShouldBeNil)
				So(d.SuggestedReorderQty, ShouldEqual, 2_000_000_000)
			})
		})

		Convey("When the predictor fails", func() {
			stub.err = classifier.ErrInitialization
			_, err := ev.Evaluate(ctx, widget())

			Convey("Then the error is surfaced unchanged", func() {
				So(errors.Is(err, classifier.ErrInitialization), ShouldBeTrue)
			})
		})

		Convey("When the item is malformed", func() {
			cases := []struct {
				name   string
				mutate func(*model.CatalogItem)
			}{
				{"negative inventory", func(i *model.CatalogItem) { i.CurrentInventory = -1 }},
				{"negative sales", func(i *model.CatalogItem) { i.AvgSalesPerWeek = -0.5 }},
				{"NaN sales", func(i *model.CatalogItem) { i.AvgSalesPerWeek = math.NaN() }},
				{"infinite sales", func(i *model.CatalogItem) { i.AvgSalesPerWeek = math.Inf(1) }},
				{"sales above the upper bound", func(i *model.CatalogItem) { i.AvgSalesPerWeek = 1e300 }},
				{"zero lead time", func(i *model.CatalogItem) { i.DaysToReplenish = 0 }},
				{"missing id", func(i *model.CatalogItem) { i.ID = "" }},
			}
			for _, tc := range cases {
				item := widget()
				tc.mutate(&item)
				_, err := ev.Evaluate(ctx, item)

				Convey("Then "+tc.name+" is rejected before classification", func() {
					So(errors.Is(err, reorder.ErrMalformedItem), ShouldBeTrue)
					var merr *reorder.MalformedItemError
					So(errors.As(err, &merr), ShouldBeTrue)
					So(stub.calls, ShouldEqual, 0)
				})
			}
		})
	})
}

func TestEvaluator_Enrich(t *testing.T) {
	Convey("Given an evaluator that never reorders", t, func() {
		ev := reorder.NewEvaluator(&stubPredictor{p: 0})

		Convey("When an item is enriched", func() {
			item := widget()
			item.CurrentInventory = 25
			e, err := ev.Enrich(context.Background(), item)

			Convey("Then the original fields are kept alongside the decision", func() {
				So(err, ShouldBeNil)
				So(e.CatalogItem, ShouldResemble, item)
				So(e.Reorder.NeedsReorder, ShouldBeFalse)
				v, _ := e.Reorder.WeeksOfStock.Value()
				So(v, ShouldEqual, 2.5)
			})
		})
	})
}

func TestDerivedMetrics(t *testing.T) {
	Convey("Given the derived metric helpers", t, func() {
		So(reorder.SuggestedQty(0), ShouldEqual, 0)
		So(reorder.SuggestedQty(10), ShouldEqual, 20)
		So(reorder.SuggestedQty(0.25), ShouldEqual, 1)
		So(reorder.SuggestedQty(1e300), ShouldEqual, math.MaxInt)
		So(reorder.WeeksOfStock(5, 0).IsUnbounded(), ShouldBeTrue)
		So(reorder.WeeksOfStock(500, 1e-320).IsUnbounded(), ShouldBeTrue)
		huge, ok := reorder.WeeksOfStock(1, 1e-307).Value()
		So(ok, ShouldBeTrue)
		So(math.IsInf(huge, 0), ShouldBeFalse)
		v, _ := reorder.WeeksOfStock(0, 4).Value()
		So(v, ShouldEqual, 0.0)
	})
}

func TestEvaluator_TrainedClassifier(t *testing.T) {
	Convey("Given an evaluator backed by the trained bootstrap classifier", t, func() {
		ctx := context.Background()
		ev := reorder.NewEvaluator(classifier.New())

		Convey("When an empty shelf that sells ten a week is evaluated", func() {
			d, err := ev.Evaluate(ctx, model.CatalogItem{ID: "a", CurrentInventory: 0, AvgSalesPerWeek: 10, DaysToReplenish: 5})

			Convey("Then a reorder of twenty is suggested with zero weeks left", func() {
				So(err, ShouldBeNil)
				So(d.NeedsReorder, ShouldBeTrue)
				So(d.SuggestedReorderQty, ShouldEqual, 20)
				v, ok := d.WeeksOfStock.Value()
				So(ok, ShouldBeTrue)
				So(v, ShouldEqual, 0.0)
			})
		})

		Convey("When a full shelf that never sells is evaluated", func() {
			d, err := ev.Evaluate(ctx, model.CatalogItem{ID: "b", CurrentInventory: 500, AvgSalesPerWeek: 0, DaysToReplenish: 5})

			Convey("Then no reorder is needed and stock is unbounded", func() {
				So(err, ShouldBeNil)
				So(d.NeedsReorder, ShouldBeFalse)
				So(d.SuggestedReorderQty, ShouldEqual, 0)
				So(d.WeeksOfStock.IsUnbounded(), ShouldBeTrue)
			})
		})
	})
}
