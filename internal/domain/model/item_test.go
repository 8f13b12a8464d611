package model_test

import (
	"math"
	"testing"

	"github.com/goccy/go-json"
	"github.com/okian/restock/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestCatalogItem_Features(t *testing.T) {
	Convey("Given a catalog item", t, func() {
		item := model.CatalogItem{
			ID:               "1",
			Name:             "Widget",
			SKU:              "1",
			CurrentInventory: 12,
			AvgSalesPerWeek:  3.5,
			DaysToReplenish:  7,
		}

		Convey("Then features follow inventory, sales, days order without scaling", func() {
			So(item.Features(), ShouldResemble, model.FeatureVector{12, 3.5, 7})
		})
	})
}

func TestWeeksOfStock(t *testing.T) {
	Convey("Given a finite weeks of stock", t, func() {
		w := model.FiniteWeeks(2.5)

		Convey("Then it exposes its value", func() {
			v, ok := w.Value()
			So(ok, ShouldBeTrue)
			So(v, ShouldEqual, 2.5)
			So(w.IsUnbounded(), ShouldBeFalse)
			So(w.SortValue(), ShouldEqual, 2.5)
			So(w.String(), ShouldEqual, "2.50")
		})

		Convey("Then it encodes as a JSON number", func() {
			b, err := json.Marshal(w)
			So(err, ShouldBeNil)
			So(string(b), ShouldEqual, "2.5")
		})
	})

	Convey("Given a non-finite ratio", t, func() {
		Convey("Then it never becomes a finite weeks of stock", func() {
			for _, v := range []float64{math.Inf(1), math.Inf(-1), math.NaN()} {
				w := model.FiniteWeeks(v)
				So(w.IsUnbounded(), ShouldBeTrue)
				b, err := json.Marshal(w)
				So(err, ShouldBeNil)
				So(string(b), ShouldEqual, `"unbounded"`)
			}
		})
	})

	Convey("Given an unbounded weeks of stock", t, func() {
		w := model.UnboundedWeeks()

		Convey("Then it has no finite value", func() {
			_, ok := w.Value()
			So(ok, ShouldBeFalse)
			So(w.IsUnbounded(), ShouldBeTrue)
			So(w.String(), ShouldEqual, "unbounded")
		})

		Convey("Then it sorts above any attainable ratio", func() {
			So(w.SortValue(), ShouldEqual, math.MaxFloat64)
			So(w.SortValue(), ShouldBeGreaterThan, model.FiniteWeeks(1e12).SortValue())
		})

		Convey("Then it encodes as the unbounded literal", func() {
			b, err := json.Marshal(w)
			So(err, ShouldBeNil)
			So(string(b), ShouldEqual, `"unbounded"`)
		})
	})

	Convey("Given JSON input", t, func() {
		Convey("When decoding the unbounded literal", func() {
			var w model.WeeksOfStock
			err := json.Unmarshal([]byte(`"unbounded"`), &w)
			So(err, ShouldBeNil)
			So(w.IsUnbounded(), ShouldBeTrue)
		})

		Convey("When decoding a number", func() {
			var w model.WeeksOfStock
			err := json.Unmarshal([]byte(`0`), &w)
			So(err, ShouldBeNil)
			v, ok := w.Value()
			So(ok, ShouldBeTrue)
			So(v, ShouldEqual, 0)
		})

		Convey("When decoding an unknown string", func() {
			var w model.WeeksOfStock
			err := json.Unmarshal([]byte(`"forever"`), &w)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestEnrichedItem_JSON(t *testing.T) {
	Convey("Given an enriched item", t, func() {
		item := model.EnrichedItem{
			CatalogItem: model.CatalogItem{ID: "7", Name: "Bolt", SKU: "7", CurrentInventory: 500, DaysToReplenish: 5},
			Reorder:     model.ReorderDecision{WeeksOfStock: model.UnboundedWeeks()},
		}

		Convey("When encoded", func() {
			b, err := json.Marshal(item)
			So(err, ShouldBeNil)

			Convey("Then catalog fields are inlined next to the reorder block", func() {
				var raw map[string]any
				So(json.Unmarshal(b, &raw), ShouldBeNil)
				So(raw["id"], ShouldEqual, "7")
				So(raw["currentInventory"], ShouldEqual, 500.0)
				reorder, ok := raw["reorder"].(map[string]any)
				So(ok, ShouldBeTrue)
				So(reorder["weeksOfStock"], ShouldEqual, "unbounded")
				So(reorder["needsReorder"], ShouldEqual, false)
			})

			Convey("Then decoding restores the same value", func() {
				var back model.EnrichedItem
				So(json.Unmarshal(b, &back), ShouldBeNil)
				So(back, ShouldResemble, item)
			})
		})
	})
}
