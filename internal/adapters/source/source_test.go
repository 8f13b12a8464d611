package source_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/restock/internal/adapters/source"
	"github.com/okian/restock/internal/domain/model"
	"github.com/okian/restock/pkg/logger"
)

func init() {
	_ = logger.Init()
}

func TestDecodeProducts(t *testing.T) {
	Convey("Given upstream payloads", t, func() {
		Convey("When the products are wrapped in an envelope", func() {
			p, err := source.DecodeProducts([]byte(`{"products":[{"id":1,"title":"Essence Mascara"},{"id":"b2","title":"Lamp"}],"total":2}`))

			Convey("Then numeric and string ids both decode", func() {
				So(err, ShouldBeNil)
				So(len(p), ShouldEqual, 2)
				So(string(p[0].ID), ShouldEqual, "1")
				So(string(p[1].ID), ShouldEqual, "b2")
				So(p[0].Title, ShouldEqual, "Essence Mascara")
			})
		})

		Convey("When the payload is a bare array", func() {
			p, err := source.DecodeProducts([]byte(` [{"id":7,"title":"Chair"}]`))

			Convey("Then it decodes", func() {
				So(err, ShouldBeNil)
				So(len(p), ShouldEqual, 1)
			})
		})

		Convey("When the payload is malformed", func() {
			for _, body := range []string{``, `{"items":[]}`, `{"products":`, `[{"id":true}]`} {
				_, err := source.DecodeProducts([]byte(body))
				So(errors.Is(err, source.ErrDecode), ShouldBeTrue)
			}
		})
	})
}

func TestAugmenter(t *testing.T) {
	Convey("Given two augmenters with the same seed", t, func() {
		products := make([]source.RawProduct, 200)
		for i := range products {
			products[i] = source.RawProduct{ID: source.RawID(string(rune('a'+i%26)) + "x"), Title: "p"}
		}
		a := source.NewAugmenter(7).Augment(products)
		b := source.NewAugmenter(7).Augment(products)

		Convey("Then they produce the same catalog", func() {
			So(a, ShouldResemble, b)
		})

		Convey("Then every field is within range and copies the record", func() {
			for i, it := range a {
				So(it.ID, ShouldEqual, string(products[i].ID))
				So(it.SKU, ShouldEqual, it.ID)
				So(it.Name, ShouldEqual, "p")
				So(it.CurrentInventory, ShouldBeBetweenOrEqual, 0, 500)
				So(it.AvgSalesPerWeek, ShouldBeBetweenOrEqual, 0, 40)
				So(it.DaysToReplenish, ShouldBeBetweenOrEqual, 1, 30)
			}
		})
	})
}

func TestPad(t *testing.T) {
	Convey("Given a short catalog", t, func() {
		items := []model.CatalogItem{{ID: "1", Name: "a"}, {ID: "2", Name: "b"}, {ID: "3", Name: "c"}}

		Convey("When it is padded to ten", func() {
			out := source.Pad(items, 10)

			Convey("Then clones cycle through the originals with unique ids", func() {
				So(len(out), ShouldEqual, 10)
				So(out[3].ID, ShouldEqual, "1-dup-3")
				So(out[3].Name, ShouldEqual, "a")
				So(out[9].ID, ShouldEqual, "1-dup-9")
				seen := map[string]bool{}
				for _, it := range out {
					So(seen[it.ID], ShouldBeFalse)
					seen[it.ID] = true
				}
			})

			Convey("Then the input is not modified", func() {
				So(items[0].ID, ShouldEqual, "1")
				So(len(items), ShouldEqual, 3)
			})
		})

		Convey("When it already meets the minimum or is empty", func() {
			So(len(source.Pad(items, 2)), ShouldEqual, 3)
			So(source.Pad(nil, 5), ShouldBeEmpty)
		})
	})
}

func TestHTTPSource(t *testing.T) {
	Convey("Given an upstream catalog server", t, func() {
		var status atomic.Int32
		status.Store(http.StatusOK)
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(int(status.Load()))
			_, _ = w.Write([]byte(`{"products":[{"id":1,"title":"Widget"},{"id":2,"title":"Bolt"}]}`))
		}))
		defer srv.Close()

		Convey("When the catalog is fetched", func() {
			s := source.NewHTTPSource(srv.URL, source.WithAugmentSeed(1), source.WithMinItems(5))
			items, err := s.Fetch(context.Background())

			Convey("Then records are augmented and padded", func() {
				So(err, ShouldBeNil)
				So(len(items), ShouldEqual, 5)
				So(items[0].Name, ShouldEqual, "Widget")
				So(items[2].ID, ShouldEqual, "1-dup-2")
			})
		})

		Convey("When the upstream keeps failing", func() {
			status.Store(http.StatusBadGateway)
			s := source.NewHTTPSource(srv.URL,
				source.WithBreaker(2, time.Minute),
				source.WithTimeout(time.Second),
			)
			_, err1 := s.Fetch(context.Background())
			_, err2 := s.Fetch(context.Background())
			_, err3 := s.Fetch(context.Background())

			Convey("Then failures are upstream errors until the circuit opens", func() {
				So(errors.Is(err1, source.ErrUpstream), ShouldBeTrue)
				So(errors.Is(err2, source.ErrUpstream), ShouldBeTrue)
				So(errors.Is(err3, source.ErrCircuitOpen), ShouldBeTrue)
				So(s.State(), ShouldEqual, "open")
				So(hits.Load(), ShouldEqual, 2)
			})
		})

		Convey("When the context is already cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err := source.NewHTTPSource(srv.URL).Fetch(ctx)

			Convey("Then the fetch fails", func() {
				So(errors.Is(err, source.ErrUpstream), ShouldBeTrue)
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
			})
		})
	})
}

func TestFileSource(t *testing.T) {
	Convey("Given a catalog file", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "catalog.json")
		So(os.WriteFile(path, []byte(`[{"id":"1","name":"Widget","sku":"1","currentInventory":0,"avgSalesPerWeek":10,"daysToReplenish":5}]`), 0o600), ShouldBeNil)

		Convey("When it is read with padding", func() {
			items, err := source.NewFileSource(path, 3).Fetch(context.Background())

			Convey("Then the items decode and are padded", func() {
				So(err, ShouldBeNil)
				So(len(items), ShouldEqual, 3)
				So(items[0].AvgSalesPerWeek, ShouldEqual, 10.0)
				So(items[1].ID, ShouldEqual, "1-dup-1")
			})
		})

		Convey("When the file is missing or invalid", func() {
			_, err := source.NewFileSource(filepath.Join(dir, "nope.json"), 0).Fetch(context.Background())
			So(err, ShouldNotBeNil)

			bad := filepath.Join(dir, "bad.json")
			So(os.WriteFile(bad, []byte(`{`), 0o600), ShouldBeNil)
			_, err = source.NewFileSource(bad, 0).Fetch(context.Background())
			So(errors.Is(err, source.ErrDecode), ShouldBeTrue)
		})
	})
}
