package api_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/restock/internal/adapters/http/api"
	"github.com/okian/restock/internal/adapters/source"
	service "github.com/okian/restock/internal/app"
	"github.com/okian/restock/internal/domain/catalog"
	"github.com/okian/restock/internal/domain/classifier"
	"github.com/okian/restock/internal/domain/model"
	"github.com/okian/restock/internal/domain/reorder"
	"github.com/okian/restock/internal/domain/types"
	"github.com/okian/restock/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// mockDeps implements api.Dependencies with canned results.
type mockDeps struct {
	rows       []model.EnrichedItem
	summary    types.Summary
	rejections []model.Rejection
	report     types.LoadReport
	decision   model.ReorderDecision
	ready      bool
	stats      map[string]interface{}

	queryErr    error
	itemErr     error
	evaluateErr error
	reloadErr   error

	lastQuery catalog.Query
	lastItem  model.CatalogItem
}

func (m *mockDeps) Query(_ context.Context, q catalog.Query) ([]model.EnrichedItem, types.Summary, error) {
	m.lastQuery = q
	if m.queryErr != nil {
		return nil, types.Summary{}, m.queryErr
	}
	return m.rows, m.summary, nil
}

func (m *mockDeps) Summary(_ context.Context) (types.Summary, error) {
	if m.queryErr != nil {
		return types.Summary{}, m.queryErr
	}
	return m.summary, nil
}

func (m *mockDeps) Rejections(_ context.Context) ([]model.Rejection, error) {
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	return m.rejections, nil
}

func (m *mockDeps) Reload(_ context.Context) (types.LoadReport, error) {
	if m.reloadErr != nil {
		return types.LoadReport{}, m.reloadErr
	}
	return m.report, nil
}

func (m *mockDeps) Item(_ context.Context, id string) (model.EnrichedItem, error) {
	if m.itemErr != nil {
		return model.EnrichedItem{}, m.itemErr
	}
	for _, r := range m.rows {
		if r.ID == id {
			return r, nil
		}
	}
	return model.EnrichedItem{}, fmt.Errorf("%w: %q", service.ErrNotFound, id)
}

func (m *mockDeps) Evaluate(_ context.Context, item model.CatalogItem) (model.ReorderDecision, error) {
	m.lastItem = item
	if m.evaluateErr != nil {
		return model.ReorderDecision{}, m.evaluateErr
	}
	return m.decision, nil
}

func (m *mockDeps) ClassifierReady() bool { return m.ready }

func (m *mockDeps) GetStats() map[string]interface{} {
	if m.stats != nil {
		return m.stats
	}
	return map[string]interface{}{"started": true, "workerCount": 4}
}

func newDeps() *mockDeps {
	return &mockDeps{
		rows: []model.EnrichedItem{
			{
				CatalogItem: model.CatalogItem{ID: "1", Name: "Widget", SKU: "W-1", CurrentInventory: 0, AvgSalesPerWeek: 10, DaysToReplenish: 5},
				Reorder:     model.ReorderDecision{NeedsReorder: true, SuggestedReorderQty: 20, WeeksOfStock: model.FiniteWeeks(0)},
			},
			{
				CatalogItem: model.CatalogItem{ID: "2", Name: "Bolt", SKU: "B-2", CurrentInventory: 40, AvgSalesPerWeek: 0, DaysToReplenish: 3},
				Reorder:     model.ReorderDecision{WeeksOfStock: model.UnboundedWeeks()},
			},
		},
		summary:    types.Summary{TotalProducts: 2, ReorderCount: 1, AvgInventory: 20},
		rejections: []model.Rejection{{Index: 2, ID: "3", Reason: "malformed catalog item"}},
		report:     types.LoadReport{Received: 3, Accepted: 2},
		decision:   model.ReorderDecision{NeedsReorder: true, SuggestedReorderQty: 20, WeeksOfStock: model.FiniteWeeks(0)},
		ready:      true,
	}
}

func serve(deps *mockDeps, method, target, body string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	api.NewServer(deps).Register(context.Background(), mux)

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decodeError(w *httptest.ResponseRecorder) map[string]string {
	var out map[string]string
	So(json.Unmarshal(w.Body.Bytes(), &out), ShouldBeNil)
	return out
}

func TestServer_Register(t *testing.T) {
	Convey("Given a new API server", t, func() {
		deps := newDeps()

		Convey("Then health reports liveness and classifier readiness", func() {
			w := serve(deps, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"status":"ok"`)
			So(w.Body.String(), ShouldContainSubstring, `"classifierReady":true`)
		})

		Convey("And metrics are exposed in the Prometheus format", func() {
			w := serve(deps, http.MethodGet, "/metrics", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "restock_engine_")
		})

		Convey("And stats are served as JSON", func() {
			w := serve(deps, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldEqual, "application/json; charset=utf-8")
			So(w.Body.String(), ShouldContainSubstring, `"workerCount":4`)
		})

		Convey("And every response carries a request id", func() {
			w := serve(deps, http.MethodGet, "/summary", "")
			So(w.Header().Get(api.RequestIDHeader), ShouldNotBeEmpty)
		})

		Convey("And a caller supplied request id is echoed", func() {
			mux := http.NewServeMux()
			api.NewServer(deps).Register(context.Background(), mux)
			req := httptest.NewRequest(http.MethodGet, "/summary", http.NoBody)
			req.Header.Set(api.RequestIDHeader, "abc-123")
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			So(w.Header().Get(api.RequestIDHeader), ShouldEqual, "abc-123")
		})

		Convey("And unknown paths are not found", func() {
			w := serve(deps, http.MethodGet, "/unknown", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("And registering on a nil mux panics", func() {
			So(func() { api.NewServer(deps).Register(context.Background(), nil) }, ShouldPanic)
		})
	})
}

func TestCatalogHandler(t *testing.T) {
	Convey("Given a loaded catalog", t, func() {
		deps := newDeps()

		Convey("When the catalog is requested without parameters", func() {
			w := serve(deps, http.MethodGet, "/catalog", "")

			Convey("Then rows and summary are returned with the default view", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var body struct {
					Items   []model.EnrichedItem `json:"items"`
					Count   int                  `json:"count"`
					Summary types.Summary        `json:"summary"`
					Query   map[string]any       `json:"query"`
				}
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(body.Count, ShouldEqual, 2)
				So(body.Items[1].Reorder.WeeksOfStock.IsUnbounded(), ShouldBeTrue)
				So(body.Summary, ShouldResemble, deps.summary)
				So(body.Query["sort"], ShouldEqual, "needsReorder")
				So(body.Query["order"], ShouldEqual, "desc")
				So(deps.lastQuery, ShouldResemble, catalog.Query{SortKey: catalog.SortNeedsReorder})
			})
		})

		Convey("When view parameters are given", func() {
			w := serve(deps, http.MethodGet, "/catalog?q=+wid+&only_reorder=true&sort=weeksofstock&order=ASC&expr=item.currentInventory+%3C+5", "")

			Convey("Then they reach the pipeline resolved", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.lastQuery, ShouldResemble, catalog.Query{
					Text:        "wid",
					OnlyReorder: true,
					Expr:        "item.currentInventory < 5",
					SortKey:     catalog.SortWeeksOfStock,
					Ascending:   true,
				})
			})
		})

		Convey("When parameters are invalid", func() {
			cases := []string{
				"/catalog?sort=price",
				"/catalog?order=sideways",
				"/catalog?only_reorder=maybe",
			}
			for _, target := range cases {
				w := serve(deps, http.MethodGet, target, "")
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeError(w)["code"], ShouldEqual, "bad_request")
			}
		})

		Convey("When the expression does not compile", func() {
			deps.queryErr = fmt.Errorf("%w: syntax error", catalog.ErrInvalidExpression)
			w := serve(deps, http.MethodGet, "/catalog?expr=item.", "")

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When nothing has been loaded yet", func() {
			deps.queryErr = service.ErrCatalogNotLoaded

			Convey("Then reads are unavailable with the not_loaded code", func() {
				for _, target := range []string{"/catalog", "/summary", "/rejections"} {
					w := serve(deps, http.MethodGet, target, "")
					So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
					So(decodeError(w)["code"], ShouldEqual, "not_loaded")
				}
			})
		})

		Convey("When the summary and rejections are requested", func() {
			Convey("Then they are returned as stored", func() {
				w := serve(deps, http.MethodGet, "/summary", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"reorderCount":1`)

				w = serve(deps, http.MethodGet, "/rejections", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				var rej []model.Rejection
				So(json.Unmarshal(w.Body.Bytes(), &rej), ShouldBeNil)
				So(rej, ShouldResemble, deps.rejections)
			})
		})

		Convey("When the catalog is reloaded", func() {
			Convey("Then the load report is returned", func() {
				w := serve(deps, http.MethodPost, "/catalog/reload", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"accepted":2`)
			})

			Convey("And GET is not allowed", func() {
				w := serve(deps, http.MethodGet, "/catalog/reload", "")
				So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
			})

			Convey("And an upstream failure is a bad gateway", func() {
				deps.reloadErr = fmt.Errorf("fetch catalog: %w", source.ErrUpstream)
				w := serve(deps, http.MethodPost, "/catalog/reload", "")
				So(w.Code, ShouldEqual, http.StatusBadGateway)
				So(decodeError(w)["code"], ShouldEqual, "upstream_error")
			})

			Convey("And a classifier failure is unavailable", func() {
				deps.reloadErr = classifier.ErrInitialization
				w := serve(deps, http.MethodPost, "/catalog/reload", "")
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
				So(decodeError(w)["code"], ShouldEqual, "classifier_unavailable")
			})
		})
	})
}

func TestItemHandler(t *testing.T) {
	Convey("Given a loaded catalog", t, func() {
		deps := newDeps()

		Convey("When a known item is requested", func() {
			w := serve(deps, http.MethodGet, "/items/1", "")

			Convey("Then it is returned with its decision", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var it model.EnrichedItem
				So(json.Unmarshal(w.Body.Bytes(), &it), ShouldBeNil)
				So(it.Name, ShouldEqual, "Widget")
				So(it.Reorder.SuggestedReorderQty, ShouldEqual, 20)
			})
		})

		Convey("When an unknown item is requested", func() {
			w := serve(deps, http.MethodGet, "/items/404", "")

			Convey("Then it is not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
				So(decodeError(w)["code"], ShouldEqual, "not_found")
			})
		})

		Convey("When the id is missing or nested", func() {
			So(serve(deps, http.MethodGet, "/items/", "").Code, ShouldEqual, http.StatusBadRequest)
			So(serve(deps, http.MethodGet, "/items/a/b", "").Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestEvaluateHandler(t *testing.T) {
	Convey("Given the evaluate endpoint", t, func() {
		deps := newDeps()

		Convey("When a valid item is posted", func() {
			w := serve(deps, http.MethodPost, "/evaluate",
				`{"id":"1","name":"Widget","sku":"W-1","currentInventory":0,"avgSalesPerWeek":10,"daysToReplenish":5}`)

			Convey("Then the decision is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"needsReorder":true`)
				So(w.Body.String(), ShouldContainSubstring, `"suggestedReorderQty":20`)
				So(deps.lastItem.AvgSalesPerWeek, ShouldEqual, 10)
			})
		})

		Convey("When the body is not a catalog item", func() {
			for _, body := range []string{`{`, `{"id":"1","price":3}`, `[]`} {
				w := serve(deps, http.MethodPost, "/evaluate", body)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			}
		})

		Convey("When the item violates an invariant", func() {
			deps.evaluateErr = &reorder.MalformedItemError{ID: "1", Field: "CurrentInventory", Rule: "gte"}
			w := serve(deps, http.MethodPost, "/evaluate", `{"id":"1","currentInventory":-1,"avgSalesPerWeek":1,"daysToReplenish":1}`)

			Convey("Then it is reported as malformed", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				body := decodeError(w)
				So(body["code"], ShouldEqual, "malformed_item")
				So(body["message"], ShouldContainSubstring, "CurrentInventory")
			})
		})

		Convey("When the classifier failed to initialize", func() {
			deps.evaluateErr = fmt.Errorf("predict: %w", classifier.ErrInitialization)
			w := serve(deps, http.MethodPost, "/evaluate", `{"id":"1","currentInventory":1,"avgSalesPerWeek":1,"daysToReplenish":1}`)

			Convey("Then the service is unavailable", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			})
		})

		Convey("When the method is GET", func() {
			So(serve(deps, http.MethodGet, "/evaluate", "").Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestErrorKinds(t *testing.T) {
	Convey("Given wrapped API errors", t, func() {
		cause := errors.New("boom")

		Convey("Then kinds and causes are both matchable", func() {
			err := api.WrapKind("api.op", api.ErrBadRequest, cause)
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.op: bad request: boom")
		})

		Convey("And NewKind and Wrap carry only one side", func() {
			So(api.NewKind("api.op", api.ErrBadRequest).Error(), ShouldEqual, "api.op: bad request")
			So(api.Wrap("api.op", cause).Error(), ShouldEqual, "api.op: boom")
			So(api.Wrap("api.op", nil), ShouldBeNil)
		})
	})
}

func TestWriteJSON_EncodeFailure(t *testing.T) {
	Convey("Given stats that cannot be encoded as JSON", t, func() {
		deps := newDeps()
		deps.stats = map[string]interface{}{"trainingLoss": math.Inf(1)}

		Convey("When the stats are requested", func() {
			w := serve(deps, http.MethodGet, "/stats", "")

			Convey("Then the response is a 500 with an error body", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				So(decodeError(w)["code"], ShouldEqual, "internal_error")
			})
		})
	})
}

func TestCatalog_NearZeroSales(t *testing.T) {
	Convey("Given a loaded catalog with an item whose sales rate is almost zero", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		svc := service.New(service.WithWorkerCount(2))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		report, err := svc.Load(ctx, []model.CatalogItem{
			{ID: "1", Name: "Widget", SKU: "W-1", CurrentInventory: 0, AvgSalesPerWeek: 10, DaysToReplenish: 5},
			{ID: "2", Name: "Tiny", SKU: "T-2", CurrentInventory: 500, AvgSalesPerWeek: 1e-320, DaysToReplenish: 5},
		})
		So(err, ShouldBeNil)
		So(report.Accepted, ShouldEqual, 2)

		mux := http.NewServeMux()
		api.NewServer(svc).Register(ctx, mux)

		get := func(target string) *httptest.ResponseRecorder {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, http.NoBody))
			return w
		}

		Convey("Then the catalog is served with the item unbounded", func() {
			w := get("/catalog")
			So(w.Code, ShouldEqual, http.StatusOK)

			var body struct {
				Items []model.EnrichedItem `json:"items"`
			}
			So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
			So(body.Items, ShouldHaveLength, 2)
			for _, it := range body.Items {
				if it.ID == "2" {
					So(it.Reorder.WeeksOfStock.IsUnbounded(), ShouldBeTrue)
				}
			}
		})

		Convey("Then the item itself is served", func() {
			w := get("/items/2")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"weeksOfStock":"unbounded"`)
		})
	})
}
