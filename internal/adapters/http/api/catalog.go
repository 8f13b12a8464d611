package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/restock/internal/domain/catalog"
	"github.com/okian/restock/internal/domain/model"
	"github.com/okian/restock/internal/domain/types"
)

// Sort directions accepted by the order parameter.
const (
	orderAsc  = "asc"
	orderDesc = "desc"
)

// CatalogDependencies defines the catalog read and reload operations.
type CatalogDependencies interface {
	Query(ctx context.Context, q catalog.Query) ([]model.EnrichedItem, types.Summary, error)
	Summary(ctx context.Context) (types.Summary, error)
	Rejections(ctx context.Context) ([]model.Rejection, error)
	Reload(ctx context.Context) (types.LoadReport, error)
}

// CatalogHandler handles catalog view requests.
type CatalogHandler struct {
	deps CatalogDependencies
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(deps CatalogDependencies) *CatalogHandler {
	return &CatalogHandler{deps: deps}
}

// HandleGetCatalog handles GET /catalog?q=&only_reorder=&sort=&order=&expr= requests.
func (h *CatalogHandler) HandleGetCatalog(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_catalog"
	if r.Method != http.MethodGet {
		writeError(w, r, NewKind(op, ErrMethodNotAllowed))
		return
	}
	q, err := ParseQuery(r)
	if err != nil {
		writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	rows, sum, err := h.deps.Query(r.Context(), q)
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	if rows == nil {
		rows = []model.EnrichedItem{}
	}
	writeJSON(w, http.StatusOK, catalogResponse{
		Items:   rows,
		Count:   len(rows),
		Summary: sum,
		Query:   echo(q),
	})
}

// HandleGetSummary handles GET /summary requests.
func (h *CatalogHandler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_summary"
	if r.Method != http.MethodGet {
		writeError(w, r, NewKind(op, ErrMethodNotAllowed))
		return
	}
	sum, err := h.deps.Summary(r.Context())
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// HandleGetRejections handles GET /rejections requests.
func (h *CatalogHandler) HandleGetRejections(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_rejections"
	if r.Method != http.MethodGet {
		writeError(w, r, NewKind(op, ErrMethodNotAllowed))
		return
	}
	rej, err := h.deps.Rejections(r.Context())
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	if rej == nil {
		rej = []model.Rejection{}
	}
	writeJSON(w, http.StatusOK, rej)
}

// HandleReload handles POST /catalog/reload requests.
func (h *CatalogHandler) HandleReload(w http.ResponseWriter, r *http.Request) {
	const op = "api.reload_catalog"
	if r.Method != http.MethodPost {
		writeError(w, r, NewKind(op, ErrMethodNotAllowed))
		return
	}
	report, err := h.deps.Reload(r.Context())
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ParseQuery reads the view parameters from the URL. Absent parameters keep
// the pipeline defaults.
func ParseQuery(r *http.Request) (catalog.Query, error) {
	v := r.URL.Query()
	q := catalog.Query{
		Text: strings.TrimSpace(v.Get("q")),
		Expr: strings.TrimSpace(v.Get("expr")),
	}

	if s := v.Get("only_reorder"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return catalog.Query{}, fmt.Errorf("only_reorder must be a boolean: %q", s)
		}
		q.OnlyReorder = b
	}

	key, err := catalog.ParseSortKey(v.Get("sort"))
	if err != nil {
		return catalog.Query{}, err
	}
	q.SortKey = key

	switch strings.ToLower(strings.TrimSpace(v.Get("order"))) {
	case "", orderDesc:
	case orderAsc:
		q.Ascending = true
	default:
		return catalog.Query{}, fmt.Errorf("order must be %q or %q", orderAsc, orderDesc)
	}
	return q, nil
}

func echo(q catalog.Query) queryEcho {
	order := orderDesc
	if q.Ascending {
		order = orderAsc
	}
	key := q.SortKey
	if key == "" {
		key = catalog.DefaultSortKey
	}
	return queryEcho{Text: q.Text, OnlyReorder: q.OnlyReorder, Expr: q.Expr, Sort: key, Order: order}
}
