// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/okian/restock/internal/domain/catalog"
	"github.com/okian/restock/internal/domain/model"
	"github.com/okian/restock/internal/domain/types"
	"github.com/okian/restock/pkg/logger"
	"github.com/okian/restock/pkg/metrics"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	CatalogDependencies
	ItemDependencies
	EvaluateDependencies
	HealthDependencies
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	catalogHandler  *CatalogHandler
	itemHandler     *ItemHandler
	evaluateHandler *EvaluateHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:   NewHealthHandler(deps),
		statsHandler:    NewStatsHandler(deps),
		catalogHandler:  NewCatalogHandler(deps),
		itemHandler:     NewItemHandler(deps),
		evaluateHandler: NewEvaluateHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}

	// Specific paths first (most specific to least specific)
	mux.Handle("/healthz", Chain(s.healthHandler.HandleHealth, "healthz"))
	mux.Handle("/metrics", Chain(s.healthHandler.HandleMetrics, "metrics"))
	mux.Handle("/stats", Chain(s.statsHandler.HandleStats, "stats"))
	mux.Handle("/catalog", Chain(s.catalogHandler.HandleGetCatalog, "catalog"))
	mux.Handle("/catalog/reload", Chain(s.catalogHandler.HandleReload, "catalog_reload"))
	mux.Handle("/summary", Chain(s.catalogHandler.HandleGetSummary, "summary"))
	mux.Handle("/rejections", Chain(s.catalogHandler.HandleGetRejections, "rejections"))
	mux.Handle("/items/", Chain(s.itemHandler.HandleGetItem, "items"))
	mux.Handle("/evaluate", Chain(s.evaluateHandler.HandlePostEvaluate, "evaluate"))
}

// catalogResponse is the body of GET /catalog.
type catalogResponse struct {
	Items   []model.EnrichedItem `json:"items"`
	Count   int                  `json:"count"`
	Summary types.Summary        `json:"summary"`
	Query   queryEcho            `json:"query"`
}

// queryEcho reports the resolved view parameters.
type queryEcho struct {
	Text        string          `json:"q,omitempty"`
	OnlyReorder bool            `json:"onlyReorder"`
	Expr        string          `json:"expr,omitempty"`
	Sort        catalog.SortKey `json:"sort"`
	Order       string          `json:"order"`
}

type healthResponse struct {
	Status          string `json:"status"`
	ClassifierReady bool   `json:"classifierReady"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON encodes v before writing the status. An encoding failure is
// answered with a 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		logger.Get().Named("api").Error(context.Background(), "response encoding failed",
			logger.Int("status", status),
			logger.Error(err),
		)
		metrics.RecordErrorByComponent("http", "encode_error")
		status = http.StatusInternalServerError
		body, _ = json.Marshal(errorResponse{Code: "internal_error", Message: "response encoding failed"})
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

// writeError derives the status and code from err.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		logger.Get().Named("api").Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.String("requestID", RequestIDFromContext(r.Context())),
			logger.Error(err),
		)
	}
	writeJSON(w, status, errorResponse{Code: code, Message: err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
