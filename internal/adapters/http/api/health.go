package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/restock/pkg/metrics"
)

// HealthDependencies reports whether the engine can serve decisions.
type HealthDependencies interface {
	ClassifierReady() bool
}

// HealthHandler handles liveness and metrics requests.
type HealthHandler struct {
	deps    HealthDependencies
	metrics http.Handler
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(deps HealthDependencies) *HealthHandler {
	return &HealthHandler{
		deps:    deps,
		metrics: promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}),
	}
}

// HandleHealth handles GET /healthz requests. The process is live as soon as
// it serves; classifierReady tells whether training has finished.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, NewKind("api.health", ErrMethodNotAllowed))
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", ClassifierReady: h.deps.ClassifierReady()})
}

// HandleMetrics handles GET /metrics with the service's own registry.
func (h *HealthHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	h.metrics.ServeHTTP(w, r)
}
