package api

import (
	"context"
	"net/http"

	"github.com/okian/restock/internal/domain/model"
)

// EvaluateDependencies defines ad-hoc evaluation of a single item.
type EvaluateDependencies interface {
	Evaluate(ctx context.Context, item model.CatalogItem) (model.ReorderDecision, error)
}

// EvaluateHandler handles evaluation requests.
type EvaluateHandler struct {
	deps EvaluateDependencies
}

// NewEvaluateHandler creates a new evaluate handler.
func NewEvaluateHandler(deps EvaluateDependencies) *EvaluateHandler {
	return &EvaluateHandler{deps: deps}
}

// HandlePostEvaluate handles POST /evaluate requests. The body is a catalog
// item; the response is its reorder decision.
func (h *EvaluateHandler) HandlePostEvaluate(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_evaluate"
	if r.Method != http.MethodPost {
		writeError(w, r, NewKind(op, ErrMethodNotAllowed))
		return
	}
	var item model.CatalogItem
	if err := decodeBody(w, r, &item); err != nil {
		writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	d, err := h.deps.Evaluate(r.Context(), item)
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, d)
}
