package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/okian/restock/internal/domain/model"
)

// ItemDependencies defines the single item lookup.
type ItemDependencies interface {
	Item(ctx context.Context, id string) (model.EnrichedItem, error)
}

// ItemHandler handles item requests.
type ItemHandler struct {
	deps ItemDependencies
}

// NewItemHandler creates a new item handler.
func NewItemHandler(deps ItemDependencies) *ItemHandler {
	return &ItemHandler{deps: deps}
}

// HandleGetItem handles GET /items/{id} requests.
func (h *ItemHandler) HandleGetItem(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_item"
	if r.Method != http.MethodGet {
		writeError(w, r, NewKind(op, ErrMethodNotAllowed))
		return
	}
	// Extract path parameter after /items/
	id := strings.TrimPrefix(r.URL.Path, "/items/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, WrapKind(op, ErrBadRequest, errors.New("item id must be a single path segment")))
		return
	}
	it, err := h.deps.Item(r.Context(), id)
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, it)
}
