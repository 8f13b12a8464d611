package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/restock/internal/adapters/source"
	service "github.com/okian/restock/internal/app"
	"github.com/okian/restock/internal/domain/catalog"
	"github.com/okian/restock/internal/domain/classifier"
	"github.com/okian/restock/internal/domain/reorder"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest       = errors.New("bad request")
	ErrMethodNotAllowed = errors.New("method not allowed")
)

// Error annotates a failure with the handler operation and a kind that
// decides the response status.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err == nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	case e.Kind == nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	}
}

// Unwrap exposes both the kind and the cause to errors.Is.
func (e *Error) Unwrap() []error {
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// NewKind returns an error of kind raised by op.
func NewKind(op string, kind error) error {
	return &Error{Op: op, Kind: kind}
}

// Wrap annotates err with op. The kind is derived from err itself.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// WrapKind annotates err with op and kind.
func WrapKind(op string, kind, err error) error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// classify maps an error to its HTTP status and response code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed, "method_not_allowed"
	case errors.Is(err, reorder.ErrMalformedItem):
		return http.StatusBadRequest, "malformed_item"
	case errors.Is(err, catalog.ErrUnknownSortKey), errors.Is(err, catalog.ErrInvalidExpression), errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrCatalogNotLoaded):
		return http.StatusServiceUnavailable, "not_loaded"
	case errors.Is(err, classifier.ErrInitialization):
		return http.StatusServiceUnavailable, "classifier_unavailable"
	case errors.Is(err, service.ErrNoSource):
		return http.StatusServiceUnavailable, "no_source"
	case errors.Is(err, source.ErrUpstream), errors.Is(err, source.ErrCircuitOpen), errors.Is(err, source.ErrDecode):
		return http.StatusBadGateway, "upstream_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
