package catalog

import "errors"

// Sentinel kinds for pipeline errors.
var (
	ErrUnknownSortKey    = errors.New("unknown sort key")
	ErrInvalidExpression = errors.New("invalid filter expression")
)
