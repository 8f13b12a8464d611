package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound   = errors.New("item not found")
	ErrNoSnapshot = errors.New("no catalog snapshot published")
)
