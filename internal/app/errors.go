package service

import "errors"

var (
	// ErrCatalogNotLoaded is returned by reads before the first successful load.
	ErrCatalogNotLoaded = errors.New("catalog not loaded")

	// ErrNotFound is returned when an item id is not in the current catalog.
	ErrNotFound = errors.New("item not found")

	// ErrNotStarted is returned by operations that need Start to have run.
	ErrNotStarted = errors.New("service not started")

	// ErrNoSource is returned by Reload when no catalog source is configured.
	ErrNoSource = errors.New("no catalog source configured")

	// ErrStopped is returned to loads interrupted by Stop.
	ErrStopped = errors.New("service stopped")
)
