package source

import "errors"

// Sentinel kinds for source errors.
var (
	ErrUpstream    = errors.New("catalog upstream failure")
	ErrCircuitOpen = errors.New("catalog upstream circuit open")
	ErrDecode      = errors.New("catalog payload malformed")
)
