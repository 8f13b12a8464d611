package metrics

import (
	"errors"
)

// Sentinel kinds for metrics errors.
var (
	ErrUnknownCircuitState = errors.New("unknown circuit state")
)
