package probe

import "errors"

var (
	// ErrViolation is returned when at least one invariant does not hold.
	ErrViolation = errors.New("invariant violated")

	// ErrUnexpectedStatus is returned for a response with an unexpected status code.
	ErrUnexpectedStatus = errors.New("unexpected status")
)
