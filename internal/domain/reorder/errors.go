package reorder

import (
	"errors"
	"fmt"
)

// Sentinel kinds for item-level failures.
var (
	ErrMalformedItem = errors.New("malformed catalog item")
	ErrDuplicateID   = errors.New("duplicate item identifier")
)

// MalformedItemError names the field and rule an item violated.
type MalformedItemError struct {
	ID    string
	Field string
	Rule  string
}

func (e *MalformedItemError) Error() string {
	return fmt.Sprintf("%s: item %q field %s violates %s", ErrMalformedItem, e.ID, e.Field, e.Rule)
}

// Unwrap lets errors.Is match ErrMalformedItem.
func (e *MalformedItemError) Unwrap() error { return ErrMalformedItem }
