package model

import (
	"bytes"
	"errors"
	"math"
	"strconv"

	"github.com/goccy/go-json"
)

// unboundedLiteral is the wire form of an unbounded WeeksOfStock.
const unboundedLiteral = "unbounded"

// errWeeksOfStock is returned when a JSON value is neither a number nor "unbounded".
var errWeeksOfStock = errors.New("weeksOfStock must be a number or \"unbounded\"")

// WeeksOfStock is either a finite number of weeks or unbounded, the latter
// meaning stock never depletes at the current sales velocity.
type WeeksOfStock struct {
	value     float64
	unbounded bool
}

// FiniteWeeks returns a finite WeeksOfStock. A NaN or infinite v has no
// finite reading and yields the unbounded value.
func FiniteWeeks(v float64) WeeksOfStock {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return UnboundedWeeks()
	}
	return WeeksOfStock{value: v}
}

// UnboundedWeeks returns the unbounded WeeksOfStock.
func UnboundedWeeks() WeeksOfStock { return WeeksOfStock{unbounded: true} }

// IsUnbounded reports whether w is unbounded.
func (w WeeksOfStock) IsUnbounded() bool { return w.unbounded }

// Value returns the finite value; ok is false for unbounded.
func (w WeeksOfStock) Value() (v float64, ok bool) {
	if w.unbounded {
		return 0, false
	}
	return w.value, true
}

// SortValue maps unbounded to math.MaxFloat64 so it orders after every
// attainable ratio.
func (w WeeksOfStock) SortValue() float64 {
	if w.unbounded {
		return math.MaxFloat64
	}
	return w.value
}

func (w WeeksOfStock) String() string {
	if w.unbounded {
		return unboundedLiteral
	}
	return strconv.FormatFloat(w.value, 'f', 2, 64)
}

// MarshalJSON encodes a number, or the string "unbounded".
func (w WeeksOfStock) MarshalJSON() ([]byte, error) {
	if w.unbounded {
		return []byte(`"` + unboundedLiteral + `"`), nil
	}
	return []byte(strconv.FormatFloat(w.value, 'f', -1, 64)), nil
}

// UnmarshalJSON accepts the forms produced by MarshalJSON.
func (w *WeeksOfStock) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s != unboundedLiteral {
			return errWeeksOfStock
		}
		*w = UnboundedWeeks()
		return nil
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return errWeeksOfStock
	}
	*w = FiniteWeeks(v)
	return nil
}
