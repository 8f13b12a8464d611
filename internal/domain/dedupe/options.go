package dedupe

const defaultCapacityHint = 128

// Option configures the in-memory deduper.
type Option func(*inMemoryDeduper)

// WithCapacityHint preallocates room for n identifiers.
func WithCapacityHint(n int) Option {
	return func(d *inMemoryDeduper) {
		if n > 0 {
			d.capacityHint = n
		}
	}
}
