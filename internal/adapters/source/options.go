package source

import (
	"net/http"
	"time"

	"github.com/okian/restock/pkg/logger"
)

// HTTPOption configures an HTTPSource.
type HTTPOption func(*HTTPSource)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPSource) {
		if c != nil {
			s.client = c
		}
	}
}

// WithTimeout sets the per-request timeout of the default client.
func WithTimeout(d time.Duration) HTTPOption {
	return func(s *HTTPSource) {
		if d > 0 {
			s.client = &http.Client{Timeout: d}
		}
	}
}

// WithAugmentSeed seeds the synthetic inventory generator.
func WithAugmentSeed(seed uint64) HTTPOption {
	return func(s *HTTPSource) {
		s.augmenter = NewAugmenter(seed)
	}
}

// WithMinItems pads the catalog to at least n items. Zero disables padding.
func WithMinItems(n int) HTTPOption {
	return func(s *HTTPSource) {
		if n >= 0 {
			s.minItems = n
		}
	}
}

// WithBreaker sets how many consecutive failures open the circuit and how
// long it stays open.
func WithBreaker(failures uint32, openFor time.Duration) HTTPOption {
	return func(s *HTTPSource) {
		if failures > 0 {
			s.tripFailures = failures
		}
		if openFor > 0 {
			s.breakerTimeout = openFor
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) HTTPOption {
	return func(s *HTTPSource) {
		if l != nil {
			s.logger = l
		}
	}
}
