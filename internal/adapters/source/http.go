package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/okian/restock/internal/domain/model"
	"github.com/okian/restock/pkg/logger"
	"github.com/okian/restock/pkg/metrics"
)

const (
	defaultTimeout        = 10 * time.Second
	defaultMinItems       = 100
	defaultTripFailures   = 3
	defaultBreakerTimeout = 30 * time.Second
	maxBodyBytes          = 16 << 20
)

// HTTPSource fetches raw products over HTTP, augments them and pads the
// result. Calls go through a circuit breaker.
type HTTPSource struct {
	url       string
	client    *http.Client
	augmenter *Augmenter
	minItems  int
	logger    logger.Logger

	tripFailures   uint32
	breakerTimeout time.Duration
	cb             *gobreaker.CircuitBreaker[[]RawProduct]
}

// NewHTTPSource returns a source reading url.
func NewHTTPSource(url string, opts ...HTTPOption) *HTTPSource {
	s := &HTTPSource{
		url:            url,
		client:         &http.Client{Timeout: defaultTimeout},
		augmenter:      NewAugmenter(0),
		minItems:       defaultMinItems,
		logger:         logger.Get().Named("source"),
		tripFailures:   defaultTripFailures,
		breakerTimeout: defaultBreakerTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	_ = metrics.UpdateSourceCircuitState(gobreaker.StateClosed.String())
	s.cb = gobreaker.NewCircuitBreaker[[]RawProduct](gobreaker.Settings{
		Name:        "catalog-source",
		MaxRequests: 1,
		Timeout:     s.breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.tripFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.logger.Warn(context.Background(), "circuit breaker state change",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
			_ = metrics.UpdateSourceCircuitState(to.String())
		},
	})
	return s
}

// State returns the breaker state name.
func (s *HTTPSource) State() string {
	return s.cb.State().String()
}

// Fetch downloads the catalog and returns augmented, padded items.
func (s *HTTPSource) Fetch(ctx context.Context) ([]model.CatalogItem, error) {
	start := time.Now()
	products, err := s.cb.Execute(func() ([]RawProduct, error) {
		return s.fetchRaw(ctx)
	})
	metrics.RecordSourceLatency(float64(time.Since(start).Milliseconds()))

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.RecordSourceRequest("rejected")
			return nil, fmt.Errorf("%w: %w", ErrCircuitOpen, err)
		}
		metrics.RecordSourceRequest("failure")
		metrics.RecordErrorByComponent("source", "upstream")
		return nil, err
	}
	metrics.RecordSourceRequest("success")

	items := Pad(s.augmenter.Augment(products), s.minItems)
	s.logger.Info(ctx, "catalog fetched",
		logger.String("url", s.url),
		logger.Int("received", len(products)),
		logger.Int("items", len(items)),
		logger.Duration("took", time.Since(start)),
	)
	return items, nil
}

func (s *HTTPSource) fetchRaw(ctx context.Context) ([]RawProduct, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrUpstream, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrUpstream, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}
	return DecodeProducts(body)
}
