// Package service wires the reorder engine, the enrichment workers and the
// snapshot store into the operations the HTTP API depends on.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/restock/internal/adapters/mq/queue"
	"github.com/okian/restock/internal/adapters/mq/worker"
	"github.com/okian/restock/internal/adapters/repository"
	"github.com/okian/restock/internal/adapters/source"
	"github.com/okian/restock/internal/domain/catalog"
	"github.com/okian/restock/internal/domain/classifier"
	"github.com/okian/restock/internal/domain/dedupe"
	"github.com/okian/restock/internal/domain/model"
	"github.com/okian/restock/internal/domain/reorder"
	"github.com/okian/restock/internal/domain/types"
	"github.com/okian/restock/pkg/logger"
	"github.com/okian/restock/pkg/metrics"
)

const (
	defaultQueueSize       = 1024
	defaultTrainingTimeout = 30 * time.Second
)

// Load outcomes as recorded in metrics.
const (
	loadOK      = "ok"
	loadPartial = "partial"
	loadFailed  = "failed"
)

// Service owns the reorder engine and the published catalog.
type Service struct {
	mu sync.RWMutex

	// Core components
	classifier *classifier.Classifier
	evaluator  *reorder.Evaluator
	pipeline   *catalog.Pipeline
	store      repository.Store
	source     source.Source
	deduper    dedupe.Deduper
	jobQueue   *queue.InMemoryQueue
	workerPool *worker.Pool

	// Configuration
	workerCount     int
	queueSize       int
	trainingTimeout time.Duration
	classifierOpts  []classifier.Option

	// Loads share the deduper and are serialized.
	loadMu   sync.Mutex
	lastLoad atomic.Pointer[types.LoadReport]

	// State
	started bool
	stopCh  chan struct{}

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of enrichment workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the job queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClassifierOptions passes options to the classifier built by Start.
func WithClassifierOptions(opts ...classifier.Option) Option {
	return func(s *Service) {
		s.classifierOpts = append(s.classifierOpts, opts...)
	}
}

// WithStore sets the snapshot store. The default is an in-memory store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithSource sets where Reload fetches the catalog from.
func WithSource(src source.Source) Option {
	return func(s *Service) {
		if src != nil {
			s.source = src
		}
	}
}

// WithTrainingTimeout bounds how long TrainOnce waits for the classifier.
func WithTrainingTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.trainingTimeout = d
		}
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:     runtime.NumCPU(),
		queueSize:       defaultQueueSize,
		trainingTimeout: defaultTrainingTimeout,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start builds the components, starts the workers and begins training the
// classifier in the background.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting restock service...")

	pipeline, err := catalog.NewPipeline()
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}
	s.pipeline = pipeline

	if s.store == nil {
		s.store = repository.NewMemoryStore()
		s.logger.Info(ctx, "using in-memory store")
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithCapacityHint(s.queueSize))
	s.jobQueue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))

	clsOpts := append([]classifier.Option{classifier.WithLogger(s.logger.Named("classifier"))}, s.classifierOpts...)
	s.classifier = classifier.New(clsOpts...)
	s.evaluator = reorder.NewEvaluator(s.classifier)

	s.workerPool = worker.NewPool(s.workerCount, s.jobQueue, s.evaluator)
	s.workerPool.Start(ctx)

	s.stopCh = make(chan struct{})
	s.started = true

	go s.warmUp(context.WithoutCancel(ctx))

	s.logger.Info(ctx, "restock service started",
		logger.Int("workers", s.workerPool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Duration("trainingTimeout", s.trainingTimeout),
	)

	return nil
}

func (s *Service) warmUp(ctx context.Context) {
	if err := s.TrainOnce(ctx); err != nil {
		s.logger.Error(ctx, "classifier warm-up failed", logger.Error(err))
	}
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping restock service...")

	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}

	// Shutdown closes the queue before waiting for the workers.
	if s.workerPool != nil {
		if err := s.workerPool.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "worker pool shutdown failed", logger.Error(err))
		}
	}

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn(ctx, "store close failed", logger.Error(err))
		}
	}

	s.started = false
	s.logger.Info(ctx, "restock service stopped")
}

type components struct {
	classifier *classifier.Classifier
	evaluator  *reorder.Evaluator
	pipeline   *catalog.Pipeline
	store      repository.Store
	deduper    dedupe.Deduper
	jobQueue   *queue.InMemoryQueue
	stopCh     chan struct{}
}

func (s *Service) components() (components, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return components{}, ErrNotStarted
	}
	return components{
		classifier: s.classifier,
		evaluator:  s.evaluator,
		pipeline:   s.pipeline,
		store:      s.store,
		deduper:    s.deduper,
		jobQueue:   s.jobQueue,
		stopCh:     s.stopCh,
	}, nil
}

// TrainOnce trains the classifier if it has not been, waiting at most the
// training timeout. Concurrent callers share one training run.
func (s *Service) TrainOnce(ctx context.Context) error {
	c, err := s.components()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.trainingTimeout)
	defer cancel()

	if err := c.classifier.Train(ctx); err != nil {
		metrics.RecordErrorByComponent("service", "training")
		return err
	}
	return nil
}

// Evaluate derives the reorder decision for a single item.
func (s *Service) Evaluate(ctx context.Context, item model.CatalogItem) (model.ReorderDecision, error) {
	c, err := s.components()
	if err != nil {
		return model.ReorderDecision{}, err
	}
	if err := c.evaluator.Validate(item); err != nil {
		metrics.RecordMalformedItem()
		return model.ReorderDecision{}, err
	}
	if err := s.TrainOnce(ctx); err != nil {
		return model.ReorderDecision{}, err
	}
	return c.evaluator.Evaluate(ctx, item)
}

// Load enriches items and publishes them as the current catalog. Malformed
// and duplicate items are reported in the LoadReport and left out; the
// catalog is published only once every accepted item has been evaluated.
// A classifier initialization failure aborts the load and leaves the
// previous catalog in place.
func (s *Service) Load(ctx context.Context, items []model.CatalogItem) (types.LoadReport, error) {
	c, err := s.components()
	if err != nil {
		return types.LoadReport{}, err
	}

	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	start := time.Now()
	fail := func(err error) (types.LoadReport, error) {
		metrics.RecordCatalogLoad(loadFailed)
		metrics.RecordErrorByComponent("service", "load")
		s.logger.Error(ctx, "catalog load failed",
			logger.Int("received", len(items)),
			logger.Error(err),
		)
		return types.LoadReport{}, err
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	if err := s.TrainOnce(ctx); err != nil {
		return fail(err)
	}

	c.deduper.Reset()
	var rejected []model.Rejection
	reject := func(seq int, err error) {
		rejected = append(rejected, model.Rejection{Index: seq, ID: items[seq].ID, Reason: err.Error()})
	}

	// Buffered for every item so workers never block on an abandoned load.
	replies := make(chan queue.Outcome, len(items))
	pending := 0
	for i, it := range items {
		if err := c.evaluator.Validate(it); err != nil {
			metrics.RecordMalformedItem()
			reject(i, err)
			continue
		}
		if c.deduper.SeenAndRecord(ctx, it.ID) {
			reject(i, fmt.Errorf("%w: %q", reorder.ErrDuplicateID, it.ID))
			continue
		}
		if err := c.jobQueue.Enqueue(ctx, queue.Job{Seq: i, Item: it, Reply: replies}); err != nil {
			c.deduper.Unrecord(ctx, it.ID)
			return fail(fmt.Errorf("enqueue item %q: %w", it.ID, err))
		}
		pending++
	}

	enriched := make([]model.EnrichedItem, len(items))
	filled := make([]bool, len(items))
	for ; pending > 0; pending-- {
		select {
		case o := <-replies:
			switch {
			case o.Err == nil:
				enriched[o.Seq] = o.Item
				filled[o.Seq] = true
			case errors.Is(o.Err, classifier.ErrInitialization):
				return fail(o.Err)
			default:
				reject(o.Seq, o.Err)
			}
		case <-ctx.Done():
			return fail(ctx.Err())
		case <-c.stopCh:
			return fail(ErrStopped)
		}
	}

	accepted := make([]model.EnrichedItem, 0, len(items))
	for i := range enriched {
		if filled[i] {
			accepted = append(accepted, enriched[i])
		}
	}
	slices.SortFunc(rejected, func(a, b model.Rejection) int { return a.Index - b.Index })
	if rejected == nil {
		rejected = []model.Rejection{}
	}

	summary := catalog.Summarize(accepted)
	snap := repository.Snapshot{
		Items:      accepted,
		Rejections: rejected,
		Summary:    summary,
		LoadedAt:   time.Now().UTC(),
	}
	if err := c.store.Replace(ctx, snap); err != nil {
		return fail(fmt.Errorf("publish catalog: %w", err))
	}

	report := types.LoadReport{
		Received:   len(items),
		Accepted:   len(accepted),
		Rejected:   rejected,
		DurationMS: time.Since(start).Milliseconds(),
		Summary:    summary,
	}
	s.lastLoad.Store(&report)

	outcome := loadOK
	if !report.Complete() {
		outcome = loadPartial
	}
	metrics.RecordCatalogLoad(outcome)
	metrics.RecordCatalogLoadDuration(float64(report.DurationMS))
	metrics.RecordCatalogRejections(len(rejected))
	metrics.UpdateCatalogItems(summary.TotalProducts, summary.ReorderCount)

	s.logger.Info(ctx, "catalog loaded",
		logger.Int("received", report.Received),
		logger.Int("accepted", report.Accepted),
		logger.Int("rejected", len(rejected)),
		logger.Int("reorder", summary.ReorderCount),
		logger.Int64("durationMs", report.DurationMS),
	)
	return report, nil
}

// Reload fetches the catalog from the configured source and loads it.
func (s *Service) Reload(ctx context.Context) (types.LoadReport, error) {
	if s.source == nil {
		return types.LoadReport{}, ErrNoSource
	}
	items, err := s.source.Fetch(ctx)
	if err != nil {
		metrics.RecordCatalogLoad(loadFailed)
		return types.LoadReport{}, fmt.Errorf("fetch catalog: %w", err)
	}
	return s.Load(ctx, items)
}

// Query runs the pipeline over the current catalog.
func (s *Service) Query(ctx context.Context, q catalog.Query) ([]model.EnrichedItem, types.Summary, error) {
	c, err := s.components()
	if err != nil {
		return nil, types.Summary{}, err
	}
	snap, err := s.snapshot(ctx, c.store)
	if err != nil {
		return nil, types.Summary{}, err
	}
	return c.pipeline.Run(snap.Items, q)
}

// Summary returns the aggregates of the current catalog.
func (s *Service) Summary(ctx context.Context) (types.Summary, error) {
	c, err := s.components()
	if err != nil {
		return types.Summary{}, err
	}
	snap, err := s.snapshot(ctx, c.store)
	if err != nil {
		return types.Summary{}, err
	}
	return snap.Summary, nil
}

// Rejections returns the items the last published load left out.
func (s *Service) Rejections(ctx context.Context) ([]model.Rejection, error) {
	c, err := s.components()
	if err != nil {
		return nil, err
	}
	snap, err := s.snapshot(ctx, c.store)
	if err != nil {
		return nil, err
	}
	return snap.Rejections, nil
}

// Item returns one enriched item of the current catalog.
func (s *Service) Item(ctx context.Context, id string) (model.EnrichedItem, error) {
	c, err := s.components()
	if err != nil {
		return model.EnrichedItem{}, err
	}
	it, err := c.store.Get(ctx, id)
	switch {
	case err == nil:
		return it, nil
	case errors.Is(err, repository.ErrNoSnapshot):
		return model.EnrichedItem{}, ErrCatalogNotLoaded
	case errors.Is(err, repository.ErrNotFound):
		return model.EnrichedItem{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	default:
		return model.EnrichedItem{}, err
	}
}

func (s *Service) snapshot(ctx context.Context, store repository.Store) (repository.Snapshot, error) {
	snap, err := store.Snapshot(ctx)
	if errors.Is(err, repository.ErrNoSnapshot) {
		return repository.Snapshot{}, ErrCatalogNotLoaded
	}
	return snap, err
}

// LastLoad returns the report of the last successful load made by this
// process.
func (s *Service) LastLoad() (types.LoadReport, bool) {
	r := s.lastLoad.Load()
	if r == nil {
		return types.LoadReport{}, false
	}
	return *r, true
}

// ClassifierReady reports whether a trained classifier is available.
func (s *Service) ClassifierReady() bool {
	c, err := s.components()
	if err != nil {
		return false
	}
	return c.classifier.IsReady()
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
	}

	if s.started {
		queueLen := s.jobQueue.Len(ctx)
		totalItems := s.store.Count(ctx)

		stats["queueLength"] = queueLen
		stats["totalItems"] = totalItems
		stats["activeWorkers"] = s.workerPool.Active()
		stats["processedItems"] = s.workerPool.Processed()
		stats["classifierReady"] = s.classifier.IsReady()
		stats["trainingRuns"] = s.classifier.TrainingRuns()
		stats["trainingLoss"] = s.classifier.Loss()
		if err := s.classifier.Err(); err != nil {
			stats["classifierError"] = err.Error()
		}

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateWorkerCount(s.workerPool.Size())
	}

	if r := s.lastLoad.Load(); r != nil {
		stats["lastLoad"] = *r
	}

	return stats
}
