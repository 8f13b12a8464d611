// Package classifier trains and serves the reorder classifier: a small
// two-layer network fit once per process on a fixed bootstrap dataset.
package classifier

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/okian/restock/internal/domain/model"
	"github.com/okian/restock/pkg/logger"
	"github.com/okian/restock/pkg/metrics"
)

// Threshold is the decision boundary; a probability must be strictly greater
// to count as "reorder".
const Threshold = 0.5

// Default training configuration constants.
const (
	defaultHiddenUnits  = 16
	defaultEpochs       = 1000
	defaultLearningRate = 0.01
	defaultSeed         = 42
	defaultAttempts     = 5
	minHiddenUnits      = 8
	minEpochs           = 100
	trainKey            = "train"
)

// Sample is one labeled training example.
type Sample struct {
	Features model.FeatureVector
	Label    float64
}

// Bootstrap returns a copy of the fixed training set: label 1 means "would reorder".
func Bootstrap() []Sample {
	return []Sample{
		{Features: model.FeatureVector{20, 50, 3}, Label: 0},
		{Features: model.FeatureVector{5, 30, 5}, Label: 1},
		{Features: model.FeatureVector{15, 40, 4}, Label: 0},
		{Features: model.FeatureVector{8, 60, 2}, Label: 1},
	}
}

// Classifier owns the trained network. Training happens at most once; every
// caller that arrives before it finishes waits for the same run.
type Classifier struct {
	hiddenUnits  int
	epochs       int
	learningRate float64
	seed         uint64
	attempts     int
	dataset      []Sample

	group singleflight.Group
	runs  atomic.Int64

	mu    sync.RWMutex
	done  bool
	net   *network
	loss  float64
	err   error
	ready chan struct{}

	logger logger.Logger
}

// New creates an untrained classifier.
func New(opts ...Option) *Classifier {
	c := &Classifier{
		hiddenUnits:  defaultHiddenUnits,
		epochs:       defaultEpochs,
		learningRate: defaultLearningRate,
		seed:         defaultSeed,
		attempts:     defaultAttempts,
		dataset:      Bootstrap(),
		ready:        make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = logger.Get().Named("classifier")
	}
	return c
}

// Train trains the classifier unless it already has been. Concurrent callers
// share one run. The run is detached from ctx; ctx only bounds how long this
// caller waits.
func (c *Classifier) Train(ctx context.Context) error {
	if done, err := c.result(); done {
		return err
	}

	ch := c.group.DoChan(trainKey, func() (interface{}, error) {
		if done, err := c.result(); done {
			return nil, err
		}
		return nil, c.train(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrInitialization, ctx.Err())
	}
}

// Predict returns the reorder probability for fv, training first if needed.
func (c *Classifier) Predict(ctx context.Context, fv model.FeatureVector) (float64, error) {
	if err := c.Train(ctx); err != nil {
		return 0, err
	}
	c.mu.RLock()
	net := c.net
	c.mu.RUnlock()
	return net.predict(fv), nil
}

// Ready is closed once training has finished, successfully or not.
func (c *Classifier) Ready() <-chan struct{} {
	return c.ready
}

// IsReady reports whether a trained model is available.
func (c *Classifier) IsReady() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.done && c.err == nil
}

// Err returns the cached training error, if any.
func (c *Classifier) Err() error {
	_, err := c.result()
	return err
}

// Loss returns the final training loss, or zero before training.
func (c *Classifier) Loss() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loss
}

// TrainingRuns returns how many times the training routine executed.
func (c *Classifier) TrainingRuns() int64 {
	return c.runs.Load()
}

func (c *Classifier) result() (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.done, c.err
}

// train fits the network, reinitializing with the next seed when an attempt
// diverges or fails to separate the dataset.
func (c *Classifier) train(ctx context.Context) error {
	c.runs.Add(1)
	metrics.RecordTrainingRun()
	start := time.Now()

	c.logger.Info(ctx, "training classifier",
		logger.Int("hiddenUnits", c.hiddenUnits),
		logger.Int("epochs", c.epochs),
		logger.Float64("learningRate", c.learningRate),
		logger.Int("samples", len(c.dataset)),
	)

	var (
		net     *network
		loss    float64
		lastErr error
	)
	for attempt := 0; attempt < c.attempts; attempt++ {
		seed := c.seed + uint64(attempt)
		candidate := newNetwork(c.hiddenUnits, rand.New(rand.NewPCG(seed, seed))) //nolint:gosec // deterministic seed for reproducible training
		l, err := candidate.fit(c.dataset, c.epochs, c.learningRate)
		if err == nil && !candidate.separates(c.dataset) {
			err = errNotSeparated
		}
		if err != nil {
			lastErr = err
			metrics.RecordTrainingAttemptFailure()
			c.logger.Warn(ctx, "training attempt failed",
				logger.Int("attempt", attempt+1),
				logger.Error(err),
			)
			continue
		}
		net, loss = candidate, l
		break
	}

	elapsed := time.Since(start)
	metrics.RecordTrainingDuration(float64(elapsed.Milliseconds()))

	c.mu.Lock()
	defer c.mu.Unlock()
	c.done = true
	if net == nil {
		c.err = fmt.Errorf("%w: %w after %d attempts", ErrInitialization, lastErr, c.attempts)
		metrics.RecordTrainingFailure()
		metrics.UpdateClassifierReady(false)
		c.logger.Error(ctx, "classifier training failed", logger.Error(c.err))
	} else {
		c.net = net
		c.loss = loss
		metrics.UpdateTrainingLoss(loss)
		metrics.UpdateClassifierReady(true)
		c.logger.Info(ctx, "classifier trained",
			logger.Float64("loss", loss),
			logger.Duration("elapsed", elapsed),
		)
	}
	close(c.ready)
	return c.err
}
