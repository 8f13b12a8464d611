package classifier

import (
	"math"

	"github.com/okian/restock/pkg/logger"
)

// Option applies a configuration option to the Classifier.
type Option func(*Classifier)

// WithHiddenUnits sets the hidden layer width. Values below 8 are ignored.
func WithHiddenUnits(n int) Option {
	return func(c *Classifier) {
		if n >= minHiddenUnits {
			c.hiddenUnits = n
		}
	}
}

// WithEpochs sets the number of optimization passes. Values below 100 are ignored.
func WithEpochs(n int) Option {
	return func(c *Classifier) {
		if n >= minEpochs {
			c.epochs = n
		}
	}
}

// WithLearningRate sets the Adam step size.
func WithLearningRate(lr float64) Option {
	return func(c *Classifier) {
		if lr > 0 && !math.IsInf(lr, 0) {
			c.learningRate = lr
		}
	}
}

// WithSeed sets the seed of the first training attempt.
func WithSeed(seed uint64) Option {
	return func(c *Classifier) {
		c.seed = seed
	}
}

// WithAttempts bounds how many reinitializations a training run may use.
func WithAttempts(n int) Option {
	return func(c *Classifier) {
		if n > 0 {
			c.attempts = n
		}
	}
}

// WithDataset replaces the bootstrap dataset.
func WithDataset(samples []Sample) Option {
	return func(c *Classifier) {
		if len(samples) > 0 {
			c.dataset = append([]Sample(nil), samples...)
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Classifier) {
		if l != nil {
			c.logger = l
		}
	}
}
