// Package config defines service configuration and its loading.
package config

import (
	"context"
	"runtime"
	"time"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn warning error"`
	// LogFormat selects text or json output.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr" validate:"required"`

	// QueueSize bounds the evaluation job queue.
	QueueSize int `koanf:"queue_size" validate:"gt=0"`
	// WorkerCount sets the number of evaluation workers.
	WorkerCount int `koanf:"worker_count" validate:"gt=0"`

	// CatalogURL is fetched on startup and reload unless CatalogFile is set.
	CatalogURL string `koanf:"catalog_url" validate:"omitempty,url"`
	// CatalogFile points at a JSON array of augmented items.
	CatalogFile string `koanf:"catalog_file"`
	// CatalogTimeoutMS bounds one upstream fetch.
	CatalogTimeoutMS int `koanf:"catalog_timeout_ms" validate:"gt=0"`
	// CatalogMinItems pads the fetched catalog; zero disables padding.
	CatalogMinItems int `koanf:"catalog_min_items" validate:"gte=0"`
	// AugmentSeed seeds the synthetic inventory fields.
	AugmentSeed uint64 `koanf:"augment_seed"`

	// Classifier training.
	TrainingEpochs    int     `koanf:"training_epochs" validate:"gte=100"`
	LearningRate      float64 `koanf:"learning_rate" validate:"gt=0,lte=1"`
	HiddenUnits       int     `koanf:"hidden_units" validate:"gte=8"`
	TrainingSeed      uint64  `koanf:"training_seed"`
	TrainingAttempts  int     `koanf:"training_attempts" validate:"gt=0"`
	TrainingTimeoutMS int     `koanf:"training_timeout_ms" validate:"gt=0"`

	// StoreBackend is memory or redis.
	StoreBackend string `koanf:"store_backend" validate:"oneof=memory redis"`
	RedisAddr    string `koanf:"redis_addr" validate:"required_if=StoreBackend redis"`
	RedisDB      int    `koanf:"redis_db" validate:"gte=0"`
	RedisKey     string `koanf:"redis_key" validate:"required_if=StoreBackend redis"`
}

// New returns a Config holding the defaults. The context is reserved for
// future sources and is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":9080",
		QueueSize:         1024,
		WorkerCount:       runtime.NumCPU(),
		CatalogURL:        "https://dummyjson.com/products?limit=100",
		CatalogTimeoutMS:  10_000,
		CatalogMinItems:   100,
		AugmentSeed:       1,
		TrainingEpochs:    1000,
		LearningRate:      0.01,
		HiddenUnits:       16,
		TrainingSeed:      42,
		TrainingAttempts:  5,
		TrainingTimeoutMS: 30_000,
		StoreBackend:      StoreMemory,
		RedisAddr:         "localhost:6379",
		RedisKey:          "restock:catalog",
	}
}

// CatalogTimeout returns CatalogTimeoutMS as a duration.
func (c *Config) CatalogTimeout() time.Duration {
	return time.Duration(c.CatalogTimeoutMS) * time.Millisecond
}

// TrainingTimeout returns TrainingTimeoutMS as a duration.
func (c *Config) TrainingTimeout() time.Duration {
	return time.Duration(c.TrainingTimeoutMS) * time.Millisecond
}
