package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/restock/internal/adapters/http/api"
	"github.com/okian/restock/internal/adapters/http/swagger"
	"github.com/okian/restock/internal/adapters/repository"
	"github.com/okian/restock/internal/adapters/source"
	service "github.com/okian/restock/internal/app"
	"github.com/okian/restock/internal/config"
	"github.com/okian/restock/internal/domain/classifier"
	"github.com/okian/restock/pkg/logger"
	"github.com/okian/restock/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 30 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Logger isn't available yet
		_, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		_, _ = os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	store, err := newStore(ctx, cfg)
	if err != nil {
		log.Fatal(ctx, "failed to open store", logger.String("backend", cfg.StoreBackend), logger.Error(err))
	}

	svc := newService(cfg, store, newSource(cfg), log)
	if err := svc.Start(ctx); err != nil {
		log.Fatal(ctx, "failed to start service", logger.Error(err))
	}
	defer svc.Stop()

	// Initial catalog load. A classifier that cannot be trained is fatal;
	// an unreachable upstream is retried through POST /catalog/reload.
	if report, err := svc.Reload(ctx); err != nil {
		if errors.Is(err, classifier.ErrInitialization) {
			log.Fatal(ctx, "classifier initialization failed", logger.Error(err))
		}
		log.Error(ctx, "initial catalog load failed", logger.Error(err))
	} else {
		log.Info(ctx, "catalog loaded",
			logger.Int("accepted", report.Accepted),
			logger.Int("rejected", len(report.Rejected)),
		)
	}

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	// HTTP mux and routes.
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc).Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
}

// newStore opens the configured snapshot backend.
func newStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	if cfg.StoreBackend == config.StoreRedis {
		return repository.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisDB, repository.WithKey(cfg.RedisKey))
	}
	return repository.NewMemoryStore(), nil
}

// newSource prefers a local catalog file over the upstream URL.
func newSource(cfg *config.Config) source.Source {
	if cfg.CatalogFile != "" {
		return source.NewFileSource(cfg.CatalogFile, cfg.CatalogMinItems)
	}
	return source.NewHTTPSource(cfg.CatalogURL,
		source.WithTimeout(cfg.CatalogTimeout()),
		source.WithAugmentSeed(cfg.AugmentSeed),
		source.WithMinItems(cfg.CatalogMinItems),
		source.WithLogger(logger.Named("source")),
	)
}

func newService(cfg *config.Config, store repository.Store, src source.Source, log logger.Logger) *service.Service {
	return service.New(
		service.WithLogger(log),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.QueueSize),
		service.WithStore(store),
		service.WithSource(src),
		service.WithTrainingTimeout(cfg.TrainingTimeout()),
		service.WithClassifierOptions(
			classifier.WithHiddenUnits(cfg.HiddenUnits),
			classifier.WithEpochs(cfg.TrainingEpochs),
			classifier.WithLearningRate(cfg.LearningRate),
			classifier.WithSeed(cfg.TrainingSeed),
			classifier.WithAttempts(cfg.TrainingAttempts),
		),
	)
}

// startSystemMetricsUpdater updates runtime metrics until ctx is done.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater refreshes the service gauges until ctx is done.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics pushes the stats that GetStats does not already export.
func updateServiceMetrics(svc *service.Service) {
	stats := svc.GetStats()

	if ready, ok := stats["classifierReady"].(bool); ok {
		metrics.UpdateClassifierReady(ready)
	}
	if loss, ok := stats["trainingLoss"].(float64); ok && loss > 0 {
		metrics.UpdateTrainingLoss(loss)
	}
}
