// Package probe checks a running restock service against the catalog
// invariants: aggregates, filters, sort order and per-item decisions.
package probe

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/restock/pkg/logger"
)

const (
	defaultTimeout = 10 * time.Second
	defaultWorkers = 4
)

// Run executes every check and returns the report. The error wraps
// ErrViolation when any check failed.
func Run(ctx context.Context, config *Config) (*Report, error) {
	cfg := *config
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}

	log := logger.Get().Named("probe")
	report := &Report{StartTime: time.Now()}
	c := newClient(cfg.BaseURL, cfg.Timeout)

	log.Info(ctx, "starting restock probe",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("workers", cfg.Workers),
		logger.Duration("timeout", cfg.Timeout),
	)

	// Health first: nothing else is meaningful against a dead service.
	health := checks()[0]
	res := runCheck(ctx, c, health)
	report.add(res)
	logResult(ctx, log, res, cfg.Verbose)
	if !res.Passed {
		report.Duration = time.Since(report.StartTime)
		return report, fmt.Errorf("%w: %s: %s", ErrViolation, res.Name, res.Detail)
	}

	rest := append(checks()[1:], sortChecks()...)
	results := make([]CheckResult, len(rest))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i, ch := range rest {
		g.Go(func() error {
			r := runCheck(gctx, c, ch)
			results[i] = r
			logResult(gctx, log, r, cfg.Verbose)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		report.add(r)
	}
	report.Duration = time.Since(report.StartTime)

	log.Info(ctx, "probe finished",
		logger.Int("passed", report.Passed),
		logger.Int("failed", report.Failed),
		logger.Duration("duration", report.Duration),
	)

	if report.Failed > 0 {
		return report, fmt.Errorf("%w: %d of %d checks failed", ErrViolation, report.Failed, len(report.Checks))
	}
	return report, nil
}

func runCheck(ctx context.Context, c *client, ch check) CheckResult {
	start := time.Now()
	err := ch.run(ctx, c)
	res := CheckResult{Name: ch.name, Passed: err == nil, Duration: time.Since(start)}
	if err != nil {
		res.Detail = err.Error()
	}
	return res
}

func logResult(ctx context.Context, log logger.Logger, r CheckResult, verbose bool) {
	if !r.Passed {
		log.Error(ctx, "check failed", logger.String("check", r.Name), logger.String("detail", r.Detail))
		return
	}
	if verbose {
		log.Info(ctx, "check passed", logger.String("check", r.Name), logger.Duration("duration", r.Duration))
	}
}
