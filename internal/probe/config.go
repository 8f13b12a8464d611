package probe

import "time"

// Config holds configuration for a probe run.
type Config struct {
	BaseURL string        // Base URL of the service
	Timeout time.Duration // HTTP request timeout
	Workers int           // Concurrent sort checks
	Verbose bool          // Log every passing check
}

// CheckResult is the outcome of one invariant check.
type CheckResult struct {
	Name     string        `json:"name"`
	Passed   bool          `json:"passed"`
	Detail   string        `json:"detail,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Report collects every check of a run.
type Report struct {
	Checks    []CheckResult `json:"checks"`
	Passed    int           `json:"passed"`
	Failed    int           `json:"failed"`
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`
}

func (r *Report) add(c CheckResult) {
	r.Checks = append(r.Checks, c)
	if c.Passed {
		r.Passed++
	} else {
		r.Failed++
	}
}
