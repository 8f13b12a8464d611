package probe

import "os"

// ShowHelp prints usage information for the probe tool.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`restock probe
=============

Checks a running restock service against the catalog invariants:
health, summary consistency, per-item decisions, the reorder-only filter,
conjunctive filtering, item lookup and every sort key in both directions.

Usage:
  go run ./cmd/probe [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -timeout duration
        HTTP request timeout (default 10s)
  -workers int
        Number of concurrent checks (default 4)
  -verbose
        Log passing checks too
  -help
        Show this help message

The exit code is 1 when any check fails.
`)
}
