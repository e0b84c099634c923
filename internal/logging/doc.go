// Package logging assembles structured slog loggers and formatting helpers used
// across OnTheFly.
//
// It owns the console, tint, and JSON handlers, centralizes level and output
// plumbing, and exposes context helpers so request handlers and the capture
// loop can tag log lines with request IDs and frame sources. The package also
// provides a no-op logger for tests and wiring code that cannot fail.
package logging
