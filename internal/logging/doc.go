// Package logging assembles structured slog loggers and formatting helpers used
// across dhis2dupes.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so every log line emitted during
// a run carries its run ID. Console output goes to stderr so command output on
// stdout (tables, JSON, CSV) stays machine-readable. The package also provides
// a no-op logger for tests and wiring code that cannot fail.
package logging
