// Package logging assembles structured slog loggers and formatting helpers used
// across scribe.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so stage code tags log lines
// with the run ID, job name and stage automatically. Loggers are always
// injected; nothing in the module reads a package-level logger.
package logging
