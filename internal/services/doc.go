// Package services defines shared utilities consumed by the pipeline stages
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, job names, stage names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so stage failures can be
//     classified with errors.Is and summarized for operators.
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pipeline.
package services
