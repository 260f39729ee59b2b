// Package config loads, normalizes, and validates scribe configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts) and reads TOML files. The Config type centralizes every knob the
// batch CLI needs: tool binaries, normalization formats, chunking and retry
// policy for transcription, and the ledger/metrics outputs.
//
// Always obtain settings through this package so downstream code receives
// sanitized values and clear validation errors. Command-line flags override
// the loaded values in cmd/scribe.
package config
