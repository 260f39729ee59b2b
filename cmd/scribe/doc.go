// Package main hosts the scribe CLI entrypoint and command graph.
//
// The root command runs a batch: it resolves configuration and credentials,
// wires the prober, media tool gateway, speech-to-text client, transcription
// engine and pipeline runner, then hands the input directory to the batch
// orchestrator and renders the summary. Subcommands cover configuration
// scaffolding, preflight checks, input layout preparation and run history.
//
// Keep this package lean: behavior lives in internal packages; commands only
// translate flags into their options.
package main
