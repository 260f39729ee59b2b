package preflight

import (
	"context"
	"fmt"

	"scribe/internal/config"
	"scribe/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Inputs names the run-specific locations to check.
type Inputs struct {
	InputDir     string
	OutputDir    string
	SecretsDir   string
	Needs        deps.Needs
	MinFreeBytes uint64
}

// DefaultMinFreeBytes is the free space required on the output filesystem.
const DefaultMinFreeBytes = 2 << 30

// RunAll executes the filesystem, credential and dependency checks for a run.
func RunAll(ctx context.Context, cfg *config.Config, in Inputs) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results, CheckReadableDirectory("Input directory", in.InputDir))
	output := CheckOutputDirectory("Output directory", in.OutputDir)
	results = append(results, output)
	if output.Passed {
		minFree := in.MinFreeBytes
		if minFree == 0 {
			minFree = DefaultMinFreeBytes
		}
		results = append(results, CheckDiskSpace(ctx, "Output disk space", nearestExisting(in.OutputDir), minFree))
	}
	results = append(results, CheckCredentials(in.SecretsDir, cfg.Credentials.FileName))

	for _, status := range CheckSystemDeps(cfg, in.Needs) {
		result := Result{Name: status.Name, Passed: status.Available || status.Optional}
		switch {
		case status.Available:
			result.Detail = status.Path
		case status.Optional:
			result.Detail = fmt.Sprintf("%s (optional)", status.Detail)
		default:
			result.Detail = status.Detail
		}
		results = append(results, result)
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
