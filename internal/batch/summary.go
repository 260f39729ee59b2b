package batch

import (
	"time"

	"scribe/internal/ledger"
	"scribe/internal/pipeline"
)

// Summary aggregates the outcome of a run.
type Summary struct {
	RunID       string
	InputDir    string
	OutputDir   string
	Jobs        []*pipeline.Job
	Counts      ledger.Counts
	Interrupted bool
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Exit codes reported by the CLI.
const (
	ExitOK          = 0
	ExitFailed      = 1
	ExitUsage       = 2
	ExitPartial     = 3
	ExitInterrupted = 130
)

// Count tallies final job statuses.
func Count(jobs []*pipeline.Job) ledger.Counts {
	var counts ledger.Counts
	for _, job := range jobs {
		switch job.Status {
		case pipeline.StatusSucceeded:
			counts.Succeeded++
		case pipeline.StatusPartiallyFailed:
			counts.PartiallyFailed++
		case pipeline.StatusFailed:
			counts.Failed++
		default:
			counts.Skipped++
		}
	}
	return counts
}

// ExitCode maps the summary to the process exit status: any Failed job wins,
// then interruption, then PartiallyFailed.
func (s Summary) ExitCode() int {
	switch {
	case s.Counts.Failed > 0:
		return ExitFailed
	case s.Interrupted:
		return ExitInterrupted
	case s.Counts.PartiallyFailed > 0:
		return ExitPartial
	default:
		return ExitOK
	}
}

// Elapsed is the wall time of the run.
func (s Summary) Elapsed() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// FailedJobs returns jobs that failed or partially failed, in discovery order.
func (s Summary) FailedJobs() []*pipeline.Job {
	var out []*pipeline.Job
	for _, job := range s.Jobs {
		if job.Status == pipeline.StatusFailed || job.Status == pipeline.StatusPartiallyFailed {
			out = append(out, job)
		}
	}
	return out
}
