package batch

import (
	"context"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"golang.org/x/sync/errgroup"

	"scribe/internal/ledger"
	"scribe/internal/logging"
	"scribe/internal/metrics"
	"scribe/internal/pipeline"
	"scribe/internal/services"
)

// JobRunner executes the stages of one job.
type JobRunner interface {
	Run(ctx context.Context, job *pipeline.Job) pipeline.Status
}

// Ledger persists run history. *ledger.Store satisfies it.
type Ledger interface {
	StartRun(ctx context.Context, run ledger.Run) error
	RecordJob(ctx context.Context, runID string, job ledger.JobRecord) error
	FinishRun(ctx context.Context, runID string, counts ledger.Counts, finishedAt time.Time, interrupted bool) error
}

// Request describes one batch run.
type Request struct {
	RunID     string
	InputDir  string
	OutputDir string
	Flags     pipeline.Flags
	// Jobs is the worker count; 0 uses the logical CPU count.
	Jobs int
	// FlagSummary is stored in the ledger for history output.
	FlagSummary string
}

// Orchestrator runs batches.
type Orchestrator struct {
	runner  JobRunner
	isVideo func(string) bool
	logger  *slog.Logger
	metrics *metrics.Recorder
	ledger  Ledger
}

// Option customizes the orchestrator.
type Option func(*Orchestrator)

// WithMetrics records job outcomes.
func WithMetrics(recorder *metrics.Recorder) Option {
	return func(o *Orchestrator) {
		o.metrics = recorder
	}
}

// WithLedger records run history.
func WithLedger(l Ledger) Option {
	return func(o *Orchestrator) {
		o.ledger = l
	}
}

// New constructs an orchestrator. isVideo decides which files count as videos.
func New(runner JobRunner, isVideo func(string) bool, logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		runner:  runner,
		isVideo: isVideo,
		logger:  logging.NewComponentLogger(logger, "batch"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run discovers jobs and processes them. Job failures are reported in the
// summary; the returned error covers only run-level problems (unreadable
// input root, lock held by another run).
func (o *Orchestrator) Run(ctx context.Context, req Request) (Summary, error) {
	ctx = services.WithRunID(ctx, req.RunID)
	logger := logging.WithContext(ctx, o.logger)
	summary := Summary{RunID: req.RunID, InputDir: req.InputDir, OutputDir: req.OutputDir, StartedAt: time.Now()}

	jobs, err := Discover(req.InputDir, req.OutputDir, o.isVideo, req.Flags)
	if err != nil {
		return summary, err
	}
	summary.Jobs = jobs

	lock, err := AcquireLock(req.OutputDir)
	if err != nil {
		return summary, err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("release output lock failed", logging.Error(err))
		}
	}()

	// Ledger writes must land even after cancellation.
	recordCtx := context.WithoutCancel(ctx)
	history := o.startRun(recordCtx, logger, req, summary.StartedAt)

	workers := resolveWorkers(req.Jobs, len(jobs))
	logger.Info("batch started",
		logging.String(logging.FieldEventType, "batch_start"),
		logging.String("input_dir", req.InputDir),
		logging.String("output_dir", req.OutputDir),
		logging.Int("jobs", len(jobs)),
		logging.Int("workers", workers),
	)

	var group errgroup.Group
	group.SetLimit(workers)
	for _, job := range jobs {
		group.Go(func() error {
			o.runJob(ctx, recordCtx, logger, history, req.RunID, job)
			return nil
		})
	}
	_ = group.Wait()

	summary.FinishedAt = time.Now()
	summary.Counts = Count(jobs)
	summary.Interrupted = ctx.Err() != nil
	o.finishRun(recordCtx, logger, history, summary)
	return summary, nil
}

func (o *Orchestrator) runJob(ctx, recordCtx context.Context, logger *slog.Logger, history Ledger, runID string, job *pipeline.Job) {
	jobLogger := logger.With(logging.String(logging.FieldJob, job.Name))
	if job.Err != nil {
		message, hint := services.Details(job.Err)
		logging.ErrorWithContext(jobLogger, "job rejected", "job_structural",
			logging.String("error_message", message),
			logging.String(logging.FieldErrorHint, hint),
		)
	} else {
		jobLogger.Info("job started",
			logging.String(logging.FieldEventType, "job_start"),
			logging.String("source", job.SourcePath),
		)
	}

	status := o.runner.Run(ctx, job)
	o.metrics.RecordJob(string(status))

	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "job_complete"),
		logging.String("status", string(status)),
		logging.Duration("elapsed", job.FinishedAt.Sub(job.StartedAt)),
	}
	if failures := FailedStages(job); len(failures) > 0 {
		attrs = append(attrs, logging.String("failed_stages", strings.Join(failures, ",")))
	}
	jobLogger.Info("job finished", logging.Args(attrs...)...)

	if history != nil {
		if err := history.RecordJob(recordCtx, runID, jobRecord(job)); err != nil {
			jobLogger.Warn("ledger write failed", logging.Error(err))
		}
	}
}

// startRun returns the ledger to record into for this run, or nil when the
// ledger is disabled or unavailable.
func (o *Orchestrator) startRun(ctx context.Context, logger *slog.Logger, req Request, started time.Time) Ledger {
	if o.ledger == nil {
		return nil
	}
	err := o.ledger.StartRun(ctx, ledger.Run{
		ID:        req.RunID,
		StartedAt: started,
		InputDir:  req.InputDir,
		OutputDir: req.OutputDir,
		Flags:     req.FlagSummary,
	})
	if err != nil {
		logging.WarnWithContext(logger, "ledger unavailable", "ledger_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run will be missing from scribe history"),
		)
		return nil
	}
	return o.ledger
}

func (o *Orchestrator) finishRun(ctx context.Context, logger *slog.Logger, history Ledger, summary Summary) {
	o.metrics.MarkRunFinished(summary.FinishedAt)
	if history != nil {
		if err := history.FinishRun(ctx, summary.RunID, summary.Counts, summary.FinishedAt, summary.Interrupted); err != nil {
			logger.Warn("ledger write failed", logging.Error(err))
		}
	}
	level := slog.LevelInfo
	if summary.Counts.Failed > 0 || summary.Interrupted {
		level = slog.LevelWarn
	}
	logger.Log(ctx, level, "batch finished",
		logging.Args(
			logging.String(logging.FieldEventType, "batch_complete"),
			logging.Int("succeeded", summary.Counts.Succeeded),
			logging.Int("partially_failed", summary.Counts.PartiallyFailed),
			logging.Int("failed", summary.Counts.Failed),
			logging.Int("skipped", summary.Counts.Skipped),
			logging.Bool("interrupted", summary.Interrupted),
			logging.Duration("elapsed", summary.Elapsed()),
		)...,
	)
}

func resolveWorkers(requested, jobs int) int {
	workers := requested
	if workers <= 0 {
		if n, err := cpu.Counts(true); err == nil && n > 0 {
			workers = n
		} else {
			workers = runtime.NumCPU()
		}
	}
	if jobs > 0 && workers > jobs {
		workers = jobs
	}
	return max(workers, 1)
}

// FailedStages names the failed or partially failed stages of job; structural
// failures report "discover".
func FailedStages(job *pipeline.Job) []string {
	if job.Err != nil {
		return []string{"discover"}
	}
	var names []string
	for _, r := range job.Failures() {
		names = append(names, r.Stage)
	}
	return names
}

// JobError returns the user-facing failure reason of job, or "".
func JobError(job *pipeline.Job) string {
	if job.Err != nil {
		message, _ := services.Details(job.Err)
		return message
	}
	var parts []string
	for _, r := range job.Failures() {
		reason := r.Detail
		if r.Err != nil && !r.Cancelled() {
			reason, _ = services.Details(r.Err)
		}
		parts = append(parts, r.Stage+": "+reason)
	}
	return strings.Join(parts, "; ")
}

func jobRecord(job *pipeline.Job) ledger.JobRecord {
	return ledger.JobRecord{
		Name:         job.Name,
		SourcePath:   job.SourcePath,
		Status:       string(job.Status),
		FailedStages: FailedStages(job),
		Error:        JobError(job),
		Outputs:      job.Outputs(),
		Duration:     job.FinishedAt.Sub(job.StartedAt),
	}
}

var _ Ledger = (*ledger.Store)(nil)
