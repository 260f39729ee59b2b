package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	"scribe/internal/config"
	"scribe/internal/logging"
	"scribe/internal/media/ffprobe"
	"scribe/internal/mediatool"
	"scribe/internal/metrics"
	"scribe/internal/services"
	"scribe/internal/transcription"
)

// Prober inspects media files.
type Prober interface {
	Probe(ctx context.Context, path string) (ffprobe.Info, error)
}

// Transcriber produces an SRT file from a waveform.
type Transcriber interface {
	Transcribe(ctx context.Context, in transcription.Input) (transcription.Result, error)
}

// Settings holds the configuration the stages read.
type Settings struct {
	SupportedFormats     []string
	TargetFormat         string
	SilentVideo          bool
	CleanupIntermediates bool
}

// SettingsFromConfig maps the relevant config sections.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		SupportedFormats:     append([]string(nil), cfg.Media.SupportedFormats...),
		TargetFormat:         cfg.Media.TargetFormat,
		SilentVideo:          cfg.Audio.SilentVideo,
		CleanupIntermediates: cfg.Batch.CleanupIntermediates,
	}
}

// Runner executes the stages of a job. Safe for concurrent use across jobs.
type Runner struct {
	settings    Settings
	prober      Prober
	gateway     mediatool.Gateway
	transcriber Transcriber
	logger      *slog.Logger
	metrics     *metrics.Recorder
}

// Option customizes a Runner.
type Option func(*Runner)

// WithMetrics records stage durations.
func WithMetrics(recorder *metrics.Recorder) Option {
	return func(r *Runner) {
		r.metrics = recorder
	}
}

// NewRunner constructs a Runner.
func NewRunner(settings Settings, prober Prober, gateway mediatool.Gateway, transcriber Transcriber, logger *slog.Logger, opts ...Option) *Runner {
	if strings.TrimSpace(settings.TargetFormat) == "" {
		settings.TargetFormat = "mp4"
	}
	r := &Runner{
		settings:    settings,
		prober:      prober,
		gateway:     gateway,
		transcriber: transcriber,
		logger:      logging.NewComponentLogger(logger, "pipeline"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// state carries file paths between the stages of one job.
type state struct {
	source        ffprobe.Info
	media         string
	mediaInfo     ffprobe.Info
	audio         string
	speech        string
	intermediates []string
	blocked       map[string]bool
}

type stageSpec struct {
	name      string
	requested func(job *Job) bool
	requires  func(job *Job) []string
	run       func(ctx context.Context, logger *slog.Logger, job *Job, st *state) StageResult
}

func (r *Runner) stages() []stageSpec {
	always := func(*Job) bool { return true }
	return []stageSpec{
		{name: StageNormalize, requested: always, run: r.normalize},
		{
			name:      StageSubtitles,
			requested: func(j *Job) bool { return j.Flags.DetachSubtitles },
			requires:  func(*Job) []string { return []string{StageNormalize} },
			run:       r.extractSubtitles,
		},
		{
			name:      StageAudio,
			requested: func(j *Job) bool { return j.Flags.NeedsAudio() },
			requires:  func(*Job) []string { return []string{StageNormalize} },
			run:       r.extractAudio,
		},
		{
			name:      StageSilentVideo,
			requested: func(j *Job) bool { return j.Flags.DetachAudio && r.settings.SilentVideo },
			requires:  func(*Job) []string { return []string{StageNormalize} },
			run:       r.stripAudio,
		},
		{
			name:      StageSeparate,
			requested: func(j *Job) bool { return j.Flags.FilterTwoStems },
			requires:  func(*Job) []string { return []string{StageAudio} },
			run:       r.separate,
		},
		{
			name:      StageTranscribe,
			requested: func(j *Job) bool { return j.Flags.Language != "" },
			requires: func(j *Job) []string {
				if j.Flags.FilterTwoStems {
					return []string{StageAudio, StageSeparate}
				}
				return []string{StageAudio}
			},
			run: r.transcribe,
		},
	}
}

// Run executes every stage of job in order and sets its final status.
func (r *Runner) Run(ctx context.Context, job *Job) Status {
	ctx = services.WithJob(ctx, job.Name)
	logger := logging.WithContext(ctx, r.logger)
	job.StartedAt = time.Now()
	job.Status = StatusRunning
	defer func() {
		job.FinishedAt = time.Now()
	}()

	if job.Err != nil {
		job.Status = StatusFailed
		return job.Status
	}

	st := &state{blocked: map[string]bool{}}
	for _, spec := range r.stages() {
		job.Results = append(job.Results, r.runStage(ctx, job, st, spec))
	}

	job.Status = ComputeStatus(job.Results, nil)
	r.cleanup(logger, job, st)
	return job.Status
}

func (r *Runner) runStage(ctx context.Context, job *Job, st *state, spec stageSpec) StageResult {
	skip := func(detail string, blocked bool) StageResult {
		if blocked {
			st.blocked[spec.name] = true
		}
		return StageResult{Stage: spec.name, Kind: KindSkipped, Detail: detail}
	}
	if !spec.requested(job) {
		return skip("not requested", true)
	}
	if ctx.Err() != nil {
		res := skip("cancelled", true)
		res.Err = context.Canceled
		return res
	}
	if spec.requires != nil {
		for _, prereq := range spec.requires(job) {
			if st.blocked[prereq] {
				return skip(prereq+" did not complete", true)
			}
		}
	}

	// In-flight stages finish even when the run is cancelled.
	stageCtx := services.WithStage(context.WithoutCancel(ctx), spec.name)
	logger := logging.WithContext(stageCtx, r.logger)
	logger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))

	started := time.Now()
	result := spec.run(stageCtx, logger, job, st)
	result.Stage = spec.name
	result.Duration = time.Since(started)
	r.metrics.RecordStage(spec.name, string(result.Kind), result.Duration)

	switch result.Kind {
	case KindFailed:
		st.blocked[spec.name] = true
		message, hint := services.Details(result.Err)
		logging.ErrorWithContext(logger, "stage failed", "stage_failure",
			logging.String("error_message", message),
			logging.String(logging.FieldErrorHint, hint),
			logging.Error(result.Err),
		)
	case KindPartiallyFailed:
		logging.WarnWithContext(logger, "stage completed with gaps", "stage_partial",
			logging.String("detail", result.Detail),
			logging.String(logging.FieldImpact, "output is incomplete"),
			logging.String(logging.FieldErrorHint, "rerun the job to retry failed chunks"),
		)
	default:
		logger.Info("stage completed",
			logging.String(logging.FieldEventType, "stage_complete"),
			logging.String("result", string(result.Kind)),
			logging.String("detail", result.Detail),
			logging.String("output", result.Output),
			logging.Duration("elapsed", result.Duration),
		)
	}
	return result
}

// cleanup removes intermediate files once a transcript exists.
func (r *Runner) cleanup(logger *slog.Logger, job *Job, st *state) {
	if !r.settings.CleanupIntermediates || len(st.intermediates) == 0 {
		return
	}
	res, ok := job.Result(StageTranscribe)
	if !ok || (res.Kind != KindSuccess && res.Kind != KindPartiallyFailed) {
		return
	}
	for _, path := range st.intermediates {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logging.WarnWithContext(logger, "intermediate cleanup failed", "cleanup_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "intermediate file left in output directory"),
			)
			continue
		}
		logger.Debug("intermediate removed", logging.String("path", path))
	}
}

func failed(err error, detail string) StageResult {
	return StageResult{Kind: KindFailed, Err: err, Detail: detail}
}
