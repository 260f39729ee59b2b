package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"scribe/internal/batch"
	"scribe/internal/config"
	"scribe/internal/credentials"
	"scribe/internal/language"
	"scribe/internal/ledger"
	"scribe/internal/logging"
	"scribe/internal/media/ffprobe"
	"scribe/internal/mediatool"
	"scribe/internal/metrics"
	"scribe/internal/notifications"
	"scribe/internal/pipeline"
	"scribe/internal/services/stt"
	"scribe/internal/transcription"
)

// runOptions holds the batch flags shared by the root and check commands.
type runOptions struct {
	inputDir         string
	outputDir        string
	secretsDir       string
	detachSubtitles  bool
	detachAudio      bool
	speechToText     string
	filterTwoStems   bool
	requireSubtitles bool
	device           string
	jobs             int
}

func bindRunFlags(cmd *cobra.Command, opts *runOptions) {
	flags := cmd.Flags()
	flags.StringVarP(&opts.inputDir, "input-dir", "i", "", "Directory whose subdirectories each hold one video (required)")
	flags.StringVarP(&opts.outputDir, "output-dir", "o", "", "Output root (default: parent of --input-dir)")
	flags.StringVar(&opts.secretsDir, "secrets-dir", "", "Directory containing the credential file (required)")
	flags.BoolVar(&opts.detachSubtitles, "detach-subtitles", false, "Copy the first embedded subtitle stream to SRT")
	flags.BoolVar(&opts.detachAudio, "detach-audio", false, "Extract the audio track to WAV")
	flags.StringVar(&opts.speechToText, "speech-to-text", "", "Transcribe speech in the given language (e.g. en)")
	flags.BoolVar(&opts.filterTwoStems, "filter-two-stems", false, "Isolate vocals before transcription")
	flags.BoolVar(&opts.requireSubtitles, "require-subtitles", false, "Fail jobs whose video has no subtitle stream")
	flags.StringVar(&opts.device, "device", string(mediatool.DeviceCPU), "Vocal isolation device (cpu or gpu)")
	flags.IntVarP(&opts.jobs, "jobs", "j", 0, "Videos processed concurrently (0 uses all CPUs; default from config)")
}

// runPlan is the validated form of runOptions.
type runPlan struct {
	inputDir   string
	outputDir  string
	secretsDir string
	flags      pipeline.Flags
	jobs       int
}

func resolveRunPlan(cmd *cobra.Command, cfg *config.Config, opts *runOptions) (runPlan, error) {
	var plan runPlan
	if strings.TrimSpace(opts.inputDir) == "" {
		return plan, usageErrorf("--input-dir is required")
	}
	if strings.TrimSpace(opts.secretsDir) == "" {
		return plan, usageErrorf("--secrets-dir is required")
	}

	inputDir, err := absPath(opts.inputDir)
	if err != nil {
		return plan, usageErrorf("--input-dir: %v", err)
	}
	plan.inputDir = inputDir
	plan.outputDir = filepath.Dir(inputDir)
	if strings.TrimSpace(opts.outputDir) != "" {
		if plan.outputDir, err = absPath(opts.outputDir); err != nil {
			return plan, usageErrorf("--output-dir: %v", err)
		}
	}
	if plan.secretsDir, err = absPath(opts.secretsDir); err != nil {
		return plan, usageErrorf("--secrets-dir: %v", err)
	}

	device, err := mediatool.ParseDevice(opts.device)
	if err != nil {
		return plan, usageErrorf("--device: %v", err)
	}

	var lang string
	if strings.TrimSpace(opts.speechToText) != "" {
		lang, err = language.Validate(opts.speechToText, cfg.Transcription.SupportedLanguages)
		if err != nil {
			return plan, usageErrorf("--speech-to-text: %v", err)
		}
	}

	plan.jobs = cfg.Batch.Jobs
	if cmd.Flags().Changed("jobs") {
		if opts.jobs < 0 {
			return plan, usageErrorf("--jobs must be >= 0")
		}
		plan.jobs = opts.jobs
	}

	plan.flags = pipeline.Flags{
		DetachSubtitles:  opts.detachSubtitles,
		DetachAudio:      opts.detachAudio,
		Language:         lang,
		FilterTwoStems:   opts.filterTwoStems,
		Device:           device,
		RequireSubtitles: opts.requireSubtitles || cfg.Batch.RequireSubtitles,
	}
	if plan.flags.RequireSubtitles && !plan.flags.DetachSubtitles {
		return plan, usageErrorf("--require-subtitles needs --detach-subtitles")
	}
	return plan, nil
}

func absPath(value string) (string, error) {
	expanded, err := config.ExpandPath(strings.TrimSpace(value))
	if err != nil {
		return "", err
	}
	return filepath.Abs(expanded)
}

// flagSummary renders the effective flags for the run ledger.
func (p runPlan) flagSummary() string {
	var parts []string
	if p.flags.DetachSubtitles {
		parts = append(parts, "--detach-subtitles")
	}
	if p.flags.RequireSubtitles {
		parts = append(parts, "--require-subtitles")
	}
	if p.flags.DetachAudio {
		parts = append(parts, "--detach-audio")
	}
	if p.flags.Language != "" {
		parts = append(parts, "--speech-to-text "+p.flags.Language)
	}
	if p.flags.FilterTwoStems {
		parts = append(parts, "--filter-two-stems", "--device "+string(p.flags.Device))
	}
	return strings.Join(parts, " ")
}

func runBatch(cmd *cobra.Command, cctx *commandContext, opts *runOptions) error {
	cfg, err := cctx.ensureConfig()
	if err != nil {
		return err
	}
	plan, err := resolveRunPlan(cmd, cfg, opts)
	if err != nil {
		return err
	}
	logger, err := cctx.newLogger(cmd)
	if err != nil {
		return err
	}

	notifier := notifications.NewService(cfg)
	creds, err := credentials.Load(plan.secretsDir, cfg.Credentials.FileName)
	if err != nil {
		notify(cmd, logger, func(ctx context.Context) error { return notifier.NotifyRunAborted(ctx, err) })
		return err
	}
	logger.Debug("credentials loaded",
		logging.String("source", creds.Source),
		logging.String("deployment", creds.Deployment),
		logging.String("api_key", creds.Redacted().APIKey),
	)

	recorder := metrics.New()
	runner, err := buildRunner(cfg, creds, logger, recorder)
	if err != nil {
		return err
	}

	batchOpts := []batch.Option{batch.WithMetrics(recorder)}
	if store := openLedger(cfg, logger); store != nil {
		defer store.Close()
		batchOpts = append(batchOpts, batch.WithLedger(store))
	}

	orchestrator := batch.New(runner, cfg.IsVideoFile, logger, batchOpts...)
	summary, err := orchestrator.Run(cmd.Context(), batch.Request{
		RunID:       uuid.NewString(),
		InputDir:    plan.inputDir,
		OutputDir:   plan.outputDir,
		Flags:       plan.flags,
		Jobs:        plan.jobs,
		FlagSummary: plan.flagSummary(),
	})
	if err != nil {
		if errors.Is(err, batch.ErrLocked) {
			err = fmt.Errorf("%w; wait for the other run to finish", err)
		}
		notify(cmd, logger, func(ctx context.Context) error { return notifier.NotifyRunAborted(ctx, err) })
		return err
	}

	renderSummary(cmd.OutOrStdout(), summary, shouldColorize(cmd.OutOrStdout()))
	notify(cmd, logger, func(ctx context.Context) error { return notifier.NotifyRunCompleted(ctx, runReport(summary)) })

	if path := strings.TrimSpace(cfg.Metrics.Textfile); path != "" {
		if err := recorder.WriteTextfile(path); err != nil {
			logging.WarnWithContext(logger, "metrics export failed", "metrics_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "node_exporter will report stale values"),
			)
		}
	}

	if code := summary.ExitCode(); code != batch.ExitOK {
		return withExitCode(code, nil)
	}
	return nil
}

func runReport(summary batch.Summary) notifications.RunReport {
	report := notifications.RunReport{
		RunID:           summary.RunID,
		InputDir:        summary.InputDir,
		Succeeded:       summary.Counts.Succeeded,
		PartiallyFailed: summary.Counts.PartiallyFailed,
		Failed:          summary.Counts.Failed,
		Skipped:         summary.Counts.Skipped,
		Interrupted:     summary.Interrupted,
		Elapsed:         summary.Elapsed(),
	}
	for _, job := range summary.FailedJobs() {
		report.FailedJobs = append(report.FailedJobs, job.Name+": "+batch.JobError(job))
	}
	return report
}

// notify delivers a notification even after the run was interrupted; failures
// only warn.
func notify(cmd *cobra.Command, logger *slog.Logger, send func(context.Context) error) {
	if err := send(context.WithoutCancel(cmd.Context())); err != nil {
		logging.WarnWithContext(logger, "notification failed", "notification_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run summary was not delivered to ntfy"),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
		)
	}
}

// buildRunner wires the production collaborators of the pipeline.
func buildRunner(cfg *config.Config, creds credentials.Credentials, logger *slog.Logger, recorder *metrics.Recorder) (*pipeline.Runner, error) {
	prober := ffprobe.NewProber(cfg.Media.FFprobeBinary, ffprobe.WithTimeout(cfg.ToolTimeout()))
	toolSettings, err := mediatool.SettingsFromConfig(cfg)
	if err != nil {
		return nil, withExitCode(batch.ExitUsage, err)
	}
	tools := mediatool.New(toolSettings, logger)
	client := stt.NewAzureClient(stt.AzureConfig{
		Endpoint:   creds.Endpoint,
		Deployment: creds.Deployment,
		APIKey:     creds.APIKey,
		APIVersion: cfg.Transcription.APIVersion,
		Timeout:    cfg.RequestTimeout(),
	}, stt.WithLogger(logger))
	engine := transcription.NewEngine(
		transcription.SettingsFromConfig(cfg),
		tools,
		client,
		prober,
		logger,
		transcription.WithMetrics(recorder),
	)
	return pipeline.NewRunner(
		pipeline.SettingsFromConfig(cfg),
		prober,
		tools,
		engine,
		logger,
		pipeline.WithMetrics(recorder),
	), nil
}

// openLedger returns the run history store, or nil when disabled or unavailable.
func openLedger(cfg *config.Config, logger *slog.Logger) *ledger.Store {
	if !cfg.Ledger.Enabled {
		return nil
	}
	store, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		logging.WarnWithContext(logger, "run history unavailable", "ledger_failed",
			logging.String("path", cfg.Ledger.Path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "run will be missing from scribe history"),
		)
		return nil
	}
	return store
}
