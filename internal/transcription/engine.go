package transcription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"scribe/internal/config"
	"scribe/internal/fileutil"
	"scribe/internal/logging"
	"scribe/internal/media/ffprobe"
	"scribe/internal/mediatool"
	"scribe/internal/metrics"
	"scribe/internal/services"
	"scribe/internal/services/stt"
	"scribe/internal/subtitles"
)

// Prober reports the duration of the waveform being transcribed.
type Prober interface {
	Probe(ctx context.Context, path string) (ffprobe.Info, error)
}

// Settings tunes chunking, concurrency, retries and transcript cleaning.
type Settings struct {
	ChunkLength      time.Duration
	MaxConcurrent    int
	MaxAttempts      int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration
	Prompt           string
	MaxPhraseRepeats int
	BlockedPhrases   []string
}

// SettingsFromConfig maps the [transcription] section.
func SettingsFromConfig(cfg *config.Config) Settings {
	base, maxDelay := cfg.RetryBackoff()
	return Settings{
		ChunkLength:      cfg.ChunkDuration(),
		MaxConcurrent:    cfg.Transcription.MaxConcurrentRequests,
		MaxAttempts:      cfg.Transcription.MaxAttempts,
		RetryBaseDelay:   base,
		RetryMaxDelay:    maxDelay,
		Prompt:           cfg.Transcription.Prompt,
		MaxPhraseRepeats: cfg.Transcription.MaxPhraseRepeats,
		BlockedPhrases:   append([]string(nil), cfg.Transcription.BlockedPhrases...),
	}
}

// Status is the outcome of one transcription.
type Status string

const (
	StatusSucceeded       Status = "succeeded"
	StatusPartiallyFailed Status = "partially_failed"
	StatusFailed          Status = "failed"
)

// ChunkFailure records a window left out of the document.
type ChunkFailure struct {
	Index    int
	Start    time.Duration
	Attempts int
	Err      error
}

// Result summarizes one transcription.
type Result struct {
	Status     Status
	OutputPath string
	Chunks     int
	Failed     []ChunkFailure
	Lines      int
	Repair     subtitles.RepairStats
	Clean      subtitles.CleanStats
}

// Detail renders a one-line description of skipped windows.
func (r Result) Detail() string {
	if len(r.Failed) == 0 {
		return fmt.Sprintf("%d lines from %d chunks", r.Lines, r.Chunks)
	}
	parts := make([]string, 0, len(r.Failed))
	for _, f := range r.Failed {
		parts = append(parts, fmt.Sprintf("chunk %d at %s", f.Index, subtitles.FormatTimestamp(f.Start)))
	}
	return fmt.Sprintf("%d of %d chunks failed (%s)", len(r.Failed), r.Chunks, strings.Join(parts, ", "))
}

// Input names the waveform to transcribe and the SRT to produce.
type Input struct {
	AudioPath  string
	OutputPath string
	// Language is an ISO 639-1 code.
	Language string
}

// Engine runs transcriptions. Safe for concurrent use across jobs.
type Engine struct {
	settings Settings
	gateway  mediatool.Gateway
	client   stt.Client
	prober   Prober
	logger   *slog.Logger
	metrics  *metrics.Recorder
	sleeper  func(time.Duration)
}

// Option customizes the engine.
type Option func(*Engine)

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(e *Engine) {
		e.sleeper = sleeper
	}
}

// WithMetrics records chunk and request metrics.
func WithMetrics(recorder *metrics.Recorder) Option {
	return func(e *Engine) {
		e.metrics = recorder
	}
}

// NewEngine constructs an engine.
func NewEngine(settings Settings, gateway mediatool.Gateway, client stt.Client, prober Prober, logger *slog.Logger, opts ...Option) *Engine {
	if settings.MaxConcurrent <= 0 {
		settings.MaxConcurrent = 1
	}
	if settings.RetryBaseDelay < 0 {
		settings.RetryBaseDelay = defaultRetryBaseDelay
	}
	e := &Engine{
		settings: settings,
		gateway:  gateway,
		client:   client,
		prober:   prober,
		logger:   logging.NewComponentLogger(logger, "transcription"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Transcribe produces in.OutputPath from in.AudioPath. The returned error is
// non-nil exactly when the result is StatusFailed; a PartiallyFailed result
// has a written document and lists the missing windows.
func (e *Engine) Transcribe(ctx context.Context, in Input) (Result, error) {
	logger := logging.WithContext(ctx, e.logger)
	result := Result{Status: StatusFailed, OutputPath: in.OutputPath}

	info, err := e.prober.Probe(ctx, in.AudioPath)
	if err != nil {
		return result, err
	}
	if info.Duration <= 0 {
		return result, services.Wrap(services.ErrUnreadableMedia, "transcribe", "probe audio", "zero duration", nil)
	}

	segments := PlanChunks(info.Duration, e.settings.ChunkLength)
	result.Chunks = len(segments)
	logger.Info("transcription planned",
		logging.String("audio", filepath.Base(in.AudioPath)),
		logging.Duration("audio_duration", info.Duration),
		logging.Int("chunks", len(segments)),
		logging.Duration("chunk_length", e.settings.ChunkLength),
		logging.String("language", in.Language),
	)

	workDir, err := os.MkdirTemp(filepath.Dir(in.OutputPath), ".chunks-")
	if err != nil {
		return result, services.Wrap(services.ErrExtraction, "transcribe", "create chunk dir", "", err)
	}
	defer os.RemoveAll(workDir)

	responses := make([]*stt.Response, len(segments))
	failures := make([]*ChunkFailure, len(segments))

	var group errgroup.Group
	group.SetLimit(e.settings.MaxConcurrent)
	for i := range segments {
		seg := segments[i]
		seg.Path = filepath.Join(workDir, fmt.Sprintf("chunk-%03d.wav", seg.Index))
		group.Go(func() error {
			resp, attempts, err := e.transcribeChunk(ctx, logger, in.AudioPath, seg, in.Language)
			if err != nil {
				failures[seg.Index] = &ChunkFailure{Index: seg.Index, Start: seg.Start, Attempts: attempts, Err: err}
				e.metrics.RecordChunk("failed")
				logging.WarnWithContext(logger, "chunk excluded from transcript", "chunk_failed",
					logging.Int("chunk", seg.Index),
					logging.String("chunk_start", subtitles.FormatTimestamp(seg.Start)),
					logging.Int("attempts", attempts),
					logging.Error(err),
					logging.String(logging.FieldImpact, "transcript has a gap for this chunk"),
					logging.String(logging.FieldErrorHint, hintFor(err)),
				)
				return nil
			}
			responses[seg.Index] = &resp
			e.metrics.RecordChunk("ok")
			return nil
		})
	}
	_ = group.Wait()

	for _, f := range failures {
		if f != nil {
			result.Failed = append(result.Failed, *f)
		}
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}
	if len(result.Failed) == len(segments) {
		first := result.Failed[0].Err
		marker := services.Marker(first)
		if marker == nil {
			marker = services.ErrSTTTransient
		}
		return result, services.Wrap(marker, "transcribe", "chunks", fmt.Sprintf("all %d chunks failed", len(segments)), first)
	}

	doc, err := e.assemble(logger, segments, responses, &result)
	if err != nil {
		return result, err
	}
	if err := fileutil.WriteFileAtomic(in.OutputPath, subtitles.Format(doc), 0o644); err != nil {
		return result, services.Wrap(services.ErrExtraction, "transcribe", "write srt", filepath.Base(in.OutputPath), err)
	}

	result.Lines = doc.Len()
	result.Status = StatusSucceeded
	if len(result.Failed) > 0 {
		result.Status = StatusPartiallyFailed
	}
	e.metrics.RecordLines(result.Lines, map[string]int{
		"empty":    result.Repair.DroppedEmpty,
		"invalid":  result.Repair.DroppedInvalid,
		"repeated": result.Clean.RemovedRepeated,
		"blocked":  result.Clean.RemovedBlocked,
	})
	if result.Lines == 0 {
		logging.WarnWithContext(logger, "transcript has no speech", "transcript_empty",
			logging.String("output", in.OutputPath),
			logging.Int("chunks", result.Chunks),
			logging.String(logging.FieldImpact, "subtitle file is empty"),
			logging.String(logging.FieldErrorHint, "check the audio track or disable vocal isolation"),
		)
	}
	logger.Info("transcript written",
		logging.String("output", in.OutputPath),
		logging.Int("lines", result.Lines),
		logging.Int("failed_chunks", len(result.Failed)),
		logging.String("status", string(result.Status)),
	)
	return result, nil
}

func (e *Engine) assemble(logger *slog.Logger, segments []Segment, responses []*stt.Response, result *Result) (subtitles.Document, error) {
	repaired, repairStats := subtitles.Repair(stitch(segments, responses))
	result.Repair = repairStats
	if err := subtitles.Validate(repaired); err != nil {
		return subtitles.Document{}, services.Wrap(services.ErrAssemblyInvariant, "transcribe", "assemble", "", err)
	}
	if repairStats.Trimmed > 0 || repairStats.DroppedInvalid > 0 {
		logger.Debug("transcript timing repaired",
			logging.Int("trimmed", repairStats.Trimmed),
			logging.Int("dropped_invalid", repairStats.DroppedInvalid),
			logging.Int("dropped_empty", repairStats.DroppedEmpty),
		)
	}

	cleaned, cleanStats := subtitles.Clean(repaired, subtitles.CleanOptions{
		MaxRepeats:     e.settings.MaxPhraseRepeats,
		BlockedPhrases: e.settings.BlockedPhrases,
	})
	result.Clean = cleanStats
	if cleanStats.Removed() > 0 {
		logging.WarnWithContext(logger, "hallucinated lines removed", "transcript_cleaned",
			logging.Int("repeated", cleanStats.RemovedRepeated),
			logging.Int("blocked", cleanStats.RemovedBlocked),
			logging.String("phrases", strings.Join(cleanStats.RepeatedPhrases, "; ")),
			logging.String(logging.FieldImpact, "lines dropped from transcript"),
			logging.String(logging.FieldErrorHint, "raise transcription.max_phrase_repeats to keep repeated lines"),
		)
	}
	if err := subtitles.Validate(cleaned); err != nil {
		return subtitles.Document{}, services.Wrap(services.ErrAssemblyInvariant, "transcribe", "clean", "", err)
	}
	return cleaned, nil
}

// transcribeChunk cuts one window and submits it, retrying transient
// failures. It returns the number of service attempts made.
func (e *Engine) transcribeChunk(ctx context.Context, logger *slog.Logger, audioPath string, seg Segment, language string) (stt.Response, int, error) {
	if err := e.gateway.ExtractSegment(ctx, audioPath, seg.Start, seg.Duration, seg.Path); err != nil {
		return stt.Response{}, 0, err
	}
	data, err := os.ReadFile(seg.Path)
	_ = os.Remove(seg.Path)
	if err != nil {
		return stt.Response{}, 0, services.Wrap(services.ErrExtraction, "transcribe", "read chunk", filepath.Base(seg.Path), err)
	}
	seg.Data = data

	requestID := uuid.NewString()
	ctx = services.WithRequestID(ctx, requestID)
	req := stt.Request{
		Audio:    seg.Data,
		FileName: filepath.Base(seg.Path),
		Language: language,
		Prompt:   e.settings.Prompt,
	}
	var lastErr error
	for attempt := 1; attempt <= e.attempts(); attempt++ {
		started := time.Now()
		resp, err := e.client.Transcribe(ctx, req)
		e.metrics.RecordSTTRequest(outcomeOf(err), time.Since(started))
		if err == nil {
			return resp, attempt, nil
		}
		lastErr = err

		delay, retry := e.retryDelay(ctx, err, attempt)
		if !retry {
			return stt.Response{}, attempt, err
		}
		e.metrics.RecordSTTRetry()
		logger.Info("retrying chunk",
			logging.Int("chunk", seg.Index),
			logging.String(logging.FieldRequestID, requestID),
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.Error(err),
		)
		if err := e.sleep(ctx, delay); err != nil {
			return stt.Response{}, attempt, err
		}
	}
	return stt.Response{}, e.attempts(), lastErr
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case stt.IsTransient(err):
		return "transient"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "permanent"
	}
}

func hintFor(err error) string {
	_, hint := services.Details(err)
	return hint
}
