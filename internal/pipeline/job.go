package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"scribe/internal/mediatool"
)

// Stage names in execution order.
const (
	StageNormalize   = "normalize"
	StageSubtitles   = "subtitles"
	StageAudio       = "audio"
	StageSilentVideo = "silent_video"
	StageSeparate    = "separate"
	StageTranscribe  = "transcribe"
)

// StageOrder lists every stage in execution order.
var StageOrder = []string{
	StageNormalize,
	StageSubtitles,
	StageAudio,
	StageSilentVideo,
	StageSeparate,
	StageTranscribe,
}

// Kind is the outcome of one stage.
type Kind string

const (
	KindSuccess         Kind = "success"
	KindSkipped         Kind = "skipped"
	KindPartiallyFailed Kind = "partially_failed"
	KindFailed          Kind = "failed"
)

// StageResult records one stage outcome. Never mutated after creation.
type StageResult struct {
	Stage    string
	Kind     Kind
	Err      error
	Output   string
	Detail   string
	Duration time.Duration
}

// Cancelled reports whether the stage was requested but never started
// because the run was cancelled.
func (r StageResult) Cancelled() bool {
	return r.Kind == KindSkipped && errors.Is(r.Err, context.Canceled)
}

// Status is the overall state of a job.
type Status string

const (
	StatusPending         Status = "pending"
	StatusRunning         Status = "running"
	StatusSucceeded       Status = "succeeded"
	StatusPartiallyFailed Status = "partially_failed"
	StatusFailed          Status = "failed"
	StatusSkipped         Status = "skipped"
)

// Flags are the per-run options applied to every job.
type Flags struct {
	DetachSubtitles  bool
	DetachAudio      bool
	Language         string
	FilterTwoStems   bool
	Device           mediatool.Device
	RequireSubtitles bool
}

// NeedsAudio reports whether the waveform must be extracted. Transcription
// and stem separation imply it.
func (f Flags) NeedsAudio() bool {
	return f.DetachAudio || f.FilterTwoStems || f.Language != ""
}

// Job is one input video.
type Job struct {
	Name       string
	SourcePath string
	WorkDir    string
	OutputDir  string
	Container  string
	Flags      Flags
	Status     Status
	Results    []StageResult
	// Err holds a structural error found at discovery; such jobs never run.
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Stem is the source file name without extension, used to name outputs.
func (j *Job) Stem() string {
	base := filepath.Base(j.SourcePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// OutputPath returns <output-dir>/<stem><suffix>.
func (j *Job) OutputPath(suffix string) string {
	return filepath.Join(j.OutputDir, j.Stem()+suffix)
}

// Result returns the result recorded for stage.
func (j *Job) Result(stage string) (StageResult, bool) {
	for _, r := range j.Results {
		if r.Stage == stage {
			return r, true
		}
	}
	return StageResult{}, false
}

// Failures returns the Failed and PartiallyFailed stage results, plus the
// requested stages a cancellation cut off once the job had started.
func (j *Job) Failures() []StageResult {
	var out []StageResult
	for _, r := range j.Results {
		interrupted := r.Cancelled() && j.Status != StatusSkipped
		if r.Kind == KindFailed || r.Kind == KindPartiallyFailed || interrupted {
			out = append(out, r)
		}
	}
	return out
}

// Outputs lists the files produced by successful stages.
func (j *Job) Outputs() []string {
	var out []string
	for _, r := range j.Results {
		if r.Output != "" && (r.Kind == KindSuccess || r.Kind == KindPartiallyFailed) {
			out = append(out, r.Output)
		}
	}
	return out
}

// ComputeStatus derives the job status: a structural error or any Failed
// stage fails the job; otherwise any PartiallyFailed stage makes it
// PartiallyFailed; otherwise any Success makes it Succeeded; otherwise Skipped.
//
// A requested stage cut off by cancellation never counts as done. A job
// cancelled before its first stage is Skipped; one interrupted after some
// stage produced output is PartiallyFailed; otherwise it is Failed.
func ComputeStatus(results []StageResult, structural error) Status {
	if structural != nil {
		return StatusFailed
	}
	if len(results) > 0 && results[0].Cancelled() {
		return StatusSkipped
	}
	var partial, success, cancelled bool
	for _, r := range results {
		switch {
		case r.Kind == KindFailed:
			return StatusFailed
		case r.Kind == KindPartiallyFailed:
			partial = true
		case r.Kind == KindSuccess:
			success = true
		case r.Cancelled():
			cancelled = true
		}
	}
	switch {
	case cancelled && (partial || success):
		return StatusPartiallyFailed
	case cancelled:
		return StatusFailed
	case partial:
		return StatusPartiallyFailed
	case success:
		return StatusSucceeded
	default:
		return StatusSkipped
	}
}
