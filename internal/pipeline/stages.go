package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"scribe/internal/fileutil"
	"scribe/internal/logging"
	"scribe/internal/services"
	"scribe/internal/subtitles"
	"scribe/internal/transcription"
)

func (r *Runner) supported(ext string) bool {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	for _, candidate := range r.settings.SupportedFormats {
		if strings.EqualFold(candidate, ext) {
			return true
		}
	}
	return false
}

// normalize probes the source and, when its container is not processable,
// transcodes it into the target container. An existing readable derived file
// is reused.
func (r *Runner) normalize(ctx context.Context, logger *slog.Logger, job *Job, st *state) StageResult {
	if err := os.MkdirAll(job.OutputDir, 0o755); err != nil {
		return failed(services.Wrap(services.ErrStructural, StageNormalize, "create output dir", job.OutputDir, err), "")
	}
	info, err := r.prober.Probe(ctx, job.SourcePath)
	if err != nil {
		return failed(err, "source could not be probed")
	}
	st.source = info
	st.media = job.SourcePath
	st.mediaInfo = info
	job.Container = info.Container

	if r.supported(info.Extension) {
		return StageResult{Kind: KindSkipped, Detail: fmt.Sprintf("container %s is processable", info.Extension)}
	}

	target := job.OutputPath("." + r.settings.TargetFormat)
	if _, statErr := os.Stat(target); statErr == nil {
		if derived, probeErr := r.prober.Probe(ctx, target); probeErr == nil {
			st.media = target
			st.mediaInfo = derived
			st.intermediates = append(st.intermediates, target)
			return StageResult{Kind: KindSkipped, Output: target, Detail: "reusing " + filepath.Base(target)}
		}
		logger.Info("discarding unreadable derived file", logging.String("path", target))
	}

	if err := r.gateway.Transcode(ctx, job.SourcePath, target); err != nil {
		return failed(services.Wrap(services.ErrTranscode, StageNormalize, "transcode", filepath.Base(job.SourcePath), err), "")
	}
	derived, err := r.prober.Probe(ctx, target)
	if err != nil {
		return failed(services.Wrap(services.ErrTranscode, StageNormalize, "probe output", filepath.Base(target), err), "")
	}
	st.media = target
	st.mediaInfo = derived
	st.intermediates = append(st.intermediates, target)
	return StageResult{
		Kind:   KindSuccess,
		Output: target,
		Detail: fmt.Sprintf("%s -> %s", info.Extension, r.settings.TargetFormat),
	}
}

// extractSubtitles copies the first embedded subtitle stream of the original
// source; a transcode may not carry subtitle streams across containers.
func (r *Runner) extractSubtitles(ctx context.Context, logger *slog.Logger, job *Job, st *state) StageResult {
	if !st.source.HasSubtitle {
		err := services.Wrap(services.ErrNoSubtitleStream, StageSubtitles, "probe", filepath.Base(job.SourcePath), nil)
		if job.Flags.RequireSubtitles {
			return failed(err, "no subtitle stream")
		}
		return StageResult{Kind: KindSkipped, Err: err, Detail: "no subtitle stream"}
	}

	dest := job.OutputPath(".embedded.srt")
	if err := r.gateway.ExtractSubtitles(ctx, job.SourcePath, dest, st.source.SubtitleCodec); err != nil {
		return failed(services.Wrap(services.ErrExtraction, StageSubtitles, "extract", st.source.SubtitleCodec, err), "")
	}

	detail := fmt.Sprintf("stream codec %s", st.source.SubtitleCodec)
	if removed, err := stripAdvertisements(dest); err != nil {
		logging.WarnWithContext(logger, "embedded subtitles not cleaned", "subtitle_parse_failed",
			logging.String("path", dest),
			logging.Error(err),
			logging.String(logging.FieldImpact, "subtitle file kept as extracted"),
		)
	} else if removed > 0 {
		detail = fmt.Sprintf("%s, %d advertisement cues removed", detail, removed)
	}
	return StageResult{Kind: KindSuccess, Output: dest, Detail: detail}
}

func stripAdvertisements(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	doc, err := subtitles.Parse(data)
	if err != nil {
		return 0, err
	}
	cleaned, stats := subtitles.Clean(doc, subtitles.CleanOptions{DropAdvertisements: true})
	if stats.Removed() == 0 {
		return 0, nil
	}
	if err := fileutil.WriteFileAtomic(path, subtitles.Format(cleaned), 0o644); err != nil {
		return 0, err
	}
	return stats.Removed(), nil
}

func (r *Runner) extractAudio(ctx context.Context, _ *slog.Logger, job *Job, st *state) StageResult {
	if !st.mediaInfo.HasAudio {
		return failed(services.Wrap(services.ErrNoAudioStream, StageAudio, "probe", filepath.Base(st.media), nil), "no audio stream")
	}
	dest := job.OutputPath(".wav")
	if err := r.gateway.ExtractAudio(ctx, st.media, dest); err != nil {
		return failed(services.Wrap(services.ErrExtraction, StageAudio, "extract", filepath.Base(st.media), err), "")
	}
	st.audio = dest
	st.speech = dest
	if !job.Flags.DetachAudio {
		st.intermediates = append(st.intermediates, dest)
	}
	return StageResult{Kind: KindSuccess, Output: dest, Detail: "pcm_s16le mono"}
}

func (r *Runner) stripAudio(ctx context.Context, _ *slog.Logger, job *Job, st *state) StageResult {
	dest := job.OutputPath(".noaudio" + filepath.Ext(st.media))
	if err := r.gateway.StripAudio(ctx, st.media, dest); err != nil {
		return failed(services.Wrap(services.ErrExtraction, StageSilentVideo, "strip audio", filepath.Base(st.media), err), "")
	}
	return StageResult{Kind: KindSuccess, Output: dest}
}

func (r *Runner) separate(ctx context.Context, _ *slog.Logger, job *Job, st *state) StageResult {
	if err := r.gateway.CheckDevice(ctx, job.Flags.Device); err != nil {
		return failed(err, fmt.Sprintf("device %s unavailable", job.Flags.Device))
	}
	stems, err := r.gateway.SeparateStems(ctx, st.audio, job.OutputDir, job.Flags.Device)
	if err != nil {
		return failed(services.Wrap(services.ErrExtraction, StageSeparate, "separate stems", filepath.Base(st.audio), err), "")
	}
	st.speech = stems.Vocals
	st.intermediates = append(st.intermediates, stems.Vocals, stems.Accompaniment)
	return StageResult{Kind: KindSuccess, Output: stems.Vocals, Detail: fmt.Sprintf("device %s", job.Flags.Device)}
}

func (r *Runner) transcribe(ctx context.Context, _ *slog.Logger, job *Job, st *state) StageResult {
	res, err := r.transcriber.Transcribe(ctx, transcription.Input{
		AudioPath:  st.speech,
		OutputPath: job.OutputPath(".srt"),
		Language:   job.Flags.Language,
	})
	if err != nil {
		return failed(err, res.Detail())
	}
	if res.Status == transcription.StatusPartiallyFailed {
		first := res.Failed[0].Err
		marker := services.Marker(first)
		if marker == nil {
			marker = services.ErrSTTTransient
		}
		return StageResult{
			Kind:   KindPartiallyFailed,
			Err:    services.Wrap(marker, StageTranscribe, "chunks", res.Detail(), first),
			Output: res.OutputPath,
			Detail: res.Detail(),
		}
	}
	return StageResult{Kind: KindSuccess, Output: res.OutputPath, Detail: res.Detail()}
}
