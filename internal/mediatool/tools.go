package mediatool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/shlex"

	"scribe/internal/config"
	"scribe/internal/fileutil"
	"scribe/internal/logging"
	"scribe/internal/services"
)

// CommandRunner executes name with args and returns the combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Settings configures the ffmpeg/demucs gateway.
type Settings struct {
	FFmpegBinary    string
	DemucsBinary    string
	DemucsModel     string
	GPUProbe        []string
	ExtraFFmpegArgs []string
	ExtraDemucsArgs []string
	VideoCodec      string
	AudioCodec      string
	SampleRate      int
	Timeout         time.Duration
}

// SettingsFromConfig resolves gateway settings, splitting the shell-quoted
// argument strings.
func SettingsFromConfig(cfg *config.Config) (Settings, error) {
	ffmpegArgs, err := shlex.Split(cfg.Media.ExtraFFmpegArgs)
	if err != nil {
		return Settings{}, services.Wrap(services.ErrConfiguration, "mediatool", "media.extra_ffmpeg_args", "", err)
	}
	demucsArgs, err := shlex.Split(cfg.Separation.ExtraArgs)
	if err != nil {
		return Settings{}, services.Wrap(services.ErrConfiguration, "mediatool", "separation.extra_args", "", err)
	}
	probe, err := shlex.Split(cfg.Separation.GPUProbeCommand)
	if err != nil {
		return Settings{}, services.Wrap(services.ErrConfiguration, "mediatool", "separation.gpu_probe_command", "", err)
	}
	return Settings{
		FFmpegBinary:    cfg.Media.FFmpegBinary,
		DemucsBinary:    cfg.Separation.DemucsBinary,
		DemucsModel:     cfg.Separation.Model,
		GPUProbe:        probe,
		ExtraFFmpegArgs: ffmpegArgs,
		ExtraDemucsArgs: demucsArgs,
		VideoCodec:      cfg.Media.VideoCodec,
		AudioCodec:      cfg.Media.AudioCodec,
		SampleRate:      cfg.Audio.SampleRate,
		Timeout:         cfg.ToolTimeout(),
	}, nil
}

// Tools implements Gateway by shelling out to ffmpeg and demucs.
type Tools struct {
	settings Settings
	run      CommandRunner
	logger   *slog.Logger

	gpuOnce sync.Once
	gpuErr  error
}

// Option customizes Tools.
type Option func(*Tools)

// WithCommandRunner sets a custom command runner (for testing).
func WithCommandRunner(run CommandRunner) Option {
	return func(t *Tools) {
		if run != nil {
			t.run = run
		}
	}
}

// New constructs the ffmpeg/demucs gateway.
func New(settings Settings, logger *slog.Logger, opts ...Option) *Tools {
	if settings.FFmpegBinary == "" {
		settings.FFmpegBinary = "ffmpeg"
	}
	if settings.DemucsBinary == "" {
		settings.DemucsBinary = "demucs"
	}
	if settings.DemucsModel == "" {
		settings.DemucsModel = "htdemucs"
	}
	if settings.SampleRate <= 0 {
		settings.SampleRate = 16000
	}
	t := &Tools{
		settings: settings,
		run:      execRunner,
		logger:   logging.NewComponentLogger(logger, "mediatool"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	return cmd.CombinedOutput()
}

// Transcode converts src into dest's container with the configured codecs.
func (t *Tools) Transcode(ctx context.Context, src, dest string) error {
	return t.ffmpegToFile(ctx, services.ErrTranscode, "transcode", dest, func(out string) []string {
		return t.ffmpegArgs(nil, src,
			"-map", "0:v:0",
			"-map", "0:a?",
			"-c:v", t.settings.VideoCodec,
			"-c:a", t.settings.AudioCodec,
			"-movflags", "+faststart",
			out,
		)
	})
}

// ExtractSubtitles copies the first subtitle stream; SubRip streams are
// copied as-is, text formats are converted to SRT.
func (t *Tools) ExtractSubtitles(ctx context.Context, src, dest, codec string) error {
	subtitleCodec := "srt"
	if strings.EqualFold(codec, "subrip") {
		subtitleCodec = "copy"
	}
	return t.ffmpegToFile(ctx, services.ErrExtraction, "extract-subtitles", dest, func(out string) []string {
		return t.ffmpegArgs(nil, src,
			"-map", "0:s:0",
			"-c:s", subtitleCodec,
			"-f", "srt",
			out,
		)
	})
}

// ExtractAudio writes the first audio stream as 16-bit PCM mono WAV.
func (t *Tools) ExtractAudio(ctx context.Context, src, dest string) error {
	return t.ffmpegToFile(ctx, services.ErrExtraction, "extract-audio", dest, func(out string) []string {
		return t.ffmpegArgs(nil, src, t.pcmArgs(out)...)
	})
}

// ExtractSegment cuts one chunk of audio for transcription.
func (t *Tools) ExtractSegment(ctx context.Context, src string, start, duration time.Duration, dest string) error {
	if start < 0 || duration <= 0 {
		return services.Wrap(services.ErrExtraction, "ffmpeg", "extract-segment", fmt.Sprintf("invalid window start=%s duration=%s", start, duration), nil)
	}
	return t.ffmpegToFile(ctx, services.ErrExtraction, "extract-segment", dest, func(out string) []string {
		return t.ffmpegArgs([]string{"-ss", seconds(start), "-t", seconds(duration)}, src, t.pcmArgs(out)...)
	})
}

// StripAudio writes the video stream of src without audio.
func (t *Tools) StripAudio(ctx context.Context, src, dest string) error {
	return t.ffmpegToFile(ctx, services.ErrExtraction, "strip-audio", dest, func(out string) []string {
		return t.ffmpegArgs(nil, src,
			"-map", "0:v",
			"-an",
			"-c:v", "copy",
			out,
		)
	})
}

// SeparateStems runs demucs in a private work directory under outDir and moves
// the two stems next to src's name: <stem>.vocals.wav and <stem>.accompaniment.wav.
func (t *Tools) SeparateStems(ctx context.Context, src, outDir string, device Device) (Stems, error) {
	if err := t.CheckDevice(ctx, device); err != nil {
		return Stems{}, err
	}
	workDir, err := os.MkdirTemp(outDir, ".demucs-")
	if err != nil {
		return Stems{}, services.Wrap(services.ErrExtraction, "demucs", "separate", "create work dir", err)
	}
	defer os.RemoveAll(workDir)

	demucsDevice := "cpu"
	if device == DeviceGPU {
		demucsDevice = "cuda"
	}
	args := []string{
		"-n", t.settings.DemucsModel,
		"--two-stems=vocals",
		"-o", workDir,
		"--device", demucsDevice,
	}
	args = append(args, t.settings.ExtraDemucsArgs...)
	args = append(args, src)
	if err := t.invoke(ctx, services.ErrExtraction, t.settings.DemucsBinary, "separate", args); err != nil {
		return Stems{}, err
	}

	stem := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	separated := filepath.Join(workDir, t.settings.DemucsModel, stem)
	stems := Stems{
		Vocals:        filepath.Join(outDir, stem+".vocals.wav"),
		Accompaniment: filepath.Join(outDir, stem+".accompaniment.wav"),
	}
	moves := []struct{ from, to string }{
		{filepath.Join(separated, "vocals.wav"), stems.Vocals},
		{filepath.Join(separated, "no_vocals.wav"), stems.Accompaniment},
	}
	for _, m := range moves {
		if _, err := os.Stat(m.from); err != nil {
			return Stems{}, services.Wrap(services.ErrExtraction, "demucs", "separate", fmt.Sprintf("missing output %s", filepath.Base(m.from)), err)
		}
	}
	for _, m := range moves {
		if err := fileutil.MoveFile(m.from, m.to); err != nil {
			return Stems{}, services.Wrap(services.ErrExtraction, "demucs", "separate", "move stem", err)
		}
	}
	return stems, nil
}

// CheckDevice probes GPU availability once per Tools instance. CPU is always available.
func (t *Tools) CheckDevice(ctx context.Context, device Device) error {
	if device != DeviceGPU {
		return nil
	}
	t.gpuOnce.Do(func() {
		if len(t.settings.GPUProbe) == 0 {
			t.gpuErr = services.Wrap(services.ErrDeviceUnavailable, "demucs", "gpu-probe", "no GPU probe command configured", nil)
			return
		}
		err := t.invoke(ctx, services.ErrDeviceUnavailable, t.settings.GPUProbe[0], "gpu-probe", t.settings.GPUProbe[1:])
		if err != nil {
			t.gpuErr = err
			return
		}
		t.logger.Debug("gpu available", logging.String("probe", strings.Join(t.settings.GPUProbe, " ")))
	})
	return t.gpuErr
}

func (t *Tools) ffmpegArgs(inputOpts []string, src string, outputArgs ...string) []string {
	args := make([]string, 0, 8+len(inputOpts)+len(outputArgs)+len(t.settings.ExtraFFmpegArgs))
	args = append(args, "-y", "-hide_banner", "-loglevel", "error")
	args = append(args, inputOpts...)
	args = append(args, "-i", src)
	args = append(args, t.settings.ExtraFFmpegArgs...)
	return append(args, outputArgs...)
}

func (t *Tools) pcmArgs(out string) []string {
	return []string{
		"-map", "0:a:0",
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", strconv.Itoa(t.settings.SampleRate),
		"-c:a", "pcm_s16le",
		out,
	}
}

// ffmpegToFile runs ffmpeg against a temporary sibling of dest and renames it
// into place only when ffmpeg succeeds.
func (t *Tools) ffmpegToFile(ctx context.Context, marker error, op, dest string, build func(out string) []string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return services.Wrap(marker, "ffmpeg", op, "ensure output dir", err)
	}
	tmp, err := fileutil.TempPath(dest)
	if err != nil {
		return services.Wrap(marker, "ffmpeg", op, "reserve temp file", err)
	}
	if err := t.invoke(ctx, marker, t.settings.FFmpegBinary, op, build(tmp)); err != nil {
		fileutil.Discard(tmp)
		return err
	}
	if err := fileutil.Commit(tmp, dest); err != nil {
		fileutil.Discard(tmp)
		return services.Wrap(marker, "ffmpeg", op, "", err)
	}
	return nil
}

func (t *Tools) invoke(ctx context.Context, marker error, binary, op string, args []string) error {
	callCtx := ctx
	if t.settings.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, t.settings.Timeout)
		defer cancel()
	}

	started := time.Now()
	t.logger.Debug("running external tool",
		logging.String("tool", binary),
		logging.String("op", op),
		logging.String("args", strings.Join(args, " ")),
	)
	output, err := t.run(callCtx, binary, args...)
	if err == nil {
		t.logger.Debug("external tool finished",
			logging.String("tool", binary),
			logging.String("op", op),
			logging.Duration("elapsed", time.Since(started)),
		)
		return nil
	}

	toolErr := &ToolError{
		Tool:     filepath.Base(binary),
		Op:       op,
		Output:   string(output),
		TimedOut: errors.Is(callCtx.Err(), context.DeadlineExceeded),
		Err:      err,
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		toolErr.ExitCode = exitErr.ExitCode()
	}
	return services.Wrap(marker, toolErr.Tool, op, "", toolErr)
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}
