package ffprobe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"scribe/internal/services"
)

// Info summarizes what the pipeline needs to know about a media file.
type Info struct {
	Path          string
	Container     string
	Extension     string
	Duration      time.Duration
	VideoStreams  int
	AudioStreams  int
	SubtitleCount int
	SubtitleCodec string
	HasSubtitle   bool
	HasAudio      bool
}

// Prober inspects media files. Safe for concurrent use.
type Prober struct {
	binary  string
	run     Runner
	timeout time.Duration
}

// ProberOption customizes a Prober.
type ProberOption func(*Prober)

// WithRunner swaps the command runner, primarily for tests.
func WithRunner(run Runner) ProberOption {
	return func(p *Prober) {
		if run != nil {
			p.run = run
		}
	}
}

// WithTimeout bounds each ffprobe invocation. A timeout is reported as
// services.ErrTimeout alongside ErrUnreadableMedia.
func WithTimeout(timeout time.Duration) ProberOption {
	return func(p *Prober) {
		p.timeout = timeout
	}
}

// NewProber constructs a Prober for the given ffprobe binary.
func NewProber(binary string, opts ...ProberOption) *Prober {
	p := &Prober{binary: strings.TrimSpace(binary), run: execRunner}
	if p.binary == "" {
		p.binary = "ffprobe"
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe reports container, duration and stream presence for path. It fails
// with services.ErrUnreadableMedia when the file is missing, cannot be parsed
// or has no streams.
func (p *Prober) Probe(ctx context.Context, path string) (Info, error) {
	if _, err := os.Stat(path); err != nil {
		return Info{}, services.Wrap(services.ErrUnreadableMedia, "probe", "stat", path, err)
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	result, err := inspect(ctx, p.run, p.binary, path)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s: %w", services.ErrTimeout, p.timeout, err)
		}
		return Info{}, services.Wrap(services.ErrUnreadableMedia, "probe", "ffprobe", path, err)
	}
	if len(result.Streams) == 0 {
		return Info{}, services.Wrap(services.ErrUnreadableMedia, "probe", "streams", path+" has no streams", nil)
	}
	info := Info{
		Path:          path,
		Container:     result.Format.FormatName,
		Extension:     strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."),
		Duration:      secondsToDuration(result.DurationSeconds()),
		VideoStreams:  result.VideoStreamCount(),
		AudioStreams:  result.AudioStreamCount(),
		SubtitleCount: result.SubtitleStreamCount(),
		SubtitleCodec: result.FirstSubtitleCodec(),
	}
	info.HasAudio = info.AudioStreams > 0
	info.HasSubtitle = info.SubtitleCount > 0
	if info.Duration == 0 {
		for _, stream := range result.Streams {
			if d := secondsToDuration(parseFloat(stream.Duration)); d > info.Duration {
				info.Duration = d
			}
		}
	}
	return info, nil
}
