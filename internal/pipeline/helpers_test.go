package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"scribe/internal/logging"
	"scribe/internal/media/ffprobe"
	"scribe/internal/mediatool"
	"scribe/internal/services"
	"scribe/internal/transcription"
)

// fakeProber reports any existing file as readable media. Files named with
// "subs" carry a subtitle stream; files named with "mute" have no audio.
type fakeProber struct{}

func (fakeProber) Probe(_ context.Context, path string) (ffprobe.Info, error) {
	if _, err := os.Stat(path); err != nil {
		return ffprobe.Info{}, services.Wrap(services.ErrUnreadableMedia, "probe", "stat", path, err)
	}
	base := filepath.Base(path)
	info := ffprobe.Info{
		Path:         path,
		Extension:    strings.TrimPrefix(filepath.Ext(path), "."),
		Container:    strings.TrimPrefix(filepath.Ext(path), "."),
		Duration:     10 * time.Second,
		VideoStreams: 1,
	}
	if !strings.Contains(base, "mute") {
		info.AudioStreams = 1
		info.HasAudio = true
	}
	if strings.Contains(base, "subs") {
		info.SubtitleCount = 1
		info.SubtitleCodec = "subrip"
		info.HasSubtitle = true
	}
	return info, nil
}

type fakeGateway struct {
	mu        sync.Mutex
	calls     []string
	deviceErr error
	onAudio   func()
	subtitle  string
}

func (g *fakeGateway) record(call string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, call)
}

func (g *fakeGateway) count(call string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (g *fakeGateway) Transcode(_ context.Context, _, dest string) error {
	g.record("transcode")
	return os.WriteFile(dest, []byte("video"), 0o644)
}

func (g *fakeGateway) ExtractSubtitles(_ context.Context, _, dest, _ string) error {
	g.record("subtitles")
	content := g.subtitle
	if content == "" {
		content = "1\n00:00:01,000 --> 00:00:02,000\nHi\n\n"
	}
	return os.WriteFile(dest, []byte(content), 0o644)
}

func (g *fakeGateway) ExtractAudio(_ context.Context, _, dest string) error {
	g.record("audio")
	if g.onAudio != nil {
		g.onAudio()
	}
	return os.WriteFile(dest, []byte("RIFF"), 0o644)
}

func (g *fakeGateway) ExtractSegment(context.Context, string, time.Duration, time.Duration, string) error {
	g.record("segment")
	return nil
}

func (g *fakeGateway) StripAudio(_ context.Context, _, dest string) error {
	g.record("strip")
	return os.WriteFile(dest, []byte("video"), 0o644)
}

func (g *fakeGateway) SeparateStems(_ context.Context, src, outDir string, _ mediatool.Device) (mediatool.Stems, error) {
	g.record("separate")
	stem := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	stems := mediatool.Stems{
		Vocals:        filepath.Join(outDir, stem+".vocals.wav"),
		Accompaniment: filepath.Join(outDir, stem+".accompaniment.wav"),
	}
	if err := os.WriteFile(stems.Vocals, []byte("RIFF"), 0o644); err != nil {
		return mediatool.Stems{}, err
	}
	return stems, os.WriteFile(stems.Accompaniment, []byte("RIFF"), 0o644)
}

func (g *fakeGateway) CheckDevice(context.Context, mediatool.Device) error {
	return g.deviceErr
}

type fakeTranscriber struct {
	mu     sync.Mutex
	inputs []transcription.Input
	status transcription.Status
}

func (f *fakeTranscriber) Transcribe(_ context.Context, in transcription.Input) (transcription.Result, error) {
	f.mu.Lock()
	f.inputs = append(f.inputs, in)
	f.mu.Unlock()
	result := transcription.Result{Status: transcription.StatusSucceeded, OutputPath: in.OutputPath, Chunks: 2, Lines: 1}
	if f.status == transcription.StatusPartiallyFailed {
		result.Status = f.status
		result.Failed = []transcription.ChunkFailure{{Index: 1, Start: 10 * time.Second, Attempts: 4, Err: services.ErrSTTTransient}}
	}
	if err := os.WriteFile(in.OutputPath, []byte("1\n00:00:00,000 --> 00:00:01,000\nx\n\n"), 0o644); err != nil {
		return transcription.Result{Status: transcription.StatusFailed}, err
	}
	return result, nil
}

func defaultSettings() Settings {
	return Settings{SupportedFormats: []string{"mp4", "mkv", "avi"}, TargetFormat: "mp4"}
}

func newTestRunner(settings Settings, gateway *fakeGateway, transcriber *fakeTranscriber) *Runner {
	if transcriber == nil {
		transcriber = &fakeTranscriber{}
	}
	return NewRunner(settings, fakeProber{}, gateway, transcriber, logging.NewNop())
}

// newTestJob creates <root>/input/<name>/<file> and returns a job writing to
// <root>/<name>.
func newTestJob(t *testing.T, file string, flags Flags) *Job {
	t.Helper()
	root := t.TempDir()
	name := strings.TrimSuffix(file, filepath.Ext(file))
	workDir := filepath.Join(root, "input", name)
	require.NoError(t, os.MkdirAll(workDir, 0o755))
	source := filepath.Join(workDir, file)
	require.NoError(t, os.WriteFile(source, []byte("media"), 0o644))
	return &Job{
		Name:       name,
		SourcePath: source,
		WorkDir:    workDir,
		OutputDir:  filepath.Join(root, name),
		Flags:      flags,
		Status:     StatusPending,
	}
}

func kinds(job *Job) map[string]Kind {
	out := make(map[string]Kind, len(job.Results))
	for _, r := range job.Results {
		out[r.Stage] = r.Kind
	}
	return out
}
