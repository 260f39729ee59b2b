package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"scribe/internal/logging"
	"scribe/internal/media/ffprobe"
	"scribe/internal/mediatool"
	"scribe/internal/services"
	"scribe/internal/transcription"
)

func TestNormalizeIsIdempotent(t *testing.T) {
	gateway := &fakeGateway{}
	runner := newTestRunner(defaultSettings(), gateway, nil)
	job := newTestJob(t, "lecture.wmv", Flags{})

	require.Equal(t, StatusSucceeded, runner.Run(context.Background(), job))
	first, _ := job.Result(StageNormalize)
	require.Equal(t, KindSuccess, first.Kind)
	require.Equal(t, filepath.Join(job.OutputDir, "lecture.mp4"), first.Output)
	require.Equal(t, 1, gateway.count("transcode"))

	again := &Job{Name: job.Name, SourcePath: job.SourcePath, WorkDir: job.WorkDir, OutputDir: job.OutputDir}
	require.Equal(t, StatusSkipped, runner.Run(context.Background(), again))
	second, _ := again.Result(StageNormalize)
	require.Equal(t, KindSkipped, second.Kind)
	require.Equal(t, "reusing lecture.mp4", second.Detail)
	require.Equal(t, 1, gateway.count("transcode"), "derived file is reused")
}

func TestNormalizePassesThroughSupportedContainer(t *testing.T) {
	gateway := &fakeGateway{}
	runner := newTestRunner(defaultSettings(), gateway, nil)
	job := newTestJob(t, "talk.MKV", Flags{DetachAudio: true})

	require.Equal(t, StatusSucceeded, runner.Run(context.Background(), job))
	require.Equal(t, KindSkipped, kinds(job)[StageNormalize])
	require.Zero(t, gateway.count("transcode"))
	require.FileExists(t, filepath.Join(job.OutputDir, "talk.wav"))
}

func TestUnreadableSourceFailsJob(t *testing.T) {
	runner := newTestRunner(defaultSettings(), &fakeGateway{}, nil)
	job := newTestJob(t, "broken.mp4", Flags{DetachAudio: true, Language: "en"})
	require.NoError(t, os.Remove(job.SourcePath))

	require.Equal(t, StatusFailed, runner.Run(context.Background(), job))
	res, _ := job.Result(StageNormalize)
	require.ErrorIs(t, res.Err, services.ErrUnreadableMedia)
	transcribe, _ := job.Result(StageTranscribe)
	require.Equal(t, KindSkipped, transcribe.Kind)
	require.Equal(t, "audio did not complete", transcribe.Detail)
}

func TestNoSubtitleStreamIsSkipped(t *testing.T) {
	runner := newTestRunner(defaultSettings(), &fakeGateway{}, nil)
	job := newTestJob(t, "plain.mp4", Flags{DetachSubtitles: true})

	require.Equal(t, StatusSkipped, runner.Run(context.Background(), job))
	res, _ := job.Result(StageSubtitles)
	require.Equal(t, KindSkipped, res.Kind)
	require.ErrorIs(t, res.Err, services.ErrNoSubtitleStream)
}

func TestRequiredSubtitlesMissingFailsJob(t *testing.T) {
	runner := newTestRunner(defaultSettings(), &fakeGateway{}, nil)
	job := newTestJob(t, "plain.mp4", Flags{DetachSubtitles: true, RequireSubtitles: true})

	require.Equal(t, StatusFailed, runner.Run(context.Background(), job))
	res, _ := job.Result(StageSubtitles)
	require.Equal(t, KindFailed, res.Kind)
	require.ErrorIs(t, res.Err, services.ErrNoSubtitleStream)
}

func TestSubtitleExtractionDropsAdvertisements(t *testing.T) {
	gateway := &fakeGateway{subtitle: "1\n00:00:01,000 --> 00:00:02,000\nHello\n\n2\n00:00:03,000 --> 00:00:04,000\nSubtitles by OpenSubtitles\n\n"}
	runner := newTestRunner(defaultSettings(), gateway, nil)
	job := newTestJob(t, "film-subs.mkv", Flags{DetachSubtitles: true})

	require.Equal(t, StatusSucceeded, runner.Run(context.Background(), job))
	res, _ := job.Result(StageSubtitles)
	require.Equal(t, filepath.Join(job.OutputDir, "film-subs.embedded.srt"), res.Output)
	require.Contains(t, res.Detail, "1 advertisement cues removed")

	data, err := os.ReadFile(res.Output)
	require.NoError(t, err)
	require.Equal(t, "1\n00:00:01,000 --> 00:00:02,000\nHello\n\n", string(data))
}

func TestFullChainFeedsVocalsToTranscription(t *testing.T) {
	gateway := &fakeGateway{}
	transcriber := &fakeTranscriber{}
	runner := newTestRunner(defaultSettings(), gateway, transcriber)
	job := newTestJob(t, "lesson.mp4", Flags{Language: "en", FilterTwoStems: true, Device: mediatool.DeviceCPU})

	require.Equal(t, StatusSucceeded, runner.Run(context.Background(), job))
	require.Len(t, job.Results, len(StageOrder))
	for i, stage := range StageOrder {
		require.Equal(t, stage, job.Results[i].Stage)
	}
	require.Equal(t, map[string]Kind{
		StageNormalize:   KindSkipped,
		StageSubtitles:   KindSkipped,
		StageAudio:       KindSuccess,
		StageSilentVideo: KindSkipped,
		StageSeparate:    KindSuccess,
		StageTranscribe:  KindSuccess,
	}, kinds(job))
	require.Len(t, transcriber.inputs, 1)
	require.Equal(t, filepath.Join(job.OutputDir, "lesson.vocals.wav"), transcriber.inputs[0].AudioPath)
	require.Equal(t, filepath.Join(job.OutputDir, "lesson.srt"), transcriber.inputs[0].OutputPath)
}

func TestSilentVideoRequiresDetachAudio(t *testing.T) {
	settings := defaultSettings()
	settings.SilentVideo = true
	gateway := &fakeGateway{}
	runner := newTestRunner(settings, gateway, nil)
	job := newTestJob(t, "clip.mp4", Flags{DetachAudio: true})

	require.Equal(t, StatusSucceeded, runner.Run(context.Background(), job))
	res, _ := job.Result(StageSilentVideo)
	require.Equal(t, filepath.Join(job.OutputDir, "clip.noaudio.mp4"), res.Output)
	require.Equal(t, 1, gateway.count("strip"))
}

func TestMissingAudioStreamFails(t *testing.T) {
	runner := newTestRunner(defaultSettings(), &fakeGateway{}, nil)
	job := newTestJob(t, "mute.mp4", Flags{DetachAudio: true})

	require.Equal(t, StatusFailed, runner.Run(context.Background(), job))
	res, _ := job.Result(StageAudio)
	require.ErrorIs(t, res.Err, services.ErrNoAudioStream)
}

func TestUnavailableDeviceFailsWithoutFallback(t *testing.T) {
	gateway := &fakeGateway{deviceErr: services.Wrap(services.ErrDeviceUnavailable, "separate", "probe gpu", "", nil)}
	transcriber := &fakeTranscriber{}
	runner := newTestRunner(defaultSettings(), gateway, transcriber)
	job := newTestJob(t, "lesson.mp4", Flags{Language: "en", FilterTwoStems: true, Device: mediatool.DeviceGPU})

	require.Equal(t, StatusFailed, runner.Run(context.Background(), job))
	res, _ := job.Result(StageSeparate)
	require.ErrorIs(t, res.Err, services.ErrDeviceUnavailable)
	require.Zero(t, gateway.count("separate"))
	require.Empty(t, transcriber.inputs, "full mix is not transcribed in place of vocals")
	require.Equal(t, KindSkipped, kinds(job)[StageTranscribe])
}

func TestPartialTranscriptionMarksJob(t *testing.T) {
	transcriber := &fakeTranscriber{status: transcription.StatusPartiallyFailed}
	runner := newTestRunner(defaultSettings(), &fakeGateway{}, transcriber)
	job := newTestJob(t, "lesson.mp4", Flags{Language: "en"})

	require.Equal(t, StatusPartiallyFailed, runner.Run(context.Background(), job))
	failures := job.Failures()
	require.Len(t, failures, 1)
	require.Equal(t, StageTranscribe, failures[0].Stage)
	require.ErrorIs(t, failures[0].Err, services.ErrSTTTransient)
	require.Contains(t, failures[0].Detail, "1 of 2 chunks failed")
}

func TestCancelledBeforeStartSkipsEverything(t *testing.T) {
	gateway := &fakeGateway{}
	runner := newTestRunner(defaultSettings(), gateway, nil)
	job := newTestJob(t, "lesson.mp4", Flags{Language: "en"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Equal(t, StatusSkipped, runner.Run(ctx, job))
	for _, res := range job.Results {
		if res.Stage == StageNormalize || res.Stage == StageAudio || res.Stage == StageTranscribe {
			require.True(t, res.Cancelled(), res.Stage)
			require.Equal(t, "cancelled", res.Detail)
		} else {
			require.Equal(t, "not requested", res.Detail)
		}
	}
	require.Empty(t, job.Failures())
	require.Empty(t, gateway.calls)
}

func TestCancellationLetsInFlightStageFinish(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	gateway := &fakeGateway{onAudio: cancel}
	transcriber := &fakeTranscriber{}
	runner := newTestRunner(defaultSettings(), gateway, transcriber)
	job := newTestJob(t, "lesson.mp4", Flags{Language: "en"})

	require.Equal(t, StatusPartiallyFailed, runner.Run(ctx, job))
	require.Equal(t, KindSuccess, kinds(job)[StageAudio])
	require.FileExists(t, filepath.Join(job.OutputDir, "lesson.wav"))
	res, _ := job.Result(StageTranscribe)
	require.Equal(t, KindSkipped, res.Kind)
	require.Equal(t, "cancelled", res.Detail)
	require.ErrorIs(t, res.Err, context.Canceled)
	require.Empty(t, transcriber.inputs)

	failures := job.Failures()
	require.Len(t, failures, 1)
	require.Equal(t, StageTranscribe, failures[0].Stage)
}

// cancellingProber cancels the run while the first stage is in flight.
type cancellingProber struct {
	fakeProber
	cancel context.CancelFunc
}

func (p cancellingProber) Probe(ctx context.Context, path string) (ffprobe.Info, error) {
	p.cancel()
	return p.fakeProber.Probe(ctx, path)
}

func TestCancellationWithoutOutputFailsJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	gateway := &fakeGateway{}
	runner := NewRunner(defaultSettings(), cancellingProber{cancel: cancel}, gateway, &fakeTranscriber{}, logging.NewNop())
	job := newTestJob(t, "lesson.mp4", Flags{Language: "en"})

	require.Equal(t, StatusFailed, runner.Run(ctx, job))
	require.Equal(t, KindSkipped, kinds(job)[StageNormalize])
	res, _ := job.Result(StageAudio)
	require.True(t, res.Cancelled())
	require.Empty(t, gateway.calls)
}

func TestCleanupRemovesIntermediates(t *testing.T) {
	settings := defaultSettings()
	settings.CleanupIntermediates = true
	runner := newTestRunner(settings, &fakeGateway{}, nil)
	job := newTestJob(t, "lecture.wmv", Flags{Language: "en", FilterTwoStems: true})

	require.Equal(t, StatusSucceeded, runner.Run(context.Background(), job))
	for _, name := range []string{"lecture.mp4", "lecture.wav", "lecture.vocals.wav", "lecture.accompaniment.wav"} {
		_, err := os.Stat(filepath.Join(job.OutputDir, name))
		require.True(t, errors.Is(err, os.ErrNotExist), name)
	}
	require.FileExists(t, filepath.Join(job.OutputDir, "lecture.srt"))
}

func TestCleanupKeepsRequestedAudio(t *testing.T) {
	settings := defaultSettings()
	settings.CleanupIntermediates = true
	runner := newTestRunner(settings, &fakeGateway{}, nil)
	job := newTestJob(t, "lecture.mp4", Flags{Language: "en", DetachAudio: true, FilterTwoStems: true})

	require.Equal(t, StatusSucceeded, runner.Run(context.Background(), job))
	require.FileExists(t, filepath.Join(job.OutputDir, "lecture.wav"))
	_, err := os.Stat(filepath.Join(job.OutputDir, "lecture.vocals.wav"))
	require.True(t, errors.Is(err, os.ErrNotExist))
	require.FileExists(t, filepath.Join(job.OutputDir, "lecture.srt"))
}

func TestStructuralJobNeverRuns(t *testing.T) {
	gateway := &fakeGateway{}
	runner := newTestRunner(defaultSettings(), gateway, nil)
	job := &Job{Name: "empty", Err: services.Wrap(services.ErrStructural, "discover", "scan", "no video file", nil)}

	require.Equal(t, StatusFailed, runner.Run(context.Background(), job))
	require.Empty(t, job.Results)
	require.Empty(t, gateway.calls)
}

func TestComputeStatus(t *testing.T) {
	tests := []struct {
		name    string
		results []StageResult
		err     error
		want    Status
	}{
		{name: "structural", err: errors.New("layout"), want: StatusFailed},
		{name: "all skipped", results: []StageResult{{Kind: KindSkipped}, {Kind: KindSkipped}}, want: StatusSkipped},
		{name: "success", results: []StageResult{{Kind: KindSkipped}, {Kind: KindSuccess}}, want: StatusSucceeded},
		{name: "partial", results: []StageResult{{Kind: KindSuccess}, {Kind: KindPartiallyFailed}}, want: StatusPartiallyFailed},
		{name: "failed wins", results: []StageResult{{Kind: KindPartiallyFailed}, {Kind: KindFailed}}, want: StatusFailed},
		{name: "empty", want: StatusSkipped},
		{name: "cancelled before start", results: []StageResult{{Kind: KindSkipped, Err: context.Canceled}, {Kind: KindSkipped, Err: context.Canceled}}, want: StatusSkipped},
		{name: "cancelled after output", results: []StageResult{{Kind: KindSkipped}, {Kind: KindSuccess}, {Kind: KindSkipped, Err: context.Canceled}}, want: StatusPartiallyFailed},
		{name: "cancelled without output", results: []StageResult{{Kind: KindSkipped}, {Kind: KindSkipped, Err: context.Canceled}}, want: StatusFailed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ComputeStatus(tc.results, tc.err))
		})
	}
}
