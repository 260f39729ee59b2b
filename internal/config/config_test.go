package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/require"

	"scribe/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	require.NoError(t, err)
	require.NotEmpty(t, resolved)
	require.False(t, exists)

	require.Equal(t, filepath.Join(tempHome, ".local", "share", "scribe", "history.db"), cfg.Ledger.Path)
	require.Equal(t, 1, cfg.Batch.Jobs)
	require.Equal(t, []string{"mp4", "mkv", "avi"}, cfg.Media.SupportedFormats)
	require.Equal(t, 10*time.Minute, cfg.ChunkDuration())
	require.Equal(t, 2*time.Hour, cfg.ToolTimeout())
	require.Equal(t, 5*time.Minute, cfg.RequestTimeout())
	base, maxDelay := cfg.RetryBackoff()
	require.Equal(t, 500*time.Millisecond, base)
	require.Equal(t, 30*time.Second, maxDelay)
	require.Equal(t, ".env", cfg.Credentials.FileName)
	require.Equal(t, "console", cfg.Logging.Format)
}

func TestLoadCustomConfigNormalizes(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[media]
supported_formats = [".MP4", "mkv", "mkv"]
video_extensions = ["MOV", "mp4"]

[transcription]
chunk_seconds = 120
max_concurrent_requests = 4

[logging]
format = "JSON"
level = "DEBUG"
file = "~/logs/scribe.log"

[metrics]
textfile = "~/metrics/scribe.prom"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, resolved, exists, err := config.Load(path)
	require.NoError(t, err)
	require.True(t, exists)
	require.Equal(t, path, resolved)
	require.Equal(t, []string{"mp4", "mkv"}, cfg.Media.SupportedFormats)
	require.True(t, cfg.IsVideoFile("clip.mov"))
	require.False(t, cfg.IsVideoFile("notes.txt"))
	require.True(t, cfg.IsSupportedFormat(".MKV"))
	require.False(t, cfg.IsSupportedFormat("avi"))
	require.Equal(t, 2*time.Minute, cfg.ChunkDuration())
	require.Equal(t, 4, cfg.Transcription.MaxConcurrentRequests)
	require.Equal(t, "json", cfg.Logging.Format)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, filepath.Join(tempHome, "logs", "scribe.log"), cfg.Logging.File)
	require.Equal(t, filepath.Join(tempHome, "metrics", "scribe.prom"), cfg.Metrics.Textfile)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	tests := map[string]string{
		"unknown field":      "[media]\nbogus = 1\n",
		"target unsupported": "[media]\ntarget_format = \"webm\"\n",
		"bad shell args":     "[media]\nextra_ffmpeg_args = \"-metadata 'unterminated\"\n",
		"negative jobs":      "[batch]\njobs = -1\n",
		"huge chunk":         "[transcription]\nchunk_seconds = 5000\n",
		"phrase repeats":     "[transcription]\nmax_phrase_repeats = 1\n",
		"bad level":          "[logging]\nlevel = \"loud\"\n",
		"ntfy not a url":     "[notifications]\nntfy_topic = \"my-topic\"\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
			_, _, _, err := config.Load(path)
			require.Error(t, err)
		})
	}
}

func TestSampleConfigMatchesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	require.NoError(t, config.CreateSample(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded config.Config
	require.NoError(t, toml.Unmarshal(data, &decoded))
	require.Equal(t, config.Default(), decoded)

	cfg, _, exists, err := config.Load(path)
	require.NoError(t, err)
	require.True(t, exists)
	require.Equal(t, "htdemucs", cfg.Separation.Model)
}

func TestExpandPathHandlesTilde(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	got, err := config.ExpandPath("~/videos")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, "videos"), got)

	empty, err := config.ExpandPath("")
	require.NoError(t, err)
	require.Empty(t, empty)
}
