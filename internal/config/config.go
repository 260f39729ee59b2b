package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Batch contains configuration for the batch orchestrator.
type Batch struct {
	// Jobs is the number of videos processed concurrently. 0 uses the logical CPU count.
	Jobs                 int  `toml:"jobs"`
	CleanupIntermediates bool `toml:"cleanup_intermediates"`
	RequireSubtitles     bool `toml:"require_subtitles"`
}

// Media contains configuration for probing, normalization and extraction.
type Media struct {
	FFmpegBinary       string   `toml:"ffmpeg_binary"`
	FFprobeBinary      string   `toml:"ffprobe_binary"`
	VideoExtensions    []string `toml:"video_extensions"`
	SupportedFormats   []string `toml:"supported_formats"`
	TargetFormat       string   `toml:"target_format"`
	VideoCodec         string   `toml:"video_codec"`
	AudioCodec         string   `toml:"audio_codec"`
	ExtraFFmpegArgs    string   `toml:"extra_ffmpeg_args"`
	ToolTimeoutSeconds int      `toml:"tool_timeout_seconds"`
}

// Audio contains configuration for the waveform produced by audio extraction.
type Audio struct {
	SampleRate  int  `toml:"sample_rate"`
	SilentVideo bool `toml:"silent_video"`
}

// Separation contains configuration for vocal isolation.
type Separation struct {
	DemucsBinary    string `toml:"demucs_binary"`
	Model           string `toml:"model"`
	GPUProbeCommand string `toml:"gpu_probe_command"`
	ExtraArgs       string `toml:"extra_args"`
}

// Transcription contains configuration for the transcription engine and STT client.
type Transcription struct {
	ChunkSeconds          int      `toml:"chunk_seconds"`
	MaxConcurrentRequests int      `toml:"max_concurrent_requests"`
	MaxAttempts           int      `toml:"max_attempts"`
	RequestTimeoutSeconds int      `toml:"request_timeout_seconds"`
	RetryBaseDelayMillis  int      `toml:"retry_base_delay_ms"`
	RetryMaxDelaySeconds  int      `toml:"retry_max_delay_seconds"`
	APIVersion            string   `toml:"api_version"`
	Prompt                string   `toml:"prompt"`
	MaxPhraseRepeats      int      `toml:"max_phrase_repeats"`
	BlockedPhrases        []string `toml:"blocked_phrases"`
	SupportedLanguages    []string `toml:"supported_languages"`
}

// Credentials contains configuration for the credential file lookup.
type Credentials struct {
	FileName string `toml:"file_name"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	File   string `toml:"file"`
}

// Ledger contains configuration for the run history database.
type Ledger struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Metrics contains configuration for the Prometheus textfile export.
type Metrics struct {
	Textfile string `toml:"textfile"`
}

// Notifications contains configuration for ntfy run notifications.
type Notifications struct {
	// NtfyTopic is the full topic URL, e.g. https://ntfy.sh/my-scribe. Empty disables.
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	// NotifySuccess also announces runs without failures.
	NotifySuccess bool `toml:"notify_success"`
}

// Config encapsulates all configuration values for scribe.
//
// Configuration sections by subsystem:
//   - Batch: job concurrency and post-run cleanup
//   - Media: ffmpeg/ffprobe binaries, container normalization, tool timeouts
//   - Audio: extracted waveform settings
//   - Separation: demucs vocal isolation
//   - Transcription: chunking, concurrency, retries and transcript cleaning
//   - Credentials: credential file name inside --secrets-dir
//   - Logging: log format, level and optional file
//   - Ledger: sqlite run history
//   - Metrics: node_exporter textfile output
//   - Notifications: ntfy run summaries
type Config struct {
	Batch         Batch         `toml:"batch"`
	Media         Media         `toml:"media"`
	Audio         Audio         `toml:"audio"`
	Separation    Separation    `toml:"separation"`
	Transcription Transcription `toml:"transcription"`
	Credentials   Credentials   `toml:"credentials"`
	Logging       Logging       `toml:"logging"`
	Ledger        Ledger        `toml:"ledger"`
	Metrics       Metrics       `toml:"metrics"`
	Notifications Notifications `toml:"notifications"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("scribe.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// ToolTimeout bounds every ffmpeg, ffprobe and demucs invocation.
func (c *Config) ToolTimeout() time.Duration {
	return time.Duration(c.Media.ToolTimeoutSeconds) * time.Second
}

// ChunkDuration is the fixed transcription window length.
func (c *Config) ChunkDuration() time.Duration {
	return time.Duration(c.Transcription.ChunkSeconds) * time.Second
}

// RequestTimeout bounds a single speech-to-text call.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Transcription.RequestTimeoutSeconds) * time.Second
}

// RetryBackoff returns the base and maximum delay between STT attempts.
func (c *Config) RetryBackoff() (time.Duration, time.Duration) {
	return time.Duration(c.Transcription.RetryBaseDelayMillis) * time.Millisecond,
		time.Duration(c.Transcription.RetryMaxDelaySeconds) * time.Second
}

// IsSupportedFormat reports whether ext (with or without the dot) can be
// processed without normalization.
func (c *Config) IsSupportedFormat(ext string) bool {
	ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
	for _, candidate := range c.Media.SupportedFormats {
		if candidate == ext {
			return true
		}
	}
	return false
}

// IsVideoFile reports whether name carries one of the configured video extensions.
func (c *Config) IsVideoFile(name string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if ext == "" {
		return false
	}
	for _, candidate := range c.Media.VideoExtensions {
		if candidate == ext {
			return true
		}
	}
	return false
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
