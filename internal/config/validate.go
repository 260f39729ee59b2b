package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/google/shlex"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateBatch(); err != nil {
		return err
	}
	if err := c.validateMedia(); err != nil {
		return err
	}
	if err := c.validateSeparation(); err != nil {
		return err
	}
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return c.validateNotifications()
}

func (c *Config) validateBatch() error {
	if c.Batch.Jobs < 0 {
		return errors.New("batch.jobs must be >= 0 (0 uses the CPU count)")
	}
	return nil
}

func (c *Config) validateMedia() error {
	if !c.IsSupportedFormat(c.Media.TargetFormat) {
		return fmt.Errorf("media.target_format %q must be listed in media.supported_formats", c.Media.TargetFormat)
	}
	if _, err := shlex.Split(c.Media.ExtraFFmpegArgs); err != nil {
		return fmt.Errorf("media.extra_ffmpeg_args: %w", err)
	}
	if c.Audio.SampleRate < 8000 {
		return errors.New("audio.sample_rate must be at least 8000")
	}
	return nil
}

func (c *Config) validateSeparation() error {
	if _, err := shlex.Split(c.Separation.ExtraArgs); err != nil {
		return fmt.Errorf("separation.extra_args: %w", err)
	}
	if _, err := shlex.Split(c.Separation.GPUProbeCommand); err != nil {
		return fmt.Errorf("separation.gpu_probe_command: %w", err)
	}
	if strings.ContainsRune(c.Separation.Model, filepath.Separator) {
		return fmt.Errorf("separation.model %q must be a model name, not a path", c.Separation.Model)
	}
	return nil
}

func (c *Config) validateTranscription() error {
	t := c.Transcription
	if t.ChunkSeconds > maxChunkSeconds {
		return fmt.Errorf("transcription.chunk_seconds must be <= %d", maxChunkSeconds)
	}
	if t.MaxConcurrentRequests > maxTranscriptionConcurrentRequest {
		return fmt.Errorf("transcription.max_concurrent_requests must be <= %d", maxTranscriptionConcurrentRequest)
	}
	if t.MaxPhraseRepeats == 1 {
		return errors.New("transcription.max_phrase_repeats must be 0 (disabled) or >= 2")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q must be one of debug, info, warn, error", c.Logging.Level)
	}
}

func (c *Config) validateNotifications() error {
	topic := c.Notifications.NtfyTopic
	if topic == "" {
		return nil
	}
	parsed, err := url.Parse(topic)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("notifications.ntfy_topic %q must be an http(s) URL", topic)
	}
	return nil
}
