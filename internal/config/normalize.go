package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	c.normalizeMedia()
	c.normalizeSeparation()
	c.normalizeTranscription()
	c.normalizeLogging()
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		c.Notifications.RequestTimeoutSeconds = defaultNtfyTimeoutSeconds
	}
	return c.normalizePaths()
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Logging.File, err = expandPath(strings.TrimSpace(c.Logging.File)); err != nil {
		return fmt.Errorf("logging.file: %w", err)
	}
	if strings.TrimSpace(c.Ledger.Path) == "" {
		c.Ledger.Path = defaultLedgerPath
	}
	if c.Ledger.Path, err = expandPath(c.Ledger.Path); err != nil {
		return fmt.Errorf("ledger.path: %w", err)
	}
	if c.Metrics.Textfile, err = expandPath(strings.TrimSpace(c.Metrics.Textfile)); err != nil {
		return fmt.Errorf("metrics.textfile: %w", err)
	}
	return nil
}

func (c *Config) normalizeMedia() {
	c.Media.FFmpegBinary = strings.TrimSpace(c.Media.FFmpegBinary)
	if c.Media.FFmpegBinary == "" {
		c.Media.FFmpegBinary = defaultFFmpegBinary
	}
	c.Media.FFprobeBinary = strings.TrimSpace(c.Media.FFprobeBinary)
	if c.Media.FFprobeBinary == "" {
		c.Media.FFprobeBinary = defaultFFprobeBinary
	}
	c.Media.VideoExtensions = normalizeExtensions(c.Media.VideoExtensions)
	if len(c.Media.VideoExtensions) == 0 {
		c.Media.VideoExtensions = append([]string(nil), defaultVideoExtensions...)
	}
	c.Media.SupportedFormats = normalizeExtensions(c.Media.SupportedFormats)
	if len(c.Media.SupportedFormats) == 0 {
		c.Media.SupportedFormats = append([]string(nil), defaultSupportedFormats...)
	}
	c.Media.TargetFormat = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(c.Media.TargetFormat)), ".")
	if c.Media.TargetFormat == "" {
		c.Media.TargetFormat = defaultTargetFormat
	}
	c.Media.VideoCodec = strings.TrimSpace(c.Media.VideoCodec)
	if c.Media.VideoCodec == "" {
		c.Media.VideoCodec = defaultVideoCodec
	}
	c.Media.AudioCodec = strings.TrimSpace(c.Media.AudioCodec)
	if c.Media.AudioCodec == "" {
		c.Media.AudioCodec = defaultAudioCodec
	}
	c.Media.ExtraFFmpegArgs = strings.TrimSpace(c.Media.ExtraFFmpegArgs)
	if c.Media.ToolTimeoutSeconds <= 0 {
		c.Media.ToolTimeoutSeconds = defaultToolTimeoutSeconds
	}
	if c.Audio.SampleRate <= 0 {
		c.Audio.SampleRate = defaultSampleRate
	}
}

func (c *Config) normalizeSeparation() {
	c.Separation.DemucsBinary = strings.TrimSpace(c.Separation.DemucsBinary)
	if c.Separation.DemucsBinary == "" {
		c.Separation.DemucsBinary = defaultDemucsBinary
	}
	c.Separation.Model = strings.TrimSpace(c.Separation.Model)
	if c.Separation.Model == "" {
		c.Separation.Model = defaultDemucsModel
	}
	c.Separation.GPUProbeCommand = strings.TrimSpace(c.Separation.GPUProbeCommand)
	c.Separation.ExtraArgs = strings.TrimSpace(c.Separation.ExtraArgs)
}

func (c *Config) normalizeTranscription() {
	t := &c.Transcription
	if t.ChunkSeconds <= 0 {
		t.ChunkSeconds = defaultChunkSeconds
	}
	if t.MaxConcurrentRequests <= 0 {
		t.MaxConcurrentRequests = defaultMaxConcurrentRequests
	}
	if t.MaxAttempts <= 0 {
		t.MaxAttempts = defaultMaxAttempts
	}
	if t.RequestTimeoutSeconds <= 0 {
		t.RequestTimeoutSeconds = defaultRequestTimeoutSeconds
	}
	if t.RetryBaseDelayMillis < 0 {
		t.RetryBaseDelayMillis = defaultRetryBaseDelayMillis
	}
	if t.RetryMaxDelaySeconds <= 0 {
		t.RetryMaxDelaySeconds = defaultRetryMaxDelaySeconds
	}
	t.APIVersion = strings.TrimSpace(t.APIVersion)
	if t.APIVersion == "" {
		t.APIVersion = defaultAPIVersion
	}
	t.Prompt = strings.TrimSpace(t.Prompt)
	if t.MaxPhraseRepeats < 0 {
		t.MaxPhraseRepeats = 0
	}
	phrases := t.BlockedPhrases[:0]
	for _, phrase := range t.BlockedPhrases {
		if phrase = strings.TrimSpace(phrase); phrase != "" {
			phrases = append(phrases, phrase)
		}
	}
	t.BlockedPhrases = phrases
	languages := t.SupportedLanguages[:0]
	for _, lang := range t.SupportedLanguages {
		if lang = strings.ToLower(strings.TrimSpace(lang)); lang != "" {
			languages = append(languages, lang)
		}
	}
	t.SupportedLanguages = languages
	if len(t.SupportedLanguages) == 0 {
		t.SupportedLanguages = append([]string(nil), defaultSupportedLanguages...)
	}
	if strings.TrimSpace(c.Credentials.FileName) == "" {
		c.Credentials.FileName = defaultCredentialsFileName
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func normalizeExtensions(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		ext := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(value)), ".")
		if ext == "" {
			continue
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		out = append(out, ext)
	}
	return out
}
