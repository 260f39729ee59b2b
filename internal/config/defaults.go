package config

const (
	defaultConfigPath                 = "~/.config/scribe/config.toml"
	defaultBatchJobs                  = 1
	defaultFFmpegBinary               = "ffmpeg"
	defaultFFprobeBinary              = "ffprobe"
	defaultTargetFormat               = "mp4"
	defaultVideoCodec                 = "libx264"
	defaultAudioCodec                 = "aac"
	defaultToolTimeoutSeconds         = 2 * 60 * 60
	defaultSampleRate                 = 16000
	defaultDemucsBinary               = "demucs"
	defaultDemucsModel                = "htdemucs"
	defaultGPUProbeCommand            = "nvidia-smi -L"
	defaultChunkSeconds               = 600
	defaultMaxConcurrentRequests      = 2
	defaultMaxAttempts                = 4
	defaultRequestTimeoutSeconds      = 300
	defaultRetryBaseDelayMillis       = 500
	defaultRetryMaxDelaySeconds       = 30
	defaultAPIVersion                 = "2024-02-01"
	defaultMaxPhraseRepeats           = 5
	defaultCredentialsFileName        = ".env"
	defaultLogFormat                  = "console"
	defaultLogLevel                   = "info"
	defaultLedgerPath                 = "~/.local/share/scribe/history.db"
	defaultNtfyTimeoutSeconds         = 10
	defaultTranscriptionPrompt        = "Transcribe the speech only. Ignore music and other non-vocal sounds."
	maxChunkSeconds                   = 1400
	maxTranscriptionConcurrentRequest = 16
)

var (
	defaultVideoExtensions    = []string{"mp4", "mkv", "avi", "mov", "m4v", "webm", "wmv", "flv"}
	defaultSupportedFormats   = []string{"mp4", "mkv", "avi"}
	defaultSupportedLanguages = []string{"en"}
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Batch: Batch{
			Jobs: defaultBatchJobs,
		},
		Media: Media{
			FFmpegBinary:       defaultFFmpegBinary,
			FFprobeBinary:      defaultFFprobeBinary,
			VideoExtensions:    append([]string(nil), defaultVideoExtensions...),
			SupportedFormats:   append([]string(nil), defaultSupportedFormats...),
			TargetFormat:       defaultTargetFormat,
			VideoCodec:         defaultVideoCodec,
			AudioCodec:         defaultAudioCodec,
			ToolTimeoutSeconds: defaultToolTimeoutSeconds,
		},
		Audio: Audio{
			SampleRate: defaultSampleRate,
		},
		Separation: Separation{
			DemucsBinary:    defaultDemucsBinary,
			Model:           defaultDemucsModel,
			GPUProbeCommand: defaultGPUProbeCommand,
		},
		Transcription: Transcription{
			ChunkSeconds:          defaultChunkSeconds,
			MaxConcurrentRequests: defaultMaxConcurrentRequests,
			MaxAttempts:           defaultMaxAttempts,
			RequestTimeoutSeconds: defaultRequestTimeoutSeconds,
			RetryBaseDelayMillis:  defaultRetryBaseDelayMillis,
			RetryMaxDelaySeconds:  defaultRetryMaxDelaySeconds,
			APIVersion:            defaultAPIVersion,
			Prompt:                defaultTranscriptionPrompt,
			MaxPhraseRepeats:      defaultMaxPhraseRepeats,
			BlockedPhrases:        []string{defaultTranscriptionPrompt},
			SupportedLanguages:    append([]string(nil), defaultSupportedLanguages...),
		},
		Credentials: Credentials{
			FileName: defaultCredentialsFileName,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Ledger: Ledger{
			Enabled: true,
			Path:    defaultLedgerPath,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNtfyTimeoutSeconds,
		},
	}
}
