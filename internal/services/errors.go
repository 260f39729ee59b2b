package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrStructural        = errors.New("structural error")
	ErrUnreadableMedia   = errors.New("unreadable media")
	ErrTranscode         = errors.New("transcode error")
	ErrExtraction        = errors.New("extraction error")
	ErrNoSubtitleStream  = errors.New("no subtitle stream")
	ErrNoAudioStream     = errors.New("no audio stream")
	ErrDeviceUnavailable = errors.New("device unavailable")
	ErrSTTTransient      = errors.New("speech-to-text transient failure")
	ErrSTTPermanent      = errors.New("speech-to-text permanent failure")
	ErrAssemblyInvariant = errors.New("subtitle assembly invariant violated")
	ErrCredential        = errors.New("credential error")
	ErrConfiguration     = errors.New("configuration error")
	ErrTimeout           = errors.New("timeout")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later status classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrExtraction
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Marker returns the first sentinel marker err matches, or nil.
func Marker(err error) error {
	if err == nil {
		return nil
	}
	for _, marker := range markers {
		if errors.Is(err, marker) {
			return marker
		}
	}
	return nil
}

// Details returns an operator-facing one-line summary and a remediation hint
// for err.
func Details(err error) (message, hint string) {
	if err == nil {
		return "", ""
	}
	message = strings.TrimSpace(err.Error())
	switch {
	case errors.Is(err, ErrStructural):
		hint = "each input subdirectory must hold exactly one video; run `scribe prepare` to fix the layout"
	case errors.Is(err, ErrUnreadableMedia):
		hint = "verify the file plays and ffprobe can read it"
	case errors.Is(err, ErrTranscode):
		hint = "inspect the ffmpeg output; the container may be damaged"
	case errors.Is(err, ErrNoSubtitleStream):
		hint = "the video carries no embedded subtitles; use --speech-to-text instead"
	case errors.Is(err, ErrNoAudioStream):
		hint = "the video carries no audio track"
	case errors.Is(err, ErrExtraction):
		hint = "inspect the ffmpeg output for the failing stream"
	case errors.Is(err, ErrDeviceUnavailable):
		hint = "no GPU detected; rerun with --device cpu"
	case errors.Is(err, ErrSTTPermanent):
		hint = "check API key, endpoint, deployment and quota"
	case errors.Is(err, ErrSTTTransient):
		hint = "the speech-to-text service is throttling or unavailable; retry later"
	case errors.Is(err, ErrAssemblyInvariant):
		hint = "the service returned unusable timing; rerun transcription"
	case errors.Is(err, ErrCredential):
		hint = "check the credential file in --secrets-dir"
	case errors.Is(err, ErrConfiguration):
		hint = "check the config file and flags"
	case errors.Is(err, ErrTimeout):
		hint = "raise the configured timeout or check the external tool"
	default:
		hint = "check logs for details"
	}
	return message, hint
}

var markers = []error{
	ErrStructural,
	ErrUnreadableMedia,
	ErrTranscode,
	ErrNoSubtitleStream,
	ErrNoAudioStream,
	ErrExtraction,
	ErrDeviceUnavailable,
	ErrSTTPermanent,
	ErrSTTTransient,
	ErrAssemblyInvariant,
	ErrCredential,
	ErrConfiguration,
	ErrTimeout,
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
