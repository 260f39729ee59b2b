package mediatool

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Device selects where source separation runs.
type Device string

const (
	DeviceCPU Device = "cpu"
	DeviceGPU Device = "gpu"
)

// ParseDevice validates a --device value.
func ParseDevice(value string) (Device, error) {
	switch Device(strings.ToLower(strings.TrimSpace(value))) {
	case "", DeviceCPU:
		return DeviceCPU, nil
	case DeviceGPU:
		return DeviceGPU, nil
	default:
		return "", fmt.Errorf("device %q: must be cpu or gpu", value)
	}
}

// Stems holds the files produced by source separation.
type Stems struct {
	Vocals        string
	Accompaniment string
}

// Gateway is the capability surface over the external media tools. Every
// method blocks until the tool exits and writes its output atomically: a
// destination path either holds a complete file or is left untouched.
// Implementations must be safe for concurrent use.
type Gateway interface {
	// Transcode converts src into the target container at dest.
	Transcode(ctx context.Context, src, dest string) error
	// ExtractSubtitles copies the first subtitle stream of src to an SRT file.
	// codec is the stream codec reported by the prober.
	ExtractSubtitles(ctx context.Context, src, dest, codec string) error
	// ExtractAudio demuxes the first audio stream to 16-bit PCM mono WAV.
	ExtractAudio(ctx context.Context, src, dest string) error
	// ExtractSegment cuts [start, start+duration) of src's audio to a WAV file.
	ExtractSegment(ctx context.Context, src string, start, duration time.Duration, dest string) error
	// StripAudio writes src's video stream without audio.
	StripAudio(ctx context.Context, src, dest string) error
	// SeparateStems splits src into vocal and accompaniment stems inside outDir.
	SeparateStems(ctx context.Context, src, outDir string, device Device) (Stems, error)
	// CheckDevice fails with services.ErrDeviceUnavailable when device cannot be used.
	CheckDevice(ctx context.Context, device Device) error
}
