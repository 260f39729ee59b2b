package stt

import (
	"context"
	"time"
)

// Request is one audio chunk submitted for transcription.
type Request struct {
	Audio    []byte
	FileName string
	// Language is an ISO 639-1 code. Empty lets the service detect it.
	Language string
	Prompt   string
}

// Segment is a timed span of recognized speech, relative to the start of the
// submitted audio.
type Segment struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

// Response carries the recognized text and, when the service provides it,
// per-segment timing.
type Response struct {
	Text     string
	Language string
	Duration time.Duration
	Segments []Segment
}

// Client transcribes audio. Implementations must be safe for concurrent use.
type Client interface {
	Transcribe(ctx context.Context, req Request) (Response, error)
}
