// Package transcription turns a waveform into a validated SRT document.
//
// The engine cuts the audio into fixed-length windows, submits each window to
// the speech-to-text client with bounded concurrency and retries, then
// stitches the per-window results back together by window index. Service
// timestamps are chunk-relative; they are clamped to the window and offset by
// its start so the assembled document is monotonic across the whole file.
//
// A window that still fails after its retries is left out of the document.
// The run is PartiallyFailed when at least one window succeeded, otherwise
// Failed.
package transcription
