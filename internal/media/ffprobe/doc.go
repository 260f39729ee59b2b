// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Prober: the pipeline's media prober, returning an Info summary with
//     container, duration and subtitle/audio stream presence
//
// Probe failures are tagged with services.ErrUnreadableMedia.
package ffprobe
