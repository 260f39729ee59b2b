// Package mediatool is the gateway over the external media tools: ffmpeg for
// transcoding and stream extraction, demucs for vocal separation.
//
// Callers depend on the Gateway interface; Tools is the exec-backed
// implementation. Each method returns an error tagged with a services marker
// (ErrTranscode, ErrExtraction, ErrDeviceUnavailable) wrapping a *ToolError
// that carries the exit code and the tail of the tool output. Outputs are
// written to temporary siblings and renamed on success.
package mediatool
