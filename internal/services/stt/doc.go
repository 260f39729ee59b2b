// Package stt defines the speech-to-text client contract used by the
// transcription engine and implements it against an Azure OpenAI Whisper
// deployment.
//
// A Client performs exactly one service call per Transcribe. Retry policy
// lives with the caller; failures come back as *CallError values that match
// services.ErrSTTTransient or services.ErrSTTPermanent so callers can decide
// whether another attempt is worthwhile.
package stt
