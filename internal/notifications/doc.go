// Package notifications publishes run summaries to ntfy.
//
// The CLI sends one message when a batch finishes (or fails to start); the
// service degrades to a no-op when no topic is configured.
package notifications
