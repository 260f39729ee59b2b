// Package logs reads back the scribe log file: the last N lines, optionally
// narrowed to one run or job, and new lines as they are appended.
package logs
