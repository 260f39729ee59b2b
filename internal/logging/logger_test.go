package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"scribe/internal/logging"
	"scribe/internal/services"
)

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", Writer: &buf})
	require.NoError(t, err)

	logger.Info("message without caller")
	require.NotContains(t, buf.String(), ".go:")
	require.Contains(t, buf.String(), "INFO message without caller")
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", Writer: &buf})
	require.NoError(t, err)

	logger.Debug("message with caller")
	require.Contains(t, buf.String(), "logger_test.go:")
}

func TestConsoleLoggerRendersComponentPrefix(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Writer: &buf})
	require.NoError(t, err)

	logging.NewComponentLogger(logger, "transcription").Info("chunk planned", logging.Int("chunks", 3), logging.String("path", "a b"))
	line := buf.String()
	require.Contains(t, line, "transcription: chunk planned")
	require.Contains(t, line, "chunks=3")
	require.Contains(t, line, `path="a b"`)
	require.NotContains(t, line, "component=")
}

func TestJSONLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "scribe.log")
	logger, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{path}})
	require.NoError(t, err)

	logger.Warn("disk low", logging.Int64("free_bytes", 42))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &payload))
	require.Equal(t, "warn", payload["level"])
	require.Equal(t, "disk low", payload["msg"])
	require.Contains(t, payload, "ts")
}

func TestUnsupportedFormat(t *testing.T) {
	_, err := logging.New(logging.Options{Format: "xml", Writer: &bytes.Buffer{}})
	require.Error(t, err)
}

func TestWithContextAddsCorrelationFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Writer: &buf})
	require.NoError(t, err)

	ctx := services.WithRunID(context.Background(), "run-1")
	ctx = services.WithJob(ctx, "lesson01")
	ctx = services.WithStage(ctx, "transcribe")
	ctx = services.WithRequestID(ctx, "req-9")
	logging.WithContext(ctx, logger).Info("stage started")

	out := buf.String()
	for _, want := range []string{"run_id=run-1", "job=lesson01", "stage=transcribe", "request_id=req-9"} {
		require.True(t, strings.Contains(out, want), "missing %s in %q", want, out)
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Writer: &buf})
	require.NoError(t, err)

	logging.WarnWithContext(logger, "chunk dropped", "chunk_failed", logging.String(logging.FieldImpact, "transcript has a gap"))
	out := buf.String()
	require.Contains(t, out, "event_type=chunk_failed")
	require.Contains(t, out, `error_hint="check logs for details"`)
	require.Contains(t, out, `impact="transcript has a gap"`)
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, "DEBUG", logging.ParseLevel("debug").String())
	require.Equal(t, "WARN", logging.ParseLevel("warning").String())
	require.Equal(t, "INFO", logging.ParseLevel("bogus").String())
}
