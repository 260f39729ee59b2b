package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"scribe/internal/logs"
)

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scribe.log")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestTailLastLines(t *testing.T) {
	path := writeLog(t, "a\nb\nc\n")

	result, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 2})
	require.NoError(t, err)
	require.Equal(t, []string{"b", "c"}, result.Lines)
	require.EqualValues(t, 6, result.Offset)
}

func TestTailMissingFile(t *testing.T) {
	result, err := logs.Tail(context.Background(), filepath.Join(t.TempDir(), "none.log"), logs.TailOptions{Offset: -1, Limit: 5})
	require.NoError(t, err)
	require.Empty(t, result.Lines)
}

func TestTailLeavesPartialLine(t *testing.T) {
	path := writeLog(t, "one\ntwo")

	result, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: 0})
	require.NoError(t, err)
	require.Equal(t, []string{"one"}, result.Lines)
	require.EqualValues(t, 4, result.Offset)
}

func TestTailFiltersByRunAndJob(t *testing.T) {
	path := writeLog(t, `2026-03-01T10:00:00Z INFO batch: batch started run_id=4f1c2d3e-aaaa jobs=2
2026-03-01T10:00:01Z INFO pipeline: stage started run_id=4f1c2d3e-aaaa job=lesson01 stage=normalize
2026-03-01T10:00:01Z INFO pipeline: stage started run_id=4f1c2d3e-aaaa job=lesson02 stage=normalize
{"ts":"2026-03-01T10:00:02Z","level":"info","msg":"stage started","run_id":"4f1c2d3e-aaaa","job":"lesson01","stage":"audio"}
2026-03-02T09:00:00Z INFO pipeline: stage started run_id=9b9b9b9b-bbbb job=lesson01 stage=normalize
`)

	result, err := logs.Tail(context.Background(), path, logs.TailOptions{
		Offset: -1,
		Limit:  10,
		Match:  logs.MatchFields("4f1c2d3e", "lesson01"),
	})
	require.NoError(t, err)
	require.Len(t, result.Lines, 2)
	require.Contains(t, result.Lines[0], "stage=normalize")
	require.Contains(t, result.Lines[1], `"stage":"audio"`)

	require.Nil(t, logs.MatchFields("", " "))
}

func TestTailFollowWaits(t *testing.T) {
	path := writeLog(t, "start\n")
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	first, err := logs.Tail(ctx, path, logs.TailOptions{Offset: -1, Limit: 1})
	require.NoError(t, err)
	require.Equal(t, []string{"start"}, first.Lines)

	done := make(chan logs.TailResult, 1)
	go func() {
		res, err := logs.Tail(ctx, path, logs.TailOptions{Offset: first.Offset, Follow: true, Wait: 5 * time.Second})
		if err != nil {
			t.Errorf("follow tail error: %v", err)
		}
		done <- res
	}()

	time.Sleep(200 * time.Millisecond)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("later\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	select {
	case res := <-done:
		require.Equal(t, []string{"later"}, res.Lines)
	case <-time.After(10 * time.Second):
		t.Fatal("tail follow did not return")
	}
}

func TestTailFollowHonorsCancel(t *testing.T) {
	path := writeLog(t, "start\n")
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := logs.Tail(ctx, path, logs.TailOptions{Offset: 6, Follow: true, Wait: time.Minute})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
