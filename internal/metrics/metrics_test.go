package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	r := New()
	r.RecordJob("succeeded")
	r.RecordJob("succeeded")
	r.RecordJob("failed")
	r.RecordChunk("ok")
	r.RecordChunk("failed")
	r.RecordSTTRequest("transient", time.Second)
	r.RecordSTTRequest("success", 2*time.Second)
	r.RecordSTTRetry()
	r.RecordLines(12, map[string]int{"repeated": 3, "empty": 0})

	require.Equal(t, 2.0, testutil.ToFloat64(r.jobsCompleted.WithLabelValues("succeeded")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.jobsCompleted.WithLabelValues("failed")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.chunks.WithLabelValues("failed")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.sttRequests.WithLabelValues("transient")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.sttRetries))
	require.Equal(t, 12.0, testutil.ToFloat64(r.subtitleLines))
	require.Equal(t, 3.0, testutil.ToFloat64(r.linesRemoved.WithLabelValues("repeated")))
	require.Equal(t, 1, testutil.CollectAndCount(r.linesRemoved))
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	r.RecordJob("failed")
	r.RecordStage("transcribe", "success", time.Second)
	r.MarkRunFinished(time.Now())
	require.Nil(t, r.Registry())
	require.NoError(t, r.WriteTextfile("/nonexistent/metrics.prom"))
}

func TestWriteTextfile(t *testing.T) {
	r := New()
	r.RecordStage("normalize", "skipped", 750*time.Millisecond)
	r.MarkRunFinished(time.Unix(1700000000, 0))

	path := filepath.Join(t.TempDir(), "scribe.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `scribe_stage_duration_seconds_count{result="skipped",stage="normalize"} 1`)
	require.Contains(t, string(data), "scribe_last_run_finished_timestamp_seconds 1.7e+09")
}
