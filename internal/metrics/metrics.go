// Package metrics holds the Prometheus collectors for one scribe run and
// exports them as a node_exporter textfile.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder owns a private registry. A nil *Recorder is valid and records
// nothing.
type Recorder struct {
	registry *prometheus.Registry

	jobsCompleted   *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
	sttRequests     *prometheus.CounterVec
	sttDuration     prometheus.Histogram
	sttRetries      prometheus.Counter
	chunks          *prometheus.CounterVec
	subtitleLines   prometheus.Counter
	linesRemoved    *prometheus.CounterVec
	lastRunFinished prometheus.Gauge
}

// New registers the scribe collectors on a fresh registry.
func New() *Recorder {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Recorder{
		registry: registry,
		jobsCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scribe_jobs_completed_total",
				Help: "Video jobs finished, by final status",
			},
			[]string{"status"},
		),
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scribe_stage_duration_seconds",
				Help:    "Pipeline stage duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 14), // 0.5s to ~68 minutes
			},
			[]string{"stage", "result"},
		),
		sttRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scribe_stt_requests_total",
				Help: "Speech-to-text calls, by outcome",
			},
			[]string{"outcome"},
		),
		sttDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scribe_stt_request_duration_seconds",
				Help:    "Speech-to-text call latency in seconds",
				Buckets: prometheus.ExponentialBuckets(0.25, 2, 12),
			},
		),
		sttRetries: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "scribe_stt_retries_total",
				Help: "Speech-to-text calls repeated after a transient failure",
			},
		),
		chunks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scribe_chunks_total",
				Help: "Audio chunks processed, by result",
			},
			[]string{"result"},
		),
		subtitleLines: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "scribe_subtitle_lines_total",
				Help: "Subtitle lines written by transcription",
			},
		),
		linesRemoved: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scribe_subtitle_lines_removed_total",
				Help: "Transcribed lines removed during assembly, by reason",
			},
			[]string{"reason"},
		),
		lastRunFinished: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "scribe_last_run_finished_timestamp_seconds",
				Help: "Unix time the last batch run finished",
			},
		),
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// RecordJob counts a finished job.
func (r *Recorder) RecordJob(status string) {
	if r == nil {
		return
	}
	r.jobsCompleted.WithLabelValues(status).Inc()
}

// RecordStage observes one stage execution.
func (r *Recorder) RecordStage(stage, result string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.stageDuration.WithLabelValues(stage, result).Observe(elapsed.Seconds())
}

// RecordSTTRequest observes one service call. outcome is success, transient
// or permanent.
func (r *Recorder) RecordSTTRequest(outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.sttRequests.WithLabelValues(outcome).Inc()
	r.sttDuration.Observe(elapsed.Seconds())
}

// RecordSTTRetry counts a repeated call.
func (r *Recorder) RecordSTTRetry() {
	if r == nil {
		return
	}
	r.sttRetries.Inc()
}

// RecordChunk counts a chunk by result (ok or failed).
func (r *Recorder) RecordChunk(result string) {
	if r == nil {
		return
	}
	r.chunks.WithLabelValues(result).Inc()
}

// RecordLines counts written lines and lines removed during assembly.
func (r *Recorder) RecordLines(written int, removed map[string]int) {
	if r == nil {
		return
	}
	r.subtitleLines.Add(float64(written))
	for reason, n := range removed {
		if n > 0 {
			r.linesRemoved.WithLabelValues(reason).Add(float64(n))
		}
	}
}

// MarkRunFinished stamps the run completion time.
func (r *Recorder) MarkRunFinished(at time.Time) {
	if r == nil {
		return
	}
	r.lastRunFinished.Set(float64(at.Unix()))
}

// WriteTextfile writes the registry in text exposition format. The file is
// written to a temporary sibling and renamed, as node_exporter expects.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
