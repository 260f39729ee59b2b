package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"scribe/internal/config"
)

const userAgent = "scribe/1.0"

// RunReport is the outcome of one batch run.
type RunReport struct {
	RunID           string
	InputDir        string
	Succeeded       int
	PartiallyFailed int
	Failed          int
	Skipped         int
	Interrupted     bool
	Elapsed         time.Duration
	// FailedJobs lists "job: reason" lines for failed and partially failed jobs.
	FailedJobs []string
}

// Service defines the notification surface used by the CLI.
type Service interface {
	NotifyRunCompleted(ctx context.Context, report RunReport) error
	NotifyRunAborted(ctx context.Context, err error) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:      topic,
		client:        &http.Client{Timeout: timeout},
		notifySuccess: cfg.Notifications.NotifySuccess,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint      string
	client        *http.Client
	notifySuccess bool
}

// maxListedJobs bounds the failed-job lines included in one message.
const maxListedJobs = 10

func (n *ntfyService) NotifyRunCompleted(ctx context.Context, report RunReport) error {
	clean := report.Failed == 0 && report.PartiallyFailed == 0 && !report.Interrupted
	if clean && !n.notifySuccess {
		return nil
	}

	var b strings.Builder
	total := report.Succeeded + report.PartiallyFailed + report.Failed + report.Skipped
	fmt.Fprintf(&b, "%d jobs in %s: %d succeeded, %d partially failed, %d failed, %d skipped",
		total, report.Elapsed.Round(time.Second), report.Succeeded, report.PartiallyFailed, report.Failed, report.Skipped)
	if report.InputDir != "" {
		fmt.Fprintf(&b, "\nInput: %s", report.InputDir)
	}
	for i, line := range report.FailedJobs {
		if i == maxListedJobs {
			fmt.Fprintf(&b, "\n... and %d more", len(report.FailedJobs)-maxListedJobs)
			break
		}
		b.WriteString("\n- ")
		b.WriteString(line)
	}

	data := payload{
		title:   "scribe - Run complete",
		message: b.String(),
		tags:    []string{"scribe", "batch", "completed"},
	}
	switch {
	case report.Interrupted:
		data.title = "scribe - Run interrupted"
		data.tags = []string{"scribe", "batch", "interrupted"}
	case report.Failed > 0:
		data.title = "scribe - Run finished with failures"
		data.tags = []string{"scribe", "batch", "failed"}
		data.priority = "high"
	case report.PartiallyFailed > 0:
		data.title = "scribe - Run finished with gaps"
		data.tags = []string{"scribe", "batch", "partial"}
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRunAborted(ctx context.Context, err error) error {
	message := "unknown error"
	if err != nil {
		message = strings.TrimSpace(err.Error())
	}
	return n.send(ctx, payload{
		title:    "scribe - Run aborted",
		message:  "Run aborted before processing: " + message,
		tags:     []string{"scribe", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyRunCompleted(context.Context, RunReport) error { return nil }
func (noopService) NotifyRunAborted(context.Context, error) error       { return nil }
