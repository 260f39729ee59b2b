package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"

	"scribe/internal/batch"
	"scribe/internal/pipeline"
)

// renderSummary prints the per-job table followed by aggregate counts.
func renderSummary(w io.Writer, summary batch.Summary, colorize bool) {
	spec := tableSpec{
		title:   "scribe run " + shortID(summary.RunID),
		headers: []string{"Job", "Status", "Failed stages", "Reason", "Elapsed"},
		aligns:  []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
	}
	for _, job := range summary.Jobs {
		failed := batch.FailedStages(job)
		spec.rows = append(spec.rows, []string{
			job.Name,
			statusLabel(job.Status),
			strings.Join(failed, ", "),
			batch.JobError(job),
			formatElapsed(job.FinishedAt.Sub(job.StartedAt)),
		})
		spec.colors = append(spec.colors, statusColors(job.Status))
	}
	c := summary.Counts
	spec.footer = []string{
		strconv.Itoa(c.Total()) + " jobs",
		fmt.Sprintf("%d ok, %d partial, %d failed, %d skipped", c.Succeeded, c.PartiallyFailed, c.Failed, c.Skipped),
		"",
		"",
		formatElapsed(summary.Elapsed()),
	}

	if len(summary.Jobs) == 0 {
		fmt.Fprintf(w, "No job directories found in %s\n", summary.InputDir)
		return
	}
	fmt.Fprintln(w, renderTable(spec, colorize))
	if summary.Interrupted {
		fmt.Fprintln(w, "Run interrupted; unstarted stages were skipped. Rerun to resume.")
	}
}

func statusLabel(status pipeline.Status) string {
	switch status {
	case pipeline.StatusSucceeded:
		return "Succeeded"
	case pipeline.StatusPartiallyFailed:
		return "Partially failed"
	case pipeline.StatusFailed:
		return "Failed"
	case pipeline.StatusSkipped:
		return "Skipped"
	default:
		return string(status)
	}
}

func statusColors(status pipeline.Status) text.Colors {
	switch status {
	case pipeline.StatusSucceeded:
		return text.Colors{text.FgGreen}
	case pipeline.StatusPartiallyFailed:
		return text.Colors{text.FgYellow}
	case pipeline.StatusFailed:
		return text.Colors{text.FgRed}
	default:
		return nil
	}
}

func formatElapsed(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
