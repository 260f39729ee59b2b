package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Counts tallies job statuses for a run.
type Counts struct {
	Succeeded       int `json:"succeeded"`
	PartiallyFailed int `json:"partially_failed"`
	Failed          int `json:"failed"`
	Skipped         int `json:"skipped"`
}

// Total returns the number of jobs.
func (c Counts) Total() int {
	return c.Succeeded + c.PartiallyFailed + c.Failed + c.Skipped
}

// Run is one batch invocation.
type Run struct {
	ID          string
	StartedAt   time.Time
	FinishedAt  time.Time
	InputDir    string
	OutputDir   string
	Flags       string
	Counts      Counts
	Interrupted bool
}

// Finished reports whether the run recorded its completion.
func (r Run) Finished() bool { return !r.FinishedAt.IsZero() }

// JobRecord is the persisted outcome of one job.
type JobRecord struct {
	Name         string
	SourcePath   string
	Status       string
	FailedStages []string
	Error        string
	Outputs      []string
	Duration     time.Duration
}

// StartRun inserts a run row.
func (s *Store) StartRun(ctx context.Context, run Run) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	err := s.exec(ctx,
		`INSERT INTO runs (id, started_at, input_dir, output_dir, flags) VALUES (?, ?, ?, ?, ?)`,
		run.ID,
		formatTime(run.StartedAt),
		run.InputDir,
		run.OutputDir,
		run.Flags,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RecordJob stores or replaces the outcome of one job.
func (s *Store) RecordJob(ctx context.Context, runID string, job JobRecord) error {
	err := s.exec(ctx,
		`INSERT OR REPLACE INTO jobs (
            run_id, name, source_path, status, failed_stages, error_message, outputs, duration_ms
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID,
		job.Name,
		nullableString(job.SourcePath),
		job.Status,
		nullableString(strings.Join(job.FailedStages, ",")),
		nullableString(job.Error),
		nullableString(strings.Join(job.Outputs, "\n")),
		job.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert job %s: %w", job.Name, err)
	}
	return nil
}

// FinishRun stores the run totals.
func (s *Store) FinishRun(ctx context.Context, runID string, counts Counts, finishedAt time.Time, interrupted bool) error {
	err := s.exec(ctx,
		`UPDATE runs SET finished_at = ?, succeeded = ?, partially_failed = ?, failed = ?, skipped = ?, interrupted = ?
        WHERE id = ?`,
		formatTime(finishedAt),
		counts.Succeeded,
		counts.PartiallyFailed,
		counts.Failed,
		counts.Skipped,
		boolToInt(interrupted),
		runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// Runs returns the most recent runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, input_dir, output_dir, flags,
            succeeded, partially_failed, failed, skipped, interrupted
        FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run         Run
			started     string
			finished    sql.NullString
			interrupted int
		)
		if err := rows.Scan(&run.ID, &started, &finished, &run.InputDir, &run.OutputDir, &run.Flags,
			&run.Counts.Succeeded, &run.Counts.PartiallyFailed, &run.Counts.Failed, &run.Counts.Skipped, &interrupted); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartedAt = parseTime(started)
		if finished.Valid {
			run.FinishedAt = parseTime(finished.String)
		}
		run.Interrupted = interrupted != 0
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// FindRun resolves a run by id or unique id prefix.
func (s *Store) FindRun(ctx context.Context, idPrefix string) (Run, error) {
	idPrefix = strings.TrimSpace(idPrefix)
	if idPrefix == "" {
		return Run{}, fmt.Errorf("run id required")
	}
	runs, err := s.Runs(ctx, 1000)
	if err != nil {
		return Run{}, err
	}
	var matches []Run
	for _, run := range runs {
		if strings.HasPrefix(run.ID, idPrefix) {
			matches = append(matches, run)
		}
	}
	switch len(matches) {
	case 0:
		return Run{}, fmt.Errorf("run %q not found", idPrefix)
	case 1:
		return matches[0], nil
	default:
		return Run{}, fmt.Errorf("run id %q is ambiguous (%d matches)", idPrefix, len(matches))
	}
}

// Jobs returns the jobs of a run ordered by name.
func (s *Store) Jobs(ctx context.Context, runID string) ([]JobRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, source_path, status, failed_stages, error_message, outputs, duration_ms
        FROM jobs WHERE run_id = ? ORDER BY name`, runID)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []JobRecord
	for rows.Next() {
		var (
			job                              JobRecord
			source, stages, message, outputs sql.NullString
			durationMS                       int64
		)
		if err := rows.Scan(&job.Name, &source, &job.Status, &stages, &message, &outputs, &durationMS); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		job.SourcePath = source.String
		job.FailedStages = splitNonEmpty(stages.String, ",")
		job.Error = message.String
		job.Outputs = splitNonEmpty(outputs.String, "\n")
		job.Duration = time.Duration(durationMS) * time.Millisecond
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func splitNonEmpty(value, sep string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
