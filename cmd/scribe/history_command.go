package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"scribe/internal/ledger"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history [RUN_ID]",
		Short: "List previous runs, or the jobs of one run",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 1 {
				return usageErrorf("history takes at most one run id")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.Ledger.Enabled {
				return errors.New("run history is disabled (ledger.enabled = false)")
			}
			if _, err := os.Stat(cfg.Ledger.Path); errors.Is(err, os.ErrNotExist) {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded yet")
				return nil
			}
			store, err := ledger.Open(cfg.Ledger.Path)
			if err != nil {
				return fmt.Errorf("open run history: %w", err)
			}
			defer store.Close()

			if len(args) == 0 {
				runs, err := store.Runs(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, toRunViews(runs))
				}
				printRuns(cmd, runs)
				return nil
			}

			run, err := store.FindRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			jobs, err := store.Jobs(cmd.Context(), run.ID)
			if err != nil {
				return err
			}
			if asJSON {
				view := toRunViews([]ledger.Run{run})[0]
				view.Jobs = toJobViews(jobs)
				return writeJSON(cmd, view)
			}
			printRun(cmd, run, jobs)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func printRuns(cmd *cobra.Command, runs []ledger.Run) {
	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded yet")
		return
	}
	spec := tableSpec{
		headers: []string{"Run", "Started", "Jobs", "OK", "Partial", "Failed", "Skipped", "State", "Input"},
		aligns:  []columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft, alignLeft},
	}
	for _, run := range runs {
		spec.rows = append(spec.rows, []string{
			shortID(run.ID),
			run.StartedAt.Local().Format("2006-01-02 15:04"),
			strconv.Itoa(run.Counts.Total()),
			strconv.Itoa(run.Counts.Succeeded),
			strconv.Itoa(run.Counts.PartiallyFailed),
			strconv.Itoa(run.Counts.Failed),
			strconv.Itoa(run.Counts.Skipped),
			runState(run),
			run.InputDir,
		})
	}
	fmt.Fprintln(out, renderTable(spec, false))
}

func printRun(cmd *cobra.Command, run ledger.Run, jobs []ledger.JobRecord) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	for _, line := range renderSectionHeader("Run "+run.ID, colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintf(out, "Started:  %s\n", run.StartedAt.Local().Format(time.RFC3339))
	if run.Finished() {
		fmt.Fprintf(out, "Finished: %s (%s)\n", run.FinishedAt.Local().Format(time.RFC3339), formatElapsed(run.FinishedAt.Sub(run.StartedAt)))
	}
	fmt.Fprintf(out, "State:    %s\n", runState(run))
	fmt.Fprintf(out, "Input:    %s\n", run.InputDir)
	fmt.Fprintf(out, "Output:   %s\n", run.OutputDir)
	if run.Flags != "" {
		fmt.Fprintf(out, "Flags:    %s\n", run.Flags)
	}
	if len(jobs) == 0 {
		fmt.Fprintln(out, "No jobs recorded")
		return
	}
	spec := tableSpec{
		headers: []string{"Job", "Status", "Failed stages", "Reason", "Elapsed"},
		aligns:  []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
	}
	for _, job := range jobs {
		spec.rows = append(spec.rows, []string{
			job.Name,
			job.Status,
			strings.Join(job.FailedStages, ", "),
			job.Error,
			formatElapsed(job.Duration),
		})
	}
	fmt.Fprintln(out, renderTable(spec, colorize))
}

func runState(run ledger.Run) string {
	switch {
	case run.Interrupted:
		return "interrupted"
	case run.Finished():
		return "finished"
	default:
		return "incomplete"
	}
}

type runView struct {
	ID         string        `json:"id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
	InputDir   string        `json:"input_dir"`
	OutputDir  string        `json:"output_dir"`
	Flags      string        `json:"flags,omitempty"`
	State      string        `json:"state"`
	Counts     ledger.Counts `json:"counts"`
	Jobs       []jobView     `json:"jobs,omitempty"`
}

type jobView struct {
	Name         string   `json:"name"`
	SourcePath   string   `json:"source_path,omitempty"`
	Status       string   `json:"status"`
	FailedStages []string `json:"failed_stages,omitempty"`
	Error        string   `json:"error,omitempty"`
	Outputs      []string `json:"outputs,omitempty"`
	DurationMS   int64    `json:"duration_ms"`
}

func toRunViews(runs []ledger.Run) []runView {
	views := make([]runView, 0, len(runs))
	for _, run := range runs {
		view := runView{
			ID:        run.ID,
			StartedAt: run.StartedAt,
			InputDir:  run.InputDir,
			OutputDir: run.OutputDir,
			Flags:     run.Flags,
			State:     runState(run),
			Counts:    run.Counts,
		}
		if run.Finished() {
			finished := run.FinishedAt
			view.FinishedAt = &finished
		}
		views = append(views, view)
	}
	return views
}

func toJobViews(jobs []ledger.JobRecord) []jobView {
	views := make([]jobView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, jobView{
			Name:         job.Name,
			SourcePath:   job.SourcePath,
			Status:       job.Status,
			FailedStages: job.FailedStages,
			Error:        job.Error,
			Outputs:      job.Outputs,
			DurationMS:   job.Duration.Milliseconds(),
		})
	}
	return views
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
