package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"scribe/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var runID, job string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the scribe log file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := cfg.Logging.File
			if path == "" {
				return errors.New("logging.file is not set; scribe only logs to stderr")
			}

			out := cmd.OutOrStdout()
			opts := logs.TailOptions{Offset: -1, Limit: lines, Match: logs.MatchFields(runID, job)}
			for {
				if follow {
					opts.Follow = true
					opts.Wait = 5 * time.Second
				}
				result, err := logs.Tail(cmd.Context(), path, opts)
				for _, line := range result.Lines {
					fmt.Fprintln(out, line)
				}
				if err != nil {
					if errors.Is(err, context.Canceled) {
						return nil
					}
					return err
				}
				if !follow {
					return nil
				}
				opts.Offset = result.Offset
			}
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines")
	cmd.Flags().StringVar(&runID, "run", "", "Only lines of this run id (prefix)")
	cmd.Flags().StringVar(&job, "job", "", "Only lines of this job")
	return cmd
}
