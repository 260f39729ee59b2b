package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"scribe/internal/batch"
)

func newPrepareCommand(ctx *commandContext) *cobra.Command {
	var inputDir, outputDir string

	cmd := &cobra.Command{
		Use:   "prepare --input-dir DIR --output-dir DIR",
		Short: "Copy loose videos into one directory per video",
		Long: `prepare copies every video file found directly in --input-dir into
<output-dir>/<sanitized name>/, producing the layout the batch run expects.
Videos already prepared are left untouched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(inputDir) == "" || strings.TrimSpace(outputDir) == "" {
				return usageErrorf("--input-dir and --output-dir are required")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			in, err := absPath(inputDir)
			if err != nil {
				return usageErrorf("--input-dir: %v", err)
			}
			out, err := absPath(outputDir)
			if err != nil {
				return usageErrorf("--output-dir: %v", err)
			}
			if in == out {
				return usageErrorf("--output-dir must differ from --input-dir")
			}
			logger, err := ctx.newLogger(cmd)
			if err != nil {
				return err
			}

			result, err := batch.Prepare(in, out, cfg.IsVideoFile, logger)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Prepared %d video(s) in %s (%d already present)\n", len(result.Copied), out, len(result.Skipped))
			if len(result.Failed) == 0 {
				return nil
			}
			names := make([]string, 0, len(result.Failed))
			for name := range result.Failed {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(w, "  failed: %s: %v\n", name, result.Failed[name])
			}
			return withExitCode(batch.ExitFailed, fmt.Errorf("%d video(s) could not be prepared", len(names)))
		},
	}
	cmd.Flags().StringVarP(&inputDir, "input-dir", "i", "", "Directory holding loose video files")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Directory to create the per-video folders in")
	return cmd
}
