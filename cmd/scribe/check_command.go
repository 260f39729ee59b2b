package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"scribe/internal/batch"
	"scribe/internal/credentials"
	"scribe/internal/deps"
	"scribe/internal/mediatool"
	"scribe/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	opts := &runOptions{}
	var skipAPI bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify tools, directories and credentials before a run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			plan, err := resolveRunPlan(cmd, cfg, opts)
			if err != nil {
				return err
			}

			results := preflight.RunAll(cmd.Context(), cfg, preflight.Inputs{
				InputDir:   plan.inputDir,
				OutputDir:  plan.outputDir,
				SecretsDir: plan.secretsDir,
				Needs: deps.Needs{
					Separation: plan.flags.FilterTwoStems,
					GPU:        plan.flags.FilterTwoStems && plan.flags.Device == mediatool.DeviceGPU,
				},
			})
			if !skipAPI && plan.flags.Language != "" {
				if creds, err := credentials.Load(plan.secretsDir, cfg.Credentials.FileName); err == nil {
					results = append(results, preflight.CheckSTTEndpoint(cmd.Context(), creds, cfg.Transcription.APIVersion))
				}
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader("Preflight", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, r := range results {
				kind := statusOK
				if !r.Passed {
					kind = statusError
				} else if strings.HasSuffix(r.Detail, "(optional)") {
					kind = statusWarn
				}
				fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
			}

			if failed := preflight.Failed(results); len(failed) > 0 {
				return withExitCode(batch.ExitFailed, fmt.Errorf("%d preflight check(s) failed", len(failed)))
			}
			fmt.Fprintln(out, "All checks passed")
			return nil
		},
	}
	bindRunFlags(cmd, opts)
	cmd.Flags().BoolVar(&skipAPI, "skip-api", false, "Do not contact the speech-to-text endpoint")
	return cmd
}
