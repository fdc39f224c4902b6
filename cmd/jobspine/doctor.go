package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"jobspine/internal/logging"
	"jobspine/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check store layout, metadata, claims, manifest, and journal health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := logging.NewNop()
			store, manifests, err := ctx.stores(logger)
			if err != nil {
				return err
			}

			results := preflight.RunAll(cmd.Context(), cfg, store, manifests)

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader("jobspine doctor", colorize) {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out, renderCheckLine("Config", checkInfo, dashIfEmpty(ctx.configPath), colorize))
			fmt.Fprintln(out, renderCheckLine("Journal enabled", checkInfo, yesNo(cfg.Journal.Enabled), colorize))

			failed := 0
			for _, result := range results {
				kind := checkPass
				if !result.Passed {
					kind = checkFail
					failed++
				}
				fmt.Fprintln(out, renderCheckLine(result.Name, kind, result.Detail, colorize))
			}
			if failed > 0 {
				return fmt.Errorf("doctor: %d of %d checks failed", failed, len(results))
			}
			fmt.Fprintln(out, "All checks passed.")
			return nil
		},
	}
}
