package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"jobspine/internal/workerrun"
	"jobspine/internal/workflow"
)

func newWorkerCommand(ctx *commandContext) *cobra.Command {
	var pollSeconds float64
	var watch bool
	var verbose bool

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Claim and complete the next queued job version",
		Long: "Run one discover, claim, execute, complete cycle and exit. With --watch the\n" +
			"worker keeps polling until interrupted.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			level := ""
			if verbose {
				level = "debug"
			}
			logger, err := ctx.logger(level)
			if err != nil {
				return err
			}

			poll := cfg.PollInterval()
			if cmd.Flags().Changed("poll-seconds") {
				if pollSeconds <= 0 {
					return fmt.Errorf("--poll-seconds must be positive")
				}
				poll = time.Duration(pollSeconds * float64(time.Second))
			}

			outcome, err := workerrun.Run(cmd.Context(), cfg, logger, workerrun.Options{
				Watch:        watch,
				PollInterval: poll,
			})
			if err != nil {
				return err
			}
			if !watch {
				fmt.Fprintln(cmd.OutOrStdout(), describeOutcome(outcome))
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&pollSeconds, "poll-seconds", 10, "Seconds to wait between polls when idle (defaults to worker.poll_seconds)")
	cmd.Flags().BoolVar(&watch, "watch", false, "Keep polling until interrupted")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	return cmd
}

func describeOutcome(outcome workflow.Outcome) string {
	switch outcome.Kind {
	case workflow.OutcomeCompleted:
		return fmt.Sprintf("Completed %s/%s.", outcome.JobID, outcome.Version)
	case workflow.OutcomeRaceLost:
		return fmt.Sprintf("Another worker claimed %s/%s first.", outcome.JobID, outcome.Version)
	case workflow.OutcomeFailed:
		return fmt.Sprintf("Execution failed for %s/%s; it remains running.", outcome.JobID, outcome.Version)
	default:
		return "No queued jobs."
	}
}
