package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"jobspine/internal/fileutil"
	"jobspine/internal/journal"
	"jobspine/internal/manifest"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status [JOB_ID]",
		Short: "Show job versions recorded in the manifest",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.logger("")
			if err != nil {
				return err
			}
			_, manifests, err := ctx.stores(logger)
			if err != nil {
				return err
			}
			m, state, err := manifests.Load(cmd.Context())
			if err != nil {
				return err
			}
			if state == fileutil.ReadCorrupt {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s is corrupt; run 'jobspine manifest rebuild'\n", manifests.Path())
			}

			jobIDs := m.JobIDs()
			if len(args) == 1 {
				jobID := strings.TrimSpace(args[0])
				if _, ok := m.Jobs[jobID]; !ok {
					return fmt.Errorf("job %q not found in manifest", jobID)
				}
				jobIDs = []string{jobID}
			}

			if asJSON {
				if len(args) == 1 {
					return writeJSON(cmd, m.Jobs[jobIDs[0]])
				}
				return writeJSON(cmd, m)
			}

			out := cmd.OutOrStdout()
			if len(jobIDs) == 0 {
				fmt.Fprintln(out, "No jobs registered.")
				return nil
			}
			fmt.Fprint(out, renderStatusTable(m, jobIDs))
			fmt.Fprintln(out)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output the manifest entries as JSON")
	return cmd
}

func renderStatusTable(m *manifest.Manifest, jobIDs []string) string {
	headers := []string{"Job", "Version", "Consumer", "Status", "Rendering", "Registered", "Started", "Completed"}
	var rows [][]string
	for _, jobID := range jobIDs {
		record := m.Jobs[jobID]
		if record == nil {
			continue
		}
		for _, v := range record.Versions {
			rows = append(rows, []string{
				jobID,
				v.Version,
				v.Consumer,
				titleLabel(string(v.Status)),
				dashIfEmpty(v.Rendering),
				dashIfEmpty(v.Timestamp),
				dashIfEmpty(v.StartedAt),
				dashIfEmpty(v.CompletedAt),
			})
		}
	}
	return renderTable(headers, rows, nil)
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [JOB_ID]",
		Short: "Show recorded status transitions from the journal",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !cfg.Journal.Enabled {
				fmt.Fprintln(out, "Journal is disabled (journal.enabled = false).")
				return nil
			}
			if limit < 0 {
				return fmt.Errorf("--limit must not be negative")
			}

			j, ok, err := ctx.readJournal(cmd.Context())
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(out, "No transitions recorded.")
				return nil
			}
			defer j.Close()

			filter := journal.Filter{Limit: limit}
			if len(args) == 1 {
				filter.JobID = strings.TrimSpace(args[0])
			}
			entries, err := j.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No transitions recorded.")
				return nil
			}
			fmt.Fprint(out, renderHistoryTable(entries))
			fmt.Fprintln(out)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of transitions to show (0 for all)")
	return cmd
}

func renderHistoryTable(entries []journal.Entry) string {
	headers := []string{"#", "At", "Event", "Job", "Version", "Transition", "Worker"}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		transition := titleLabel(string(e.ToStatus))
		if e.FromStatus != "" {
			transition = titleLabel(string(e.FromStatus)) + " -> " + transition
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", e.Seq),
			e.At.UTC().Format("2006-01-02T15:04:05Z"),
			titleLabel(e.Event),
			e.JobID,
			e.Version,
			transition,
			dashIfEmpty(e.WorkerID),
		})
	}
	return renderTable(headers, rows, []columnAlignment{alignRight})
}
