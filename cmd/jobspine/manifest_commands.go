package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"jobspine/internal/fileutil"
	"jobspine/internal/logging"
	"jobspine/internal/preflight"
	"jobspine/internal/queue"
)

func newManifestCommand(ctx *commandContext) *cobra.Command {
	manifestCmd := &cobra.Command{
		Use:   "manifest",
		Short: "Inspect or regenerate _JOBS_MANIFEST.json",
	}
	manifestCmd.AddCommand(newManifestCheckCommand(ctx))
	manifestCmd.AddCommand(newManifestRebuildCommand(ctx))
	return manifestCmd
}

func newManifestCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Compare the manifest against per-version metadata",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, manifests, err := ctx.stores(logging.NewNop())
			if err != nil {
				return err
			}
			m, state, err := manifests.Load(cmd.Context())
			if err != nil {
				return err
			}
			if state == fileutil.ReadCorrupt {
				return fmt.Errorf("%s is corrupt; run 'jobspine manifest rebuild'", manifests.Path())
			}
			scan, err := preflight.ScanStore(cmd.Context(), store)
			if err != nil {
				return err
			}

			drift := preflight.Drift(m, scan)
			out := cmd.OutOrStdout()
			if len(drift) == 0 {
				fmt.Fprintf(out, "Manifest matches metadata (%d jobs, %d versions).\n", len(m.Jobs), len(scan.Versions))
				return nil
			}
			for _, entry := range drift {
				fmt.Fprintf(out, "drift: %s\n", entry)
			}
			return fmt.Errorf("manifest disagrees with metadata for %d versions; run 'jobspine manifest rebuild'", len(drift))
		},
	}
}

func newManifestRebuildCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Regenerate the manifest from per-version metadata",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.logger("")
			if err != nil {
				return err
			}
			store, manifests, err := ctx.stores(logger)
			if err != nil {
				return err
			}

			var metas []queue.Metadata
			skipped := 0
			err = store.Walk(cmd.Context(), func(ref queue.VersionRef, meta *queue.Metadata, state fileutil.ReadState) error {
				if state != fileutil.ReadOK || meta == nil {
					skipped++
					return nil
				}
				metas = append(metas, *meta)
				return nil
			})
			if err != nil {
				return err
			}

			m, err := manifests.Rebuild(cmd.Context(), metas)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Rebuilt %s with %d jobs and %d versions.\n", manifests.Path(), len(m.Jobs), len(metas))
			if skipped > 0 {
				fmt.Fprintf(out, "Skipped %d versions with missing or corrupt metadata.\n", skipped)
			}
			return nil
		},
	}
}
