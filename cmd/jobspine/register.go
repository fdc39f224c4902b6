package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"jobspine/internal/registrar"
)

type registerOutput struct {
	JobID        string `json:"job_id"`
	Consumer     string `json:"consumer"`
	Version      string `json:"version"`
	VersionDir   string `json:"version_dir"`
	MetadataPath string `json:"metadata_path"`
	Reused       bool   `json:"reused"`
}

func newRegisterCommand(ctx *commandContext) *cobra.Command {
	var intakeID string
	var consumer string
	var version string
	var notes string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register an intake as a new queued job version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger("")
			if err != nil {
				return err
			}
			store, manifests, err := ctx.stores(logger)
			if err != nil {
				return err
			}
			recorder, closeJournal := ctx.openJournal(logger)
			defer closeJournal()

			reg := registrar.New(cfg, store, manifests, recorder, logger)
			result, err := reg.Register(cmd.Context(), registrar.Request{
				JobID:            intakeID,
				Consumer:         consumer,
				RequestedVersion: version,
				Notes:            notes,
			})
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd, registerOutput{
					JobID:        result.JobID,
					Consumer:     result.Consumer,
					Version:      result.Version,
					VersionDir:   result.VersionDir,
					MetadataPath: result.MetadataPath,
					Reused:       result.Reused,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered intake '%s' for consumer '%s' at version %s (placeholder only).\n",
				result.JobID, result.Consumer, result.Version)
			return nil
		},
	}

	cmd.Flags().StringVar(&intakeID, "intake-id", "", "Intake identifier (becomes the job id)")
	cmd.Flags().StringVar(&consumer, "consumer", "", "Consumer name; must carry the configured suffix")
	cmd.Flags().StringVar(&version, "version", "", "Explicit version (numeric values are normalized to vNNNN)")
	cmd.Flags().StringVar(&notes, "notes", "", "Free-text notes stored with the version")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output the registration as JSON")
	_ = cmd.MarkFlagRequired("intake-id")
	_ = cmd.MarkFlagRequired("consumer")
	return cmd
}
