package main

import (
	"github.com/spf13/cobra"

	"jobspine/internal/fileutil"
)

// writeJSON encodes v the same way the store writes its JSON files.
func writeJSON(cmd *cobra.Command, v any) error {
	data, err := fileutil.MarshalJSON(v)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
