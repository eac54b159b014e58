package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newExportCmd(e *env) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the floor plan as walls/rooms/furniture feature collections",
		Long:  "Export renders the stored map the way the editor does: features with invalid geometry are left out.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ed, err := e.mount(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer ed.Close(cmd.Context())

			data, err := ed.Export().Marshal()
			if err != nil {
				return err
			}
			if out == "" {
				_, err = cmd.OutOrStdout().Write(append(data, '\n'))
				return err
			}
			return os.WriteFile(out, data, 0o644)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}
