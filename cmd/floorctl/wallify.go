package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newWallifyCmd(e *env) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "wallify [room-id]",
		Short: "Generate walls along a room outline",
		Long:  "Wallify buffers each edge of the room's outer ring into a wall owned by the room. A room that is already wallified is left alone.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ed, err := e.mount(cmd.Context(), dryRun)
			if err != nil {
				return err
			}
			walls, done, err := ed.Wallify(args[0])
			if err != nil {
				ed.Close(cmd.Context())
				return err
			}
			out := cmd.OutOrStdout()
			if !done {
				fmt.Fprintf(out, "room %s is already wallified\n", args[0])
			} else {
				fmt.Fprintf(out, "generated %d walls for room %s\n", len(walls), args[0])
			}
			return finish(cmd.Context(), out, ed, dryRun)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the writes instead of applying them")
	return cmd
}
