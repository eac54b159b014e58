package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"indoormap/internal/mapdata/models"
)

func newBuildingsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "buildings",
		Short: "List buildings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			recs, err := e.repo.List(cmd.Context(), models.TableBuildings)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tADDRESS\tLAT\tLON")
			for _, rec := range recs {
				b := models.BuildingFromRecord(rec)
				fmt.Fprintf(tw, "%s\t%s\t%s\t%.6f\t%.6f\n", b.ID, b.Name, b.Address, b.Lat, b.Lon)
			}
			return tw.Flush()
		},
	}
}
