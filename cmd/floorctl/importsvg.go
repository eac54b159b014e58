package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"indoormap/internal/converter/mapper"
	"indoormap/internal/converter/models"
	"indoormap/internal/palette"
)

func newImportSVGCmd(e *env) *cobra.Command {
	var (
		ref    models.Georef
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "import-svg [file]",
		Short: "Convert an SVG floor plan and add its features to the map",
		Long: `import-svg reads shapes whose ids start with Wall_, Room_ (or end in _room),
Furniture_ or Item_, places them on the map with the given origin and scale,
and inserts them with fresh ids.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			cat, err := palette.Load(e.cfg.PalettePath)
			if err != nil {
				return err
			}
			conv, err := mapper.New(mapper.Options{
				Georef:     ref,
				WallWidth:  e.cfg.Editor.WallWidth,
				WallHeight: e.cfg.Editor.WallHeight,
				Palette:    cat,
			}, e.log)
			if err != nil {
				return err
			}
			doc, report, err := conv.Convert(f)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, s := range report.Skipped {
				fmt.Fprintf(out, "skipped %s: %s\n", s.ID, s.Reason)
			}

			ed, err := e.mount(cmd.Context(), dryRun)
			if err != nil {
				return err
			}
			res := ed.Import(doc)
			fmt.Fprintf(out, "imported walls: %d, rooms: %d, furniture: %d\n", res.Walls, res.Rooms, res.Furniture)
			return finish(cmd.Context(), out, ed, dryRun)
		},
	}
	cmd.Flags().Float64Var(&ref.Origin[0], "origin-lon", 0, "longitude of the drawing's (0,0)")
	cmd.Flags().Float64Var(&ref.Origin[1], "origin-lat", 0, "latitude of the drawing's (0,0)")
	cmd.Flags().Float64Var(&ref.MetersPerUnit, "meters-per-unit", 0.01, "meters per SVG unit")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the writes instead of applying them")
	cmd.MarkFlagRequired("origin-lon")
	cmd.MarkFlagRequired("origin-lat")
	return cmd
}
