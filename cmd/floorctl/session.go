package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"indoormap/internal/editor"
	"indoormap/internal/editor/remote"
	"indoormap/internal/editor/surface"
	"indoormap/internal/mapdata/models"
	"indoormap/internal/palette"
)

var errDryRun = errors.New("dry run")

// dryRemote reads from the database and refuses every write, so the
// editor's unsynced list ends up holding exactly what would be written.
type dryRemote struct {
	remote.Remote
}

func (dryRemote) Insert(context.Context, string, models.Record) error         { return errDryRun }
func (dryRemote) Update(context.Context, string, string, models.Record) error { return errDryRun }
func (dryRemote) Delete(context.Context, string, string) error                { return errDryRun }
func (dryRemote) DeleteWhere(context.Context, string, string, string) error   { return errDryRun }

// mount opens a headless editor over the database.
func (e *env) mount(ctx context.Context, dryRun bool) (*editor.Editor, error) {
	cat, err := palette.Load(e.cfg.PalettePath)
	if err != nil {
		return nil, err
	}
	var r remote.Remote = remote.NewRepositoryRemote(e.repo)
	if dryRun {
		r = dryRemote{r}
	}
	ed := editor.New(editor.ConfigFrom(e.cfg.Editor), surface.NewCanvas(), r, cat, e.log)
	if err := ed.Mount(ctx); err != nil {
		ed.Close(ctx)
		return nil, fmt.Errorf("load map: %w", err)
	}
	return ed, nil
}

// finish waits for queued writes. A dry run prints them instead.
func finish(ctx context.Context, out io.Writer, ed *editor.Editor, dryRun bool) error {
	if err := ed.Close(ctx); err != nil {
		return err
	}
	unsynced := ed.Unsynced()
	if dryRun {
		fmt.Fprintf(out, "dry run: %d writes\n", len(unsynced))
		for _, w := range unsynced {
			fmt.Fprintf(out, "  %s\n", w)
		}
		return nil
	}
	if len(unsynced) > 0 {
		return fmt.Errorf("%d writes failed, first: %s: %s", len(unsynced), unsynced[0], unsynced[0].LastErr)
	}
	return nil
}
