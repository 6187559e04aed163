package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/mixtape/internal/repositories"
	"github.com/desertthunder/mixtape/internal/shared"
	"github.com/urfave/cli/v3"
)

// SelectSource persists the source provider.
func (r *Runner) SelectSource(ctx context.Context, cmd *cli.Command) error {
	svc, err := r.service(ctx, cmd.StringArg("provider"))
	if err != nil {
		return err
	}
	if err := r.selection.SetSource(ctx, svc.ID()); err != nil {
		return err
	}
	return r.writePlain("✓ Source: %s\n", svc.Name())
}

// SelectTarget persists the target provider.
func (r *Runner) SelectTarget(ctx context.Context, cmd *cli.Command) error {
	svc, err := r.service(ctx, cmd.StringArg("provider"))
	if err != nil {
		return err
	}
	if err := r.selection.SetTarget(ctx, svc.ID()); err != nil {
		return err
	}
	return r.writePlain("✓ Target: %s\n", svc.Name())
}

// SelectPlaylists replaces the selected source playlists.
func (r *Runner) SelectPlaylists(ctx context.Context, cmd *cli.Command) error {
	ids := cmd.Args().Slice()
	if len(ids) == 0 {
		return fmt.Errorf("%w: at least one playlist id", shared.ErrMissingArgument)
	}
	if err := r.open(ctx); err != nil {
		return err
	}
	if err := r.selection.SetPlaylists(ctx, ids); err != nil {
		return err
	}
	sel, err := r.selection.Load(ctx)
	if err != nil {
		return err
	}
	return r.writePlain("✓ %d playlist(s) selected\n", len(sel.PlaylistIDs))
}

// SelectShow prints the persisted selection.
func (r *Runner) SelectShow(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(ctx); err != nil {
		return err
	}
	sel, err := r.selection.Load(ctx)
	if err != nil {
		return err
	}
	return r.printSelection(sel)
}

// SelectClear forgets the persisted selection.
func (r *Runner) SelectClear(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(ctx); err != nil {
		return err
	}
	if err := r.selection.Clear(ctx); err != nil {
		return err
	}
	return r.writePlain("✓ Selection cleared\n")
}

func (r *Runner) printSelection(sel repositories.Selection) error {
	show := func(v string) string {
		if v == "" {
			return "(not set)"
		}
		return v
	}
	r.writePlain("Source:    %s\n", show(string(sel.Source)))
	r.writePlain("Target:    %s\n", show(string(sel.Target)))
	r.writePlain("Playlists: %d\n", len(sel.PlaylistIDs))
	for _, id := range sel.PlaylistIDs {
		r.writePlain("  - %s\n", id)
	}
	return nil
}
