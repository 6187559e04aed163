package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/mixtape/internal/shared"
	"github.com/urfave/cli/v3"
)

// PlaylistsList prints the playlists of a provider.
func (r *Runner) PlaylistsList(ctx context.Context, cmd *cli.Command) error {
	svc, err := r.service(ctx, cmd.StringArg("provider"))
	if err != nil {
		return err
	}

	playlists, err := svc.ListPlaylists(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	if limit := cmd.Int("limit"); limit > 0 && limit < len(playlists) {
		playlists = playlists[:limit]
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlists, true)
	}

	r.writePlainHeader(fmt.Sprintf("%s playlists (%d)", svc.Name(), len(playlists)))
	for i, pl := range playlists {
		r.writePlain("%3d. %s", i+1, pl.Name)
		if pl.TrackCount > 0 {
			r.writePlain(" (%d tracks)", pl.TrackCount)
		}
		r.writePlain("\n     id: %s\n", pl.ID)
	}
	return nil
}

// PlaylistsTracks prints every track of one playlist.
func (r *Runner) PlaylistsTracks(ctx context.Context, cmd *cli.Command) error {
	svc, err := r.service(ctx, cmd.StringArg("provider"))
	if err != nil {
		return err
	}
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}

	tracks, err := svc.ListPlaylistTracks(ctx, id)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(tracks, true)
	}

	r.writePlainHeader(fmt.Sprintf("%s playlist %s (%d tracks)", svc.Name(), id, len(tracks)))
	for i, tr := range tracks {
		r.writePlain("%3d. %s\n", i+1, tr)
	}
	return nil
}
