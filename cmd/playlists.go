package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// Playlists lists the authenticated user's playlists on one platform.
func (r *Runner) Playlists(ctx context.Context, cmd *cli.Command) error {
	svc, err := r.service(cmd.String("service"))
	if err != nil {
		return err
	}

	playlists, err := svc.GetPlaylists(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch playlists: %w", err)
	}

	if limit := cmd.Int("limit"); limit > 0 && len(playlists) > limit {
		playlists = playlists[:limit]
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlists, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("%s Playlists (%d)", svc.Name(), len(playlists)))
	for i, p := range playlists {
		r.writePlain("%d. %s (%d tracks)\n", i+1, p.Name, p.TrackCount)
		r.writePlain("   ID: %s\n", p.ID)
		if p.Description != "" {
			r.writePlain("   %s\n", p.Description)
		}
	}
	return nil
}
