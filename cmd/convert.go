package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/desertthunder/crossfade/internal/formatter"
	"github.com/desertthunder/crossfade/internal/services"
	"github.com/desertthunder/crossfade/internal/shared"
	"github.com/desertthunder/crossfade/internal/tasks"
	"github.com/urfave/cli/v3"
)

// ConvertRun matches every track of a playlist and creates it on the other platform.
func (r *Runner) ConvertRun(ctx context.Context, cmd *cli.Command) error {
	arg := cmd.StringArg("playlist")
	if arg == "" {
		return fmt.Errorf("%w: playlist URL, ID or name", shared.ErrMissingArgument)
	}

	ref, err := resolvePlaylist(arg, cmd.String("from"))
	if err != nil {
		return err
	}

	engine := r.engine
	if !cmd.Bool("no-history") {
		repo, closeDB, err := r.openHistory()
		if err != nil {
			r.logger.Warn("conversion history disabled", "error", err)
		} else {
			defer closeDB()
			engine = r.newEngine(repo)
		}
	}

	asJSON := cmd.Bool("json")
	req := tasks.ConversionRequest{
		Source:     ref.Platform,
		PlaylistID: ref.ID,
		Name:       cmd.String("name"),
		Public:     cmd.Bool("public"),
		DryRun:     cmd.Bool("dry-run"),
	}

	r.logger.Info("starting conversion", "source", ref.Platform, "playlist", ref.ID, "dry_run", req.DryRun)

	var progressCh chan tasks.ProgressUpdate
	done := make(chan struct{})
	if asJSON {
		close(done)
	} else {
		progressCh = make(chan tasks.ProgressUpdate, 64)
		go func() {
			defer close(done)
			for update := range progressCh {
				r.printProgress(update)
			}
		}()
	}

	result, runErr := engine.Run(ctx, progressCh, req)
	if progressCh != nil {
		close(progressCh)
	}
	<-done

	if result == nil || result.Conversion == nil {
		return runErr
	}

	report := formatter.NewReport(result)
	if path := cmd.String("report"); path != "" {
		written, err := formatter.WriteReport(report, path)
		if err != nil {
			return errors.Join(runErr, err)
		}
		r.logger.Info("report written", "path", written)
	}

	if asJSON {
		data, err := formatter.ReportToJSON(report)
		if err != nil {
			return errors.Join(runErr, err)
		}
		if err := r.writePlain("%s\n", data); err != nil {
			return errors.Join(runErr, err)
		}
		return runErr
	}

	r.printSummary(result, req.DryRun)
	return runErr
}

// ConvertDiff compares two playlists and shows what the destination is missing.
func (r *Runner) ConvertDiff(ctx context.Context, cmd *cli.Command) error {
	srcRef, err := resolvePlaylist(cmd.String("source"), cmd.String("source-service"))
	if err != nil {
		return err
	}
	destRef, err := resolvePlaylist(cmd.String("dest"), cmd.String("dest-service"))
	if err != nil {
		return err
	}

	sourceSvc, err := r.service(srcRef.Platform)
	if err != nil {
		return err
	}
	destSvc, err := r.service(destRef.Platform)
	if err != nil {
		return err
	}

	r.logger.Info("diff requested", "source", srcRef.ID, "dest", destRef.ID)
	r.writePlain("Comparing playlists...\n\n")

	progressCh := make(chan tasks.ProgressUpdate, 10)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			r.writePlain("📥 %s\n", update.Message)
		}
	}()

	result, err := r.engine.Diff(ctx, progressCh, sourceSvc, destSvc, srcRef.ID, destRef.ID)
	close(progressCh)
	<-done

	if err != nil {
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader("Comparison Results")
	_, err = r.output.Write(formatter.ComparisonToText(result))
	return err
}

// resolvePlaylist accepts a share URL, or an ID or name on the given platform.
func resolvePlaylist(arg, platform string) (services.PlaylistRef, error) {
	ref, err := services.ParsePlaylistURL(arg)
	if err == nil {
		return ref, nil
	}
	if strings.Contains(arg, "://") {
		return ref, err
	}

	switch platform {
	case services.PlatformSpotify, services.PlatformYouTube:
		return services.PlaylistRef{Platform: platform, ID: arg}, nil
	case "ytmusic":
		return services.PlaylistRef{Platform: services.PlatformYouTube, ID: arg}, nil
	default:
		return services.PlaylistRef{}, fmt.Errorf("%w: unknown platform %q (must be 'spotify' or 'youtube')", shared.ErrInvalidArgument, platform)
	}
}

func (r *Runner) printProgress(update tasks.ProgressUpdate) {
	switch update.Phase {
	case tasks.FetchSource:
		r.writePlain("📥 %s\n", update.Message)
	case tasks.SearchTracks:
		if update.Step == 0 {
			r.writePlain("\n🔍 %s\n", update.Message)
		} else {
			r.writePlain("   %s\n", update.Message)
		}
	case tasks.CreatePlaylist:
		r.writePlain("\n📝 %s\n", update.Message)
	case tasks.SaveHistory:
		r.writePlain("💾 %s\n", update.Message)
	}
}

func (r *Runner) printSummary(result *tasks.ConversionResult, dryRun bool) {
	title := "Conversion Complete!"
	switch {
	case result.Interrupted:
		title = "Conversion Interrupted"
	case dryRun:
		title = "Dry Run Complete"
	case result.DestPlaylist == nil:
		title = "Conversion Failed"
	}

	r.writePlain("\n")
	r.writePlainHeader(title)
	r.writePlain("Source: %s (%d tracks)\n", result.SourcePlaylist.Playlist.Name, result.Total)
	r.writePlain("Direction: %s\n", result.Direction)
	if result.DestPlaylist != nil {
		r.writePlain("Destination: %s (ID: %s)\n", result.DestPlaylist.Name, result.DestPlaylist.ID)
	}
	r.writePlain("Matched: %d/%d (%.1f%%)\n", result.Found, result.Total, result.MatchPercentage())
	if seq := result.Conversion.Sequence(); seq > 0 {
		r.writePlain("History: #%d (crossfade history show %d)\n", seq, seq)
	}

	if missed := result.Total - result.Found; missed > 0 {
		r.writePlain("\nNo match for %d tracks:\n", missed)
		for _, rec := range result.Records {
			if rec.Found {
				continue
			}
			if rec.Source.Artist != "" {
				r.writePlain("  - %s - %s\n", rec.Source.Artist, rec.Source.Title)
			} else {
				r.writePlain("  - %s\n", rec.Source.Title)
			}
		}
	}
}
