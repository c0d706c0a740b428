// package tasks implements playlist conversion operations between music services.
//
// The core abstraction is [ConversionEngine], which orchestrates conversions and comparisons.
// Operations emit progress updates via channels for non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/crossfade/internal/matching"
	"github.com/desertthunder/crossfade/internal/models"
	"github.com/desertthunder/crossfade/internal/services"
	"github.com/desertthunder/crossfade/internal/shared"
)

// ConversionRecorder persists conversion history. Implemented by repositories.ConversionRepository.
type ConversionRecorder interface {
	Create(c *models.Conversion) error
	Update(c *models.Conversion) error
	SaveMatches(conversionID string, matches []models.ConversionMatch) error
}

// DirectionFunc resolves the matching policy for a destination platform.
type DirectionFunc func(destination string) (matching.Direction, error)

// ConversionRequest names the playlist to convert.
type ConversionRequest struct {
	Source     string // platform holding the playlist, services.PlatformSpotify or services.PlatformYouTube
	PlaylistID string // playlist ID, or its exact name as a fallback
	Name       string // destination playlist name; defaults to the source name
	Public     bool
	DryRun     bool // match only, create nothing
}

// ConversionResult contains all data from a conversion run.
type ConversionResult struct {
	Conversion     *models.Conversion     // History entry, also populated without a recorder
	Direction      string                 // matching direction name
	SourcePlaylist *models.PlaylistExport // Source playlist with tracks
	DestPlaylist   *models.Playlist       // Created destination playlist, nil on dry runs and failures
	Records        []matching.MatchRecord // One per processed source track, in playlist order
	Found          int
	Total          int
	Interrupted    bool // the deadline or cancellation ended matching early
}

// MatchPercentage is the share of source tracks with an accepted match.
func (r *ConversionResult) MatchPercentage() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Found) / float64(r.Total) * 100
}

// Matches converts the records into their stored form, keyed to the history entry.
func (r *ConversionResult) Matches() []models.ConversionMatch {
	id := ""
	if r.Conversion != nil {
		id = r.Conversion.ID()
	}
	return conversionMatches(id, r.Records)
}

// ConversionOpts configures a [ConversionEngine].
type ConversionOpts struct {
	Config    shared.MatchingConfig
	Cache     matching.Cache     // shared across runs; defaults to a FIFO cache of Config.CacheSize
	Recorder  ConversionRecorder // optional
	Logger    *log.Logger
	Direction DirectionFunc // defaults to matching.DirectionFor with Config overrides
	Sleep     func(ctx context.Context, d time.Duration) error
}

// ConversionEngine converts playlists between the registered services.
type ConversionEngine struct {
	services  map[string]services.Service
	cfg       shared.MatchingConfig
	cache     matching.Cache
	recorder  ConversionRecorder
	logger    *log.Logger
	direction DirectionFunc
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewConversionEngine creates a ConversionEngine over the given services, keyed by platform.
func NewConversionEngine(opts ConversionOpts, svcs ...services.Service) *ConversionEngine {
	e := &ConversionEngine{
		services:  make(map[string]services.Service, len(svcs)),
		cfg:       opts.Config,
		cache:     opts.Cache,
		recorder:  opts.Recorder,
		logger:    opts.Logger,
		direction: opts.Direction,
		sleep:     opts.Sleep,
	}

	for _, svc := range svcs {
		if svc != nil {
			e.services[svc.Platform()] = svc
		}
	}

	if e.logger == nil {
		e.logger = shared.DiscardLogger()
	}
	if e.cache == nil {
		size := opts.Config.CacheSize
		if size <= 0 {
			size = 1000
		}
		e.cache = matching.NewFIFOCache(size)
	}
	if e.direction == nil {
		e.direction = func(dest string) (matching.Direction, error) {
			dir, err := matching.DirectionFor(dest)
			if err != nil {
				return dir, err
			}
			return dir.WithOverrides(e.cfg.For(dest)), nil
		}
	}
	return e
}

// Cache returns the match cache shared by all runs of this engine.
func (e *ConversionEngine) Cache() matching.Cache { return e.cache }

// Service returns the registered service for platform.
func (e *ConversionEngine) Service(platform string) (services.Service, error) {
	svc, ok := e.services[platform]
	if !ok {
		return nil, fmt.Errorf("%w: no %s service configured", shared.ErrServiceUnavailable, platform)
	}
	return svc, nil
}

// Target returns the platform a playlist from source converts to.
func Target(source string) (string, error) {
	switch source {
	case services.PlatformSpotify:
		return services.PlatformYouTube, nil
	case services.PlatformYouTube:
		return services.PlatformSpotify, nil
	default:
		return "", fmt.Errorf("%w: unknown platform %q", shared.ErrInvalidArgument, source)
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Matcher builds a matching engine for conversions into dest, wired to the shared cache.
func (e *ConversionEngine) Matcher(dest string, opts matching.EngineOpts) (*matching.Engine, error) {
	dir, err := e.direction(dest)
	if err != nil {
		return nil, err
	}

	opts.Cache = e.cache
	if opts.Logger == nil {
		opts.Logger = e.logger
	}
	if opts.Sleep == nil {
		opts.Sleep = e.sleep
	}
	return matching.NewEngine(dir, opts)
}

// Run converts one playlist: export, match every track, create the destination playlist and
// record the outcome.
//
// When the configured timeout or ctx ends matching early, the result still carries the records
// produced so far and the returned error wraps [shared.ErrTimeout]; no playlist is created.
func (e *ConversionEngine) Run(ctx context.Context, progress chan<- ProgressUpdate, req ConversionRequest) (*ConversionResult, error) {
	dest, err := Target(req.Source)
	if err != nil {
		return nil, err
	}
	srcSvc, err := e.Service(req.Source)
	if err != nil {
		return nil, err
	}
	destSvc, err := e.Service(dest)
	if err != nil {
		return nil, err
	}

	if timeout := e.cfg.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, timeout, fmt.Errorf("%w: conversion exceeded %s", shared.ErrTimeout, timeout))
		defer cancel()
	}

	result := &ConversionResult{}

	sendProgress(progress, fetchSourceUpdate(1, 1, srcSvc.Name()))
	srcPlaylist, err := e.export(ctx, srcSvc, req.PlaylistID)
	if err != nil {
		return nil, err
	}
	result.SourcePlaylist = srcPlaylist
	result.Total = len(srcPlaylist.Tracks)
	sendProgress(progress, foundPlaylistUpdate(srcPlaylist))

	engine, err := e.Matcher(dest, matching.EngineOpts{
		OnProgress: func(i, total int, rec matching.MatchRecord) {
			sendProgress(progress, matchedTrackUpdate(i, total, rec))
		},
	})
	if err != nil {
		return nil, err
	}
	result.Direction = engine.Direction().Name

	conv := models.NewConversion(result.Direction, req.Source, srcPlaylist.Playlist.ID, dest)
	conv.SetSourcePlaylistName(srcPlaylist.Playlist.Name)
	started := time.Now()
	conv.SetStartedAt(&started)
	conv.SetStatus(models.StatusRunning)
	result.Conversion = conv
	e.record(func() error { return e.recorder.Create(conv) })

	sendProgress(progress, searchStartUpdate(result.Total, destSvc.Name()))
	records, matchErr := engine.MatchAll(ctx, sourceTracks(req.Source, srcPlaylist.Tracks), destSvc)
	result.Records = records
	for _, rec := range records {
		if rec.Found {
			result.Found++
		}
	}
	conv.SetCounts(result.Total, result.Found)

	switch {
	case errors.Is(matchErr, shared.ErrTimeout):
		result.Interrupted = true
		return result, e.finish(progress, result, models.StatusPartial, matchErr)
	case matchErr != nil:
		return result, e.finish(progress, result, models.StatusFailed, matchErr)
	case req.DryRun:
		return result, e.finish(progress, result, models.StatusCompleted, nil)
	case result.Found == 0:
		return result, e.finish(progress, result, models.StatusFailed,
			fmt.Errorf("%w: no tracks were matched, not creating an empty playlist", shared.ErrTrackNotFound))
	}

	sendProgress(progress, createDestinationUpdate(destSvc.Name()))
	name := req.Name
	if name == "" {
		name = srcPlaylist.Playlist.Name
	}

	created, err := destSvc.ImportPlaylist(ctx, &models.PlaylistExport{
		Playlist: models.Playlist{
			Name:        name,
			Description: fmt.Sprintf("Converted from %s: %s", srcSvc.Name(), srcPlaylist.Playlist.Name),
			Public:      req.Public,
		},
		Tracks: matchedTracks(records),
	})
	if err != nil {
		return result, e.finish(progress, result, models.StatusPartial,
			fmt.Errorf("%w: failed to create playlist: %w", shared.ErrAPIRequest, err))
	}

	result.DestPlaylist = created
	conv.SetTargetPlaylistID(created.ID)
	sendProgress(progress, createPlaylistUpdate(created))
	return result, e.finish(progress, result, models.StatusCompleted, nil)
}

// finish stamps the conversion, persists it with its matches and passes runErr through.
func (e *ConversionEngine) finish(progress chan<- ProgressUpdate, result *ConversionResult, status string, runErr error) error {
	conv := result.Conversion
	now := time.Now()
	conv.SetStatus(status)
	conv.SetCompletedAt(&now)
	if runErr != nil {
		conv.SetErrorMessage(runErr.Error())
	}

	if conv.ID() != "" {
		e.record(func() error { return e.recorder.Update(conv) })
		e.record(func() error { return e.recorder.SaveMatches(conv.ID(), conversionMatches(conv.ID(), result.Records)) })
		sendProgress(progress, saveHistoryUpdate(conv))
	}

	e.logger.Info("conversion finished",
		"direction", result.Direction,
		"status", status,
		"found", result.Found,
		"total", result.Total,
		"rate", fmt.Sprintf("%.1f%%", result.MatchPercentage()),
		"cache", e.cache.Len())
	sendProgress(progress, doneUpdate(result))
	return runErr
}

// record runs a history write. History is best effort and never fails a conversion.
func (e *ConversionEngine) record(fn func() error) {
	if e.recorder == nil {
		return
	}
	if err := fn(); err != nil {
		e.logger.Warn("failed to record conversion history", "error", err)
	}
}

// export fetches a playlist by ID, falling back to an exact name lookup.
func (e *ConversionEngine) export(ctx context.Context, svc services.Service, idOrName string) (*models.PlaylistExport, error) {
	playlist, err := svc.ExportPlaylist(ctx, idOrName)
	if err == nil {
		return playlist, nil
	}
	e.logger.Debug("export by id failed, trying name", "playlist", idOrName, "error", err)

	playlists, listErr := svc.GetPlaylists(ctx)
	if listErr != nil {
		return nil, fmt.Errorf("%w: failed to get playlists: %w", shared.ErrAPIRequest, listErr)
	}

	for _, pl := range playlists {
		if pl.Name == idOrName {
			playlist, err := svc.ExportPlaylist(ctx, pl.ID)
			if err != nil {
				return nil, fmt.Errorf("%w: failed to export playlist: %w", shared.ErrAPIRequest, err)
			}
			return playlist, nil
		}
	}

	return nil, fmt.Errorf("%w: no playlist found with id or name '%s'", shared.ErrPlaylistNotFound, idOrName)
}

// sourceTracks converts exported tracks into matching input. YouTube exports carry the uploading
// channel in Artist.
func sourceTracks(platform string, tracks []models.Track) []matching.SourceTrack {
	out := make([]matching.SourceTrack, len(tracks))
	for i, t := range tracks {
		if platform == services.PlatformYouTube {
			out[i] = matching.FromVideo(t.ID, t.Title, t.Artist, t.DurationMS)
			out[i].Album = t.Album
			continue
		}
		out[i] = matching.SourceTrack{
			ID:         t.ID,
			Title:      t.Title,
			Artist:     t.Artist,
			Album:      t.Album,
			DurationMS: t.DurationMS,
		}
	}
	return out
}

func matchedTracks(records []matching.MatchRecord) []models.Track {
	tracks := make([]models.Track, 0, len(records))
	for _, rec := range records {
		if !rec.Found || rec.Best == nil {
			continue
		}
		tracks = append(tracks, models.Track{
			ID:         rec.Best.ID,
			Title:      rec.Best.Title,
			Artist:     rec.Best.PrimaryArtist(),
			Album:      rec.Best.Album,
			DurationMS: rec.Best.DurationMS,
			URI:        rec.Best.URI,
		})
	}
	return tracks
}

func conversionMatches(conversionID string, records []matching.MatchRecord) []models.ConversionMatch {
	matches := make([]models.ConversionMatch, len(records))
	for i, rec := range records {
		m := models.ConversionMatch{
			ConversionID: conversionID,
			Position:     i,
			SourceID:     rec.Source.ID,
			SourceTitle:  rec.Source.Title,
			SourceArtist: rec.Source.Artist,
			Found:        rec.Found,
			Score:        rec.Score,
			Query:        rec.Query,
			Cached:       rec.Cached,
		}
		if rec.Best != nil {
			m.CandidateID = rec.Best.ID
			m.CandidateTitle = rec.Best.Title
			m.CandidateArtist = rec.Best.PrimaryArtist()
		}
		matches[i] = m
	}
	return matches
}
