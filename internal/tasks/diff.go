package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/crossfade/internal/matching"
	"github.com/desertthunder/crossfade/internal/models"
	"github.com/desertthunder/crossfade/internal/services"
	"github.com/desertthunder/crossfade/internal/shared"
	"github.com/xrash/smetrics"
	"golang.org/x/sync/errgroup"
)

// DiffThreshold is the minimum pair score for two tracks to count as the same song.
const DiffThreshold = 0.75

// TrackPair is a source track and the destination track it was paired with.
type TrackPair struct {
	Source models.Track
	Dest   models.Track
	Score  float64 // 1 for ISRC matches
}

// ComparisonResult contains track comparison details between two playlists.
type ComparisonResult struct {
	SourcePlaylist *models.PlaylistExport // Source playlist
	DestPlaylist   *models.PlaylistExport // Destination playlist
	Matched        []TrackPair            // Tracks found in both
	MissingInDest  []models.Track         // Tracks in source but not in dest
	ExtraInDest    []models.Track         // Tracks in dest but not in source
}

// MatchedCount is the number of paired tracks.
func (c *ComparisonResult) MatchedCount() int { return len(c.Matched) }

// Diff compares two playlists across services.
//
// Both playlists are exported concurrently. Tracks pair by ISRC first, then greedily by title and
// artist similarity; each destination track pairs at most once.
func (e *ConversionEngine) Diff(ctx context.Context, progress chan<- ProgressUpdate, sourceSvc, destSvc services.Service, sourceID, destID string) (*ComparisonResult, error) {
	if sourceSvc == nil || destSvc == nil {
		return nil, fmt.Errorf("%w: service not initialized", shared.ErrServiceUnavailable)
	}

	var sourceExport, destExport *models.PlaylistExport
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sendProgress(progress, fetchSourceUpdate(1, 2, sourceSvc.Name()))
		export, err := sourceSvc.ExportPlaylist(gctx, sourceID)
		if err != nil {
			return fmt.Errorf("%w: failed to export source playlist: %w", shared.ErrPlaylistNotFound, err)
		}
		sourceExport = export
		return nil
	})
	g.Go(func() error {
		sendProgress(progress, fetchDestUpdate(2, 2, destSvc.Name()))
		export, err := destSvc.ExportPlaylist(gctx, destID)
		if err != nil {
			return fmt.Errorf("%w: failed to export destination playlist: %w", shared.ErrPlaylistNotFound, err)
		}
		destExport = export
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sendProgress(progress, compareUpdate(1, 1))
	result := ComparePlaylists(sourceSvc.Platform(), sourceExport, destSvc.Platform(), destExport)

	e.logger.Info("diff complete",
		"matched", result.MatchedCount(),
		"missing", len(result.MissingInDest),
		"extra", len(result.ExtraInDest))
	return result, nil
}

// diffTrack is a track reduced to the fields used for pairing.
type diffTrack struct {
	track  models.Track
	title  string
	artist string
	full   string
}

func newDiffTrack(platform string, t models.Track) diffTrack {
	src := matching.SourceTrack{Title: t.Title, Artist: t.Artist}
	if platform == services.PlatformYouTube {
		src = matching.FromVideo(t.ID, t.Title, t.Artist, t.DurationMS)
	}

	info := matching.Analyze(src)
	title := info.MainTitle
	if title == "" {
		title = t.Title
	}
	return diffTrack{
		track:  t,
		title:  title,
		artist: info.Artist,
		full:   strings.ToLower(strings.TrimSpace(info.Artist + " " + title)),
	}
}

// pairScore weighs title over artist. Tracks without a recoverable artist compare on title only.
func pairScore(a, b diffTrack) float64 {
	title := matching.Similarity(a.title, b.title)
	if a.artist == "" || b.artist == "" {
		return title
	}
	return 0.7*title + 0.3*matching.Similarity(a.artist, b.artist)
}

// ComparePlaylists pairs the tracks of two exported playlists.
func ComparePlaylists(sourcePlatform string, source *models.PlaylistExport, destPlatform string, dest *models.PlaylistExport) *ComparisonResult {
	result := &ComparisonResult{SourcePlaylist: source, DestPlaylist: dest}

	dests := make([]diffTrack, len(dest.Tracks))
	byISRC := make(map[string]int)
	for i, t := range dest.Tracks {
		dests[i] = newDiffTrack(destPlatform, t)
		if t.ISRC != "" {
			if _, seen := byISRC[t.ISRC]; !seen {
				byISRC[t.ISRC] = i
			}
		}
	}
	used := make([]bool, len(dests))

	for _, t := range source.Tracks {
		if i, ok := byISRC[t.ISRC]; ok && t.ISRC != "" && !used[i] {
			used[i] = true
			result.Matched = append(result.Matched, TrackPair{Source: t, Dest: dests[i].track, Score: 1})
			continue
		}

		src := newDiffTrack(sourcePlatform, t)
		best, bestScore, bestTie := -1, 0.0, 0.0
		for i, d := range dests {
			if used[i] {
				continue
			}

			score := pairScore(src, d)
			if score < DiffThreshold || score < bestScore {
				continue
			}

			// equal scores fall back to Jaro-Winkler over the combined artist and title
			tie := smetrics.JaroWinkler(src.full, d.full, 0.7, 4)
			if score > bestScore || tie > bestTie {
				best, bestScore, bestTie = i, score, tie
			}
		}

		if best < 0 {
			result.MissingInDest = append(result.MissingInDest, t)
			continue
		}
		used[best] = true
		result.Matched = append(result.Matched, TrackPair{Source: t, Dest: dests[best].track, Score: bestScore})
	}

	for i, d := range dests {
		if !used[i] {
			result.ExtraInDest = append(result.ExtraInDest, d.track)
		}
	}
	return result
}
