package tasks

import (
	"fmt"

	"github.com/desertthunder/crossfade/internal/matching"
	"github.com/desertthunder/crossfade/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchSource Phase = iota
	FetchDest
	Compare
	SearchTracks
	CreatePlaylist
	SaveHistory
	Done
)

func (p Phase) String() string {
	switch p {
	case FetchSource:
		return "fetch_source"
	case FetchDest:
		return "fetch_dest"
	case Compare:
		return "compare"
	case SearchTracks:
		return "search_tracks"
	case CreatePlaylist:
		return "create_playlist"
	case SaveHistory:
		return "save_history"
	case Done:
		return "done"
	default:
		return ""
	}
}

func fetchSourceUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSource,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Fetching source playlist (%s)...", name),
	}
}

func fetchDestUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchDest,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Fetching destination playlist (%s)...", name),
	}
}

func compareUpdate(step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Compare,
		Step:    step,
		Total:   total,
		Message: "Comparing tracks...",
	}
}

func foundPlaylistUpdate(export *models.PlaylistExport) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSource,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found playlist: %s (%d tracks)", export.Playlist.Name, len(export.Tracks)),
		Data:    export,
	}
}

func searchStartUpdate(total int, dest string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SearchTracks,
		Step:    0,
		Total:   total,
		Message: fmt.Sprintf("Searching for tracks on %s...", dest),
	}
}

// matchedTrackUpdate carries the [matching.MatchRecord] for index i as Data.
func matchedTrackUpdate(i, total int, rec matching.MatchRecord) ProgressUpdate {
	mark := "✗"
	if rec.Found {
		mark = "✓"
	}

	label := rec.Source.Title
	if rec.Source.Artist != "" {
		label = rec.Source.Artist + " - " + rec.Source.Title
	}

	return ProgressUpdate{
		Phase:   SearchTracks,
		Step:    i + 1,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s %s", i+1, total, mark, label),
		Data:    rec,
	}
}

func createDestinationUpdate(dest string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    0,
		Total:   1,
		Message: fmt.Sprintf("Creating playlist on %s...", dest),
	}
}

func createPlaylistUpdate(pl *models.Playlist) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Playlist created: %s (ID: %s)", pl.Name, pl.ID),
		Data:    pl,
	}
}

func saveHistoryUpdate(c *models.Conversion) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SaveHistory,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Saved conversion #%d (%s)", c.Sequence(), c.Status()),
		Data:    c,
	}
}

func doneUpdate(result *ConversionResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Done,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Matched %d/%d tracks (%.1f%%)", result.Found, result.Total, result.MatchPercentage()),
		Data:    result,
	}
}
