package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/crossfade/internal/matching"
	"github.com/desertthunder/crossfade/internal/models"
)

var (
	_ list.Item = playlistItem{}
	_ list.Item = trackItem{}
	_ list.Item = recordItem{}
)

// playlistItem wraps [models.Playlist] to implement [list.Item].
type playlistItem struct {
	playlist models.Playlist
}

func (i playlistItem) FilterValue() string { return i.playlist.Name }
func (i playlistItem) Title() string       { return i.playlist.Name }
func (i playlistItem) Description() string {
	desc := fmt.Sprintf("%d tracks", i.playlist.TrackCount)
	if i.playlist.Description != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.playlist.Description)
	}
	return desc
}

// trackItem wraps [models.Track] to implement [list.Item].
type trackItem struct {
	track models.Track
}

func (i trackItem) FilterValue() string { return i.track.Title }
func (i trackItem) Title() string       { return i.track.Title }
func (i trackItem) Description() string {
	desc := i.track.Artist
	if i.track.Album != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.track.Album)
	}
	if i.track.DurationMS > 0 {
		desc = fmt.Sprintf("%s • %s", desc, matching.FormatDuration(i.track.DurationMS))
	}
	return desc
}

// recordItem wraps [matching.MatchRecord] to implement [list.Item].
type recordItem struct {
	record matching.MatchRecord
}

func (i recordItem) FilterValue() string { return i.record.Source.Title }
func (i recordItem) Title() string {
	if i.record.Found {
		return styles.ok.Render("✓ ") + i.record.Source.Title
	}
	return styles.err.Render("✗ ") + i.record.Source.Title
}
func (i recordItem) Description() string {
	if !i.record.Found || i.record.Best == nil {
		return "no match"
	}
	desc := fmt.Sprintf("%s - %s (%.2f)", i.record.Best.PrimaryArtist(), i.record.Best.Title, i.record.Score)
	if i.record.Cached {
		desc += " • cached"
	}
	return desc
}
