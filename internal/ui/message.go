package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/crossfade/internal/models"
	"github.com/desertthunder/crossfade/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgPlaylistsFetched MsgKind = iota
	MsgTracksFetched
	MsgProgressUpdate
	MsgConversionComplete
)

type playlistsFetched struct {
	playlists []models.Playlist
	err       error
}

type tracksFetched struct {
	playlist *models.PlaylistExport
	err      error
}

type conversionComplete struct {
	result *tasks.ConversionResult
	err    error
}

// playlistsFetchedMsg is the constructor for [MsgPlaylistsFetched]
func playlistsFetchedMsg(playlists []models.Playlist, err error) Msg {
	return Msg{kind: MsgPlaylistsFetched, data: playlistsFetched{playlists, err}}
}

// tracksFetchedMsg is the constructor for [MsgTracksFetched]
func tracksFetchedMsg(playlist *models.PlaylistExport, err error) Msg {
	return Msg{kind: MsgTracksFetched, data: tracksFetched{playlist, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// conversionCompleteMsg is the constructor for [MsgConversionComplete]
func conversionCompleteMsg(result *tasks.ConversionResult, err error) Msg {
	return Msg{kind: MsgConversionComplete, data: conversionComplete{result, err}}
}
