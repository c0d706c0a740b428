// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI walks through one conversion:
//  1. [PlaylistListView] : Browse and select playlists on the source platform
//  2. [TrackListView] : Preview tracks before converting
//  3. [ConfirmView] : Confirm the conversion, or start a dry run
//  4. [ConvertView] : Monitor per-track matching as it happens
//  5. [ResultView] : Browse every match decision and the final rate
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the ConversionEngine, providing non-blocking status reporting.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, y/d/n, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
