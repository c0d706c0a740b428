package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/crossfade/internal/matching"
	"github.com/desertthunder/crossfade/internal/models"
	"github.com/desertthunder/crossfade/internal/services"
	"github.com/desertthunder/crossfade/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PlaylistListView ViewState = iota
	TrackListView
	ConfirmView
	ConvertView
	ResultView
)

// recentLimit caps the match lines shown while converting.
const recentLimit = 6

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	source       services.Service
	engine       *tasks.ConversionEngine
	width        int
	height       int
	loaded       bool
	playlistList list.Model
	trackList    list.Model
	resultList   list.Model
	selected     *models.PlaylistExport
	dryRun       bool
	progressChan chan tasks.ProgressUpdate
	done         chan Msg
	progress     tasks.ProgressUpdate
	found        int
	processed    int
	recent       []matching.MatchRecord
	spinner      spinner.Model
	result       *tasks.ConversionResult
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model converting playlists from source.
func NewModel(ctx context.Context, source services.Service, engine *tasks.ConversionEngine) *Model {
	return &Model{
		ctx:     ctx,
		view:    PlaylistListView,
		source:  source,
		engine:  engine,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.bar)),
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Run starts the TUI and blocks until the user quits.
func Run(ctx context.Context, source services.Service, engine *tasks.ConversionEngine) error {
	m := NewModel(ctx, source, engine)
	final, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil {
		return err
	}
	if fm, ok := final.(*Model); ok && fm.view != ResultView && fm.err != nil {
		return fm.err
	}
	return nil
}

// Init initializes the TUI by fetching playlists from the source platform.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.fetchPlaylists(), m.spinner.Tick)
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch m.view {
		case PlaylistListView:
			return m.handlePlaylistListKeys(msg)
		case TrackListView:
			return m.handleTrackListKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case ConvertView:
			if key.Matches(msg, m.keys.quit) {
				return m, tea.Quit
			}
			return m, nil
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgPlaylistsFetched:
		data := msg.data.(playlistsFetched)
		if data.err != nil {
			m.err = data.err
			return m, tea.Quit
		}
		items := make([]list.Item, len(data.playlists))
		for i, pl := range data.playlists {
			items[i] = playlistItem{playlist: pl}
		}
		m.playlistList = newList(items, fmt.Sprintf("%s Playlists", m.source.Name()))
		m.loaded = true
		m.resize()
		return m, nil

	case MsgTracksFetched:
		data := msg.data.(tracksFetched)
		if data.err != nil {
			m.err = data.err
			m.view = PlaylistListView
			return m, nil
		}
		m.err = nil
		m.selected = data.playlist
		items := make([]list.Item, len(data.playlist.Tracks))
		for i, track := range data.playlist.Tracks {
			items[i] = trackItem{track: track}
		}
		m.trackList = newList(items, fmt.Sprintf("Tracks in '%s'", data.playlist.Playlist.Name))
		m.resize()
		m.view = TrackListView
		return m, nil

	case MsgProgressUpdate:
		m.applyProgress(msg.data.(tasks.ProgressUpdate))
		return m, m.waitForProgress()

	case MsgConversionComplete:
		data := msg.data.(conversionComplete)
		m.result = data.result
		m.err = data.err
		m.progressChan = nil
		m.done = nil
		if m.result != nil {
			items := make([]list.Item, len(m.result.Records))
			for i, rec := range m.result.Records {
				items[i] = recordItem{record: rec}
			}
			m.resultList = newList(items, "Matches")
			m.resize()
		}
		m.view = ResultView
		return m, nil
	}
	return m, nil
}

func (m *Model) applyProgress(update tasks.ProgressUpdate) {
	m.progress = update
	rec, ok := update.Data.(matching.MatchRecord)
	if !ok {
		return
	}
	m.processed++
	if rec.Found {
		m.found++
	}
	m.recent = append(m.recent, rec)
	if len(m.recent) > recentLimit {
		m.recent = m.recent[len(m.recent)-recentLimit:]
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case PlaylistListView:
		return m.renderPlaylistList()
	case TrackListView:
		return m.renderTrackList()
	case ConfirmView:
		return m.renderConfirm()
	case ConvertView:
		return m.renderConvert()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handlePlaylistListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !m.loaded {
		if key.Matches(msg, m.keys.quit) {
			return m, tea.Quit
		}
		return m, nil
	}
	if m.playlistList.FilterState() != list.Filtering {
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.enter):
			if pl, ok := m.playlistList.SelectedItem().(playlistItem); ok {
				return m, m.fetchTracks(pl.playlist.ID)
			}
		}
	}

	var cmd tea.Cmd
	m.playlistList, cmd = m.playlistList.Update(msg)
	return m, cmd
}

func (m *Model) handleTrackListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.trackList.FilterState() != list.Filtering {
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.back):
			m.view = PlaylistListView
			return m, nil
		case key.Matches(msg, m.keys.enter):
			m.view = ConfirmView
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.trackList, cmd = m.trackList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.quit):
		m.view = TrackListView
		return m, nil
	case key.Matches(msg, m.keys.yes):
		return m, m.startConversion(false)
	case key.Matches(msg, m.keys.dryRun):
		return m, m.startConversion(true)
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.result != nil && m.resultList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.resultList, cmd = m.resultList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.restart):
		m.view = PlaylistListView
		m.selected = nil
		m.result = nil
		m.err = nil
		return m, nil
	}

	if m.result == nil {
		return m, nil
	}
	var cmd tea.Cmd
	m.resultList, cmd = m.resultList.Update(msg)
	return m, cmd
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case PlaylistListView:
		if m.loaded {
			m.playlistList, cmd = m.playlistList.Update(msg)
		}
	case TrackListView:
		m.trackList, cmd = m.trackList.Update(msg)
	case ResultView:
		if m.result != nil {
			m.resultList, cmd = m.resultList.Update(msg)
		}
	}
	return m, cmd
}

func (m *Model) resize() {
	if m.width == 0 || m.height == 0 {
		return
	}
	w, h := m.width-4, m.height-8
	if m.loaded {
		m.playlistList.SetSize(w, h)
	}
	if m.selected != nil {
		m.trackList.SetSize(w, h)
	}
	if m.result != nil {
		m.resultList.SetSize(w, h-4)
	}
}

func newList(items []list.Item, title string) list.Model {
	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = title
	l.SetShowHelp(false)
	return l
}

func (m *Model) fetchPlaylists() tea.Cmd {
	return func() tea.Msg {
		playlists, err := m.source.GetPlaylists(m.ctx)
		return playlistsFetchedMsg(playlists, err)
	}
}

func (m *Model) fetchTracks(playlistID string) tea.Cmd {
	return func() tea.Msg {
		playlist, err := m.source.ExportPlaylist(m.ctx, playlistID)
		return tracksFetchedMsg(playlist, err)
	}
}

// startConversion runs the engine in the background. The progress channel closes once the
// completion message is queued, so waitForProgress never races the result.
func (m *Model) startConversion(dryRun bool) tea.Cmd {
	m.view = ConvertView
	m.dryRun = dryRun
	m.found, m.processed = 0, 0
	m.recent = nil
	m.progress = tasks.ProgressUpdate{}
	m.progressChan = make(chan tasks.ProgressUpdate, 64)
	m.done = make(chan Msg, 1)

	req := tasks.ConversionRequest{
		Source:     m.source.Platform(),
		PlaylistID: m.selected.Playlist.ID,
		DryRun:     dryRun,
	}
	progress, done := m.progressChan, m.done

	go func() {
		result, err := m.engine.Run(m.ctx, progress, req)
		done <- conversionCompleteMsg(result, err)
		close(progress)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progress, done := m.progressChan, m.done
	return func() tea.Msg {
		if progress == nil {
			return nil
		}
		update, ok := <-progress
		if !ok {
			return <-done
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) renderPlaylistList() string {
	if !m.loaded {
		return fmt.Sprintf("%s Loading %s playlists...", m.spinner.View(), m.source.Name())
	}
	helpKeys := []key.Binding{m.keys.enter, m.keys.quit}
	return fmt.Sprintf("%s\n\n%s", m.playlistList.View(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderTrackList() string {
	convertKey := key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "convert"))
	helpKeys := []key.Binding{convertKey, m.keys.back, m.keys.quit}
	return fmt.Sprintf("%s\n\n%s", m.trackList.View(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderConfirm() string {
	target, _ := tasks.Target(m.source.Platform())
	title := styles.title.Render(fmt.Sprintf("Convert '%s' to %s?", m.selected.Playlist.Name, target))
	info := fmt.Sprintf("\nPlaylist: %s\nTracks: %d\n", m.selected.Playlist.Name, len(m.selected.Tracks))

	helpKeys := []key.Binding{m.keys.yes, m.keys.dryRun, m.keys.no}
	return fmt.Sprintf("%s\n%s\n%s", title, info, m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderConvert() string {
	heading := "Converting Playlist"
	if m.dryRun {
		heading = "Matching Playlist (dry run)"
	}
	title := styles.title.Render(heading)

	var phase string
	switch m.progress.Phase {
	case tasks.SearchTracks:
		phase = fmt.Sprintf("%s %s %d/%d", m.spinner.View(), progressBar(m.progress.Step, m.progress.Total, 30), m.progress.Step, m.progress.Total)
	default:
		phase = fmt.Sprintf("%s %s", m.spinner.View(), m.progress.Message)
	}

	var b strings.Builder
	for _, rec := range m.recent {
		b.WriteString("\n  ")
		b.WriteString(recordItem{record: rec}.Title())
		if rec.Found && rec.Best != nil {
			b.WriteString(styles.help.Render(" → " + rec.Best.Title))
		}
	}

	stats := styles.help.Render(fmt.Sprintf("found %d of %d processed", m.found, m.processed))
	return fmt.Sprintf("%s\n\n%s\n%s\n\n%s", title, phase, b.String(), stats)
}

func (m *Model) renderResult() string {
	helpKeys := []key.Binding{m.keys.restart, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	if m.result == nil {
		msg := "No result available"
		if m.err != nil {
			msg = fmt.Sprintf("Conversion failed: %v", m.err)
		}
		return fmt.Sprintf("%s\n\n%s", styles.err.Render(msg), helpView)
	}

	var title string
	switch {
	case m.err != nil:
		title = styles.warn.Render(fmt.Sprintf("! Conversion ended early: %v", m.err))
	case m.result.DestPlaylist != nil:
		title = styles.ok.Render(fmt.Sprintf("✓ Created '%s' (%s)", m.result.DestPlaylist.Name, m.result.DestPlaylist.ID))
	default:
		title = styles.ok.Render("✓ Matching complete")
	}

	info := fmt.Sprintf("Direction: %s\nMatched: %d/%d (%.1f%%)",
		m.result.Direction, m.result.Found, m.result.Total, m.result.MatchPercentage())

	return fmt.Sprintf("%s\n%s\n\n%s\n\n%s", title, info, m.resultList.View(), helpView)
}
