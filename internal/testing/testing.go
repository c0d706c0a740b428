// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/crossfade/internal/matching"
	"github.com/desertthunder/crossfade/internal/models"
	"github.com/desertthunder/crossfade/internal/shared"
)

// MockService is a test double for services.Service.
//
// Playlists are served from Exports. Search answers from SearchFunc when set, otherwise from
// Results keyed by the exact query. Every query and import is recorded.
type MockService struct {
	NameValue     string
	PlatformValue string

	Exports    map[string]*models.PlaylistExport
	Results    map[string][]matching.Candidate
	SearchFunc func(ctx context.Context, query string) ([]matching.Candidate, error)

	AuthErr   error
	ExportErr error
	ImportErr error
	SearchErr error

	mu       sync.Mutex
	queries  []string
	imported []*models.PlaylistExport
}

func (m *MockService) Authenticate(ctx context.Context, credentials map[string]string) error {
	return m.AuthErr
}

func (m *MockService) GetPlaylists(ctx context.Context) ([]models.Playlist, error) {
	playlists := make([]models.Playlist, 0, len(m.Exports))
	for _, export := range m.Exports {
		playlists = append(playlists, export.Playlist)
	}
	return playlists, nil
}

func (m *MockService) GetPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	if export, ok := m.Exports[playlistID]; ok {
		return &export.Playlist, nil
	}
	return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
}

func (m *MockService) ExportPlaylist(ctx context.Context, playlistID string) (*models.PlaylistExport, error) {
	if m.ExportErr != nil {
		return nil, m.ExportErr
	}
	if export, ok := m.Exports[playlistID]; ok {
		return export, nil
	}
	return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
}

func (m *MockService) ImportPlaylist(ctx context.Context, playlist *models.PlaylistExport) (*models.Playlist, error) {
	if m.ImportErr != nil {
		return nil, m.ImportErr
	}

	m.mu.Lock()
	m.imported = append(m.imported, playlist)
	n := len(m.imported)
	m.mu.Unlock()

	created := playlist.Playlist
	created.ID = fmt.Sprintf("created-%d", n)
	created.TrackCount = len(playlist.Tracks)
	return &created, nil
}

func (m *MockService) Search(ctx context.Context, query string) ([]matching.Candidate, error) {
	m.mu.Lock()
	m.queries = append(m.queries, query)
	m.mu.Unlock()

	if m.SearchErr != nil {
		return nil, m.SearchErr
	}
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, query)
	}
	return m.Results[query], nil
}

func (m *MockService) Name() string {
	if m.NameValue == "" {
		return "mock"
	}
	return m.NameValue
}

func (m *MockService) Platform() string { return m.PlatformValue }

// Queries returns every search query received so far.
func (m *MockService) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queries...)
}

// Imported returns every playlist passed to ImportPlaylist.
func (m *MockService) Imported() []*models.PlaylistExport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.PlaylistExport(nil), m.imported...)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
