// YouTube Music API [Service] implementation
//
// Communicates with the ytmusicapi proxy server (default port 8080), which wraps the
// unofficial YouTube Music API and owns the browser credentials.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/desertthunder/crossfade/internal/matching"
	"github.com/desertthunder/crossfade/internal/models"
	"github.com/desertthunder/crossfade/internal/shared"
)

const (
	defaultYTBaseURL = "http://127.0.0.1:8080"
	youtubeWatchURL  = "https://music.youtube.com/watch?v="
)

// YouTubeImage represents an image/thumbnail from YouTube Music.
type YouTubeImage struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// YouTubeArtist represents an artist in YouTube Music responses.
type YouTubeArtist struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

type youtubeAlbum struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// YouTubeTrack represents a track/video in YouTube Music responses.
type YouTubeTrack struct {
	VideoID     string          `json:"videoId"`
	Title       string          `json:"title"`
	Artists     []YouTubeArtist `json:"artists"`
	Album       *youtubeAlbum   `json:"album"`
	Duration    string          `json:"duration"`
	DurationSec int             `json:"duration_seconds"`
	Thumbnails  []YouTubeImage  `json:"thumbnails"`
	ISRC        string          `json:"isrc,omitempty"`
	SetVideoID  string          `json:"setVideoId,omitempty"` // For playlist operations
}

// YouTubeSearchResult is one entry of GET /api/search.
type YouTubeSearchResult struct {
	YouTubeTrack
	ResultType string `json:"resultType"`
	Views      string `json:"views"`
}

// YouTubePlaylist represents a playlist from YouTube Music.
type YouTubePlaylist struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Privacy     string         `json:"privacy"`
	Thumbnails  []YouTubeImage `json:"thumbnails"`
	TrackCount  int            `json:"trackCount"`
	Tracks      []YouTubeTrack `json:"tracks,omitempty"`
}

// ProxyHealth is the proxy's /health payload.
type ProxyHealth struct {
	Status        string `json:"status"`
	Authenticated bool   `json:"authenticated"`
}

// YouTubeService implements the Service interface for YouTube Music via proxy.
type YouTubeService struct {
	baseURL    string
	authFile   string
	httpClient *http.Client
}

// NewYouTubeService creates a new YouTube Music service instance.
func NewYouTubeService(baseURL string) *YouTubeService {
	if baseURL == "" {
		baseURL = defaultYTBaseURL
	}

	return &YouTubeService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
	}
}

// Name returns the service name.
func (y *YouTubeService) Name() string {
	return "YouTube Music"
}

func (y *YouTubeService) Platform() string {
	return PlatformYouTube
}

// Authenticate stores the authentication file path for subsequent requests.
//
// Expects credentials["auth_file"] to contain the path to browser.json or oauth.json.
func (y *YouTubeService) Authenticate(ctx context.Context, credentials map[string]string) error {
	authFile, ok := credentials["auth_file"]
	if !ok || authFile == "" {
		return fmt.Errorf("%w: missing auth_file", shared.ErrMissingCredentials)
	}

	y.authFile = authFile
	return nil
}

func (y *YouTubeService) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, y.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if y.authFile != "" {
		req.Header.Set("X-Auth-File", y.authFile)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := y.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: youtube music proxy: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: youtube music", shared.ErrRateLimited)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Detail string `json:"detail"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Detail != "" {
			return fmt.Errorf("%w: youtube music status %d: %s", shared.ErrAPIRequest, resp.StatusCode, errResp.Detail)
		}
		return fmt.Errorf("%w: youtube music status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// Health checks that the proxy is up and reports whether it holds credentials.
func (y *YouTubeService) Health(ctx context.Context) (*ProxyHealth, error) {
	var health ProxyHealth
	if err := y.doRequest(ctx, http.MethodGet, "/health", nil, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// UploadAuth sends browser headers JSON to the proxy's /api/setup endpoint.
func (y *YouTubeService) UploadAuth(ctx context.Context, data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("%w: auth payload is not JSON", shared.ErrInvalidInput)
	}
	return y.doRequest(ctx, http.MethodPost, "/api/setup", data, nil)
}

// Search runs a video search through the proxy and converts the results to candidates.
//
// Calls GET /api/search?q={query}&filter=videos on the proxy.
func (y *YouTubeService) Search(ctx context.Context, query string) ([]matching.Candidate, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("filter", "videos")

	var results []YouTubeSearchResult
	if err := y.doRequest(ctx, http.MethodGet, "/api/search?"+params.Encode(), nil, &results); err != nil {
		return nil, err
	}

	candidates := make([]matching.Candidate, 0, len(results))
	for _, r := range results {
		if r.VideoID == "" {
			continue
		}
		candidates = append(candidates, r.candidate())
	}
	return candidates, nil
}

func (r YouTubeSearchResult) candidate() matching.Candidate {
	c := matching.Candidate{
		ID:         r.VideoID,
		Title:      r.Title,
		DurationMS: r.durationMS(),
		Popularity: ParseViewCount(r.Views),
		URL:        youtubeWatchURL + r.VideoID,
		Official:   r.ResultType == "song",
	}

	// ytmusicapi puts the uploading channel first for videos
	if len(r.Artists) > 0 {
		c.Channel = r.Artists[0].Name
	}
	if r.Album != nil {
		c.Album = r.Album.Name
	}
	return c
}

func (t YouTubeTrack) durationMS() int {
	if t.DurationSec > 0 {
		return t.DurationSec * 1000
	}
	if t.Duration == "" {
		return 0
	}
	ms, err := matching.ParseClockDuration(t.Duration)
	if err != nil {
		return 0
	}
	return ms
}

func (t YouTubeTrack) track() models.Track {
	track := models.Track{
		ID:         t.VideoID,
		Title:      t.Title,
		DurationMS: t.durationMS(),
		ISRC:       t.ISRC,
		URI:        youtubeWatchURL + t.VideoID,
	}

	if len(t.Artists) > 0 {
		track.Artist = t.Artists[0].Name
	}
	if t.Album != nil {
		track.Album = t.Album.Name
	}
	return track
}

// ParseViewCount reads view strings such as "1.2B", "345M views", "12K" or "1,234". Unparsable
// input counts as zero.
func ParseViewCount(s string) float64 {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.TrimSpace(strings.TrimSuffix(s, "VIEWS"))
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0
	}

	mult := 1.0
	switch s[len(s)-1] {
	case 'K':
		mult = 1e3
	case 'M':
		mult = 1e6
	case 'B':
		mult = 1e9
	}
	if mult > 1 {
		s = s[:len(s)-1]
	}

	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || n < 0 {
		return 0
	}
	return n * mult
}

// GetPlaylists retrieves all playlists for the authenticated user.
//
// Calls GET /api/library/playlists on the proxy.
func (y *YouTubeService) GetPlaylists(ctx context.Context) ([]models.Playlist, error) {
	var ytPlaylists []struct {
		PlaylistID  string         `json:"playlistId"`
		Title       string         `json:"title"`
		Description string         `json:"description"`
		Privacy     string         `json:"privacy"`
		Count       int            `json:"count"`
		Thumbnails  []YouTubeImage `json:"thumbnails"`
	}

	if err := y.doRequest(ctx, http.MethodGet, "/api/library/playlists", nil, &ytPlaylists); err != nil {
		return nil, err
	}

	playlists := make([]models.Playlist, len(ytPlaylists))
	for i, ytp := range ytPlaylists {
		playlists[i] = models.Playlist{
			ID:          ytp.PlaylistID,
			Name:        ytp.Title,
			Description: ytp.Description,
			TrackCount:  ytp.Count,
			Public:      ytp.Privacy == "PUBLIC",
		}
	}

	return playlists, nil
}

func (p YouTubePlaylist) playlist() models.Playlist {
	return models.Playlist{
		ID:          p.ID,
		Name:        p.Title,
		Description: p.Description,
		TrackCount:  p.TrackCount,
		Public:      p.Privacy == "PUBLIC",
	}
}

// GetPlaylist retrieves a specific playlist by ID without tracks.
//
// Calls GET /api/playlists/{id} on the proxy.
func (y *YouTubeService) GetPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	var ytPlaylist YouTubePlaylist
	if err := y.doRequest(ctx, http.MethodGet, "/api/playlists/"+url.PathEscape(playlistID), nil, &ytPlaylist); err != nil {
		return nil, err
	}

	p := ytPlaylist.playlist()
	return &p, nil
}

// ExportPlaylist exports a playlist with all its tracks.
//
// Calls GET /api/playlists/{id} on the proxy.
func (y *YouTubeService) ExportPlaylist(ctx context.Context, playlistID string) (*models.PlaylistExport, error) {
	var ytPlaylist YouTubePlaylist
	if err := y.doRequest(ctx, http.MethodGet, "/api/playlists/"+url.PathEscape(playlistID), nil, &ytPlaylist); err != nil {
		return nil, err
	}

	tracks := make([]models.Track, 0, len(ytPlaylist.Tracks))
	for _, ytt := range ytPlaylist.Tracks {
		if ytt.VideoID == "" {
			continue
		}
		tracks = append(tracks, ytt.track())
	}

	return &models.PlaylistExport{
		Playlist: ytPlaylist.playlist(),
		Tracks:   tracks,
	}, nil
}

// ImportPlaylist imports a playlist into YouTube Music.
//
// Creates the playlist via POST /api/playlists and adds tracks via POST /api/playlists/{id}/items.
func (y *YouTubeService) ImportPlaylist(ctx context.Context, playlist *models.PlaylistExport) (*models.Playlist, error) {
	if playlist == nil {
		return nil, fmt.Errorf("%w: nil playlist", shared.ErrInvalidArgument)
	}

	createReq := struct {
		Title         string `json:"title"`
		Description   string `json:"description"`
		PrivacyStatus string `json:"privacy_status"`
	}{
		Title:         playlist.Playlist.Name,
		Description:   playlist.Playlist.Description,
		PrivacyStatus: "PRIVATE",
	}
	if playlist.Playlist.Public {
		createReq.PrivacyStatus = "PUBLIC"
	}

	var createResp struct {
		PlaylistID string `json:"playlist_id"`
	}
	if err := y.doRequest(ctx, http.MethodPost, "/api/playlists", createReq, &createResp); err != nil {
		return nil, fmt.Errorf("failed to create playlist: %w", err)
	}

	videoIDs := make([]string, 0, len(playlist.Tracks))
	for _, track := range playlist.Tracks {
		if track.ID != "" {
			videoIDs = append(videoIDs, track.ID)
		}
	}

	if len(videoIDs) > 0 {
		addReq := struct {
			VideoIDs []string `json:"video_ids"`
		}{VideoIDs: videoIDs}

		endpoint := fmt.Sprintf("/api/playlists/%s/items", url.PathEscape(createResp.PlaylistID))
		if err := y.doRequest(ctx, http.MethodPost, endpoint, addReq, nil); err != nil {
			return nil, fmt.Errorf("failed to add tracks: %w", err)
		}
	}

	return &models.Playlist{
		ID:          createResp.PlaylistID,
		Name:        playlist.Playlist.Name,
		Description: playlist.Playlist.Description,
		TrackCount:  len(videoIDs),
		Public:      playlist.Playlist.Public,
	}, nil
}
