// Spotify API implementation of [Service]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/desertthunder/crossfade/internal/matching"
	"github.com/desertthunder/crossfade/internal/models"
	"github.com/desertthunder/crossfade/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	defaultRedirectURI = "http://127.0.0.1:8888/callback"

	spotifySearchLimit = 15
	spotifyAddBatch    = 100
	spotifyPageSize    = 100
)

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Country     string `json:"country"`
	Product     string `json:"product"` // premium, free, etc.
}

type externalIDs struct {
	ISRC string `json:"isrc"`
}

type externalURLs struct {
	Spotify string `json:"spotify"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Artists      []SpotifyArtist `json:"artists"`
	Album        SpotifyAlbum    `json:"album"`
	DurationMS   int             `json:"duration_ms"`
	Explicit     bool            `json:"explicit"`
	ExternalIDs  externalIDs     `json:"external_ids"`
	ExternalURLs externalURLs    `json:"external_urls"`
	Popularity   int             `json:"popularity"`
	URI          string          `json:"uri"`
	IsLocal      bool            `json:"is_local"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ReleaseDate string `json:"release_date"`
	URI         string `json:"uri"`
}

type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type playlistTracks struct {
	Total int `json:"total"`
}

// SpotifyPlaylist represents a Spotify playlist.
type SpotifyPlaylist struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Owner       Owner          `json:"owner"`
	Public      bool           `json:"public"`
	Tracks      playlistTracks `json:"tracks"`
	URI         string         `json:"uri"`
}

// SpotifyPlaylistTrack represents a track within a playlist context. Track is nil for removed items.
type SpotifyPlaylistTrack struct {
	AddedAt string        `json:"added_at"`
	Track   *SpotifyTrack `json:"track"`
}

type page[T any] struct {
	Items  []T     `json:"items"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
	Next   *string `json:"next"`
}

type searchResponse struct {
	Tracks page[SpotifyTrack] `json:"tracks"`
}

// SpotifyService implements the Service interface for Spotify API interactions.
// Uses [oauth2] for authentication and provides methods for playlist and track operations.
//
// The credential may be replaced while a conversion is running; every request reads it under a lock.
type SpotifyService struct {
	config  *oauth2.Config
	baseURL string

	mu             sync.RWMutex
	token          *oauth2.Token
	httpClient     *http.Client
	onTokenRefresh func(*oauth2.Token)
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = defaultRedirectURI
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"user-read-private",
			"user-read-email",
			"playlist-read-private",
			"playlist-read-collaborative",
			"playlist-modify-public",
			"playlist-modify-private",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	return &SpotifyService{
		config:     config,
		baseURL:    spotifyBaseURL,
		httpClient: http.DefaultClient,
	}, nil
}

// Authenticate performs OAuth2 authentication with Spotify. Expects either an "access_token"
// (optionally with "refresh_token") or an "auth_code" in credentials.
func (s *SpotifyService) Authenticate(ctx context.Context, credentials map[string]string) error {
	if accessToken := credentials["access_token"]; accessToken != "" {
		return s.OAuthenticate(ctx, &oauth2.Token{
			AccessToken:  accessToken,
			RefreshToken: credentials["refresh_token"],
		})
	}

	if authCode := credentials["auth_code"]; authCode != "" {
		token, err := s.config.Exchange(ctx, authCode)
		if err != nil {
			return fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
		}
		return s.OAuthenticate(ctx, token)
	}

	return fmt.Errorf("%w: missing access_token or auth_code", shared.ErrMissingCredentials)
}

// OAuthenticate installs token. Refreshed tokens are reported to the callback set with
// [SpotifyService.SetTokenRefreshCallback].
func (s *SpotifyService) OAuthenticate(ctx context.Context, token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("%w: empty token", shared.ErrMissingCredentials)
	}

	// the token source outlives the command context
	ctx = context.WithoutCancel(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token
	source := NotifyingTokenSource(s.config.TokenSource(ctx, token), s.notifyRefresh)
	s.httpClient = oauth2.NewClient(ctx, source)
	return nil
}

// SetToken swaps the credential. Safe to call while searches are in flight.
func (s *SpotifyService) SetToken(ctx context.Context, token *oauth2.Token) error {
	return s.OAuthenticate(ctx, token)
}

// SetTokenRefreshCallback registers fn to receive every new token, e.g. to persist it.
func (s *SpotifyService) SetTokenRefreshCallback(fn func(*oauth2.Token)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTokenRefresh = fn
}

func (s *SpotifyService) notifyRefresh(token *oauth2.Token) {
	s.mu.RLock()
	fn := s.onTokenRefresh
	s.mu.RUnlock()

	if fn != nil {
		fn(token)
	}
}

// Ready reports whether a token was installed.
func (s *SpotifyService) Ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.token == nil {
		return fmt.Errorf("%w: spotify", shared.ErrNotAuthenticated)
	}
	return nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

func (s *SpotifyService) Platform() string {
	return PlatformSpotify
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// GetOAuthConfig returns the OAuth2 configuration used for the callback exchange.
func (s *SpotifyService) GetOAuthConfig() *oauth2.Config {
	return s.config
}

// doRequest performs an authenticated HTTP request to the Spotify API.
//
// endpoint is either a path relative to the API root or an absolute "next" URL from a page.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	s.mu.RLock()
	client, token := s.httpClient, s.token
	s.mu.RUnlock()

	if token == nil {
		return fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}

	apiURL := endpoint
	if !strings.HasPrefix(endpoint, "http") {
		apiURL = s.baseURL + endpoint
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return fmt.Errorf("%w: %w", shared.ErrTokenExpired, err)
		}
		return fmt.Errorf("%w: request failed: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if err := spotifyStatusError(resp); err != nil {
		return err
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

func spotifyStatusError(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: spotify (retry after %q)", shared.ErrRateLimited, resp.Header.Get("Retry-After"))
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: spotify status 401", shared.ErrTokenExpired)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: spotify status 404", shared.ErrPlaylistNotFound)
	}

	var errResp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error.Message != "" {
		return fmt.Errorf("%w: spotify status %d: %s", shared.ErrAPIRequest, resp.StatusCode, errResp.Error.Message)
	}
	return fmt.Errorf("%w: spotify status %d", shared.ErrAPIRequest, resp.StatusCode)
}

// Search runs a track search and converts the results to candidates.
func (s *SpotifyService) Search(ctx context.Context, query string) ([]matching.Candidate, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "track")
	params.Set("limit", fmt.Sprint(spotifySearchLimit))
	params.Set("market", "from_token")

	var response searchResponse
	if err := s.doRequest(ctx, http.MethodGet, "/search?"+params.Encode(), nil, &response); err != nil {
		return nil, err
	}

	candidates := make([]matching.Candidate, 0, len(response.Tracks.Items))
	for _, t := range response.Tracks.Items {
		candidates = append(candidates, t.candidate())
	}
	return candidates, nil
}

func (t SpotifyTrack) candidate() matching.Candidate {
	artists := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = a.Name
	}

	return matching.Candidate{
		ID:         t.ID,
		Title:      t.Name,
		Artists:    artists,
		Album:      t.Album.Name,
		DurationMS: t.DurationMS,
		Popularity: float64(t.Popularity),
		URI:        t.URI,
		URL:        t.ExternalURLs.Spotify,
	}
}

func (t SpotifyTrack) track() models.Track {
	names := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		names[i] = a.Name
	}

	return models.Track{
		ID:         t.ID,
		Title:      t.Name,
		Artist:     strings.Join(names, ", "),
		Album:      t.Album.Name,
		DurationMS: t.DurationMS,
		ISRC:       t.ExternalIDs.ISRC,
		URI:        t.URI,
	}
}

// UserProfile retrieves the current authenticated user's profile.
func (s *SpotifyService) UserProfile(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Playlist retrieves a playlist's metadata by ID.
func (s *SpotifyService) Playlist(ctx context.Context, playlistID string) (*SpotifyPlaylist, error) {
	endpoint := fmt.Sprintf("/playlists/%s?fields=%s", url.PathEscape(playlistID),
		url.QueryEscape("id,name,description,owner,public,uri,tracks.total"))

	var playlist SpotifyPlaylist
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &playlist); err != nil {
		return nil, err
	}
	return &playlist, nil
}

// GetPlaylists retrieves all playlists for the authenticated user.
func (s *SpotifyService) GetPlaylists(ctx context.Context) ([]models.Playlist, error) {
	var all []models.Playlist
	next := "/me/playlists?limit=50"

	for next != "" {
		var response page[SpotifyPlaylist]
		if err := s.doRequest(ctx, http.MethodGet, next, nil, &response); err != nil {
			return nil, err
		}

		for _, sp := range response.Items {
			all = append(all, sp.playlist())
		}

		next = ""
		if response.Next != nil {
			next = *response.Next
		}
	}

	return all, nil
}

func (sp SpotifyPlaylist) playlist() models.Playlist {
	return models.Playlist{
		ID:          sp.ID,
		Name:        sp.Name,
		Description: sp.Description,
		TrackCount:  sp.Tracks.Total,
		Public:      sp.Public,
	}
}

// GetPlaylist retrieves a specific playlist by ID.
func (s *SpotifyService) GetPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	sp, err := s.Playlist(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	p := sp.playlist()
	return &p, nil
}

// ExportPlaylist exports a playlist with all its tracks, following pagination. Local files and
// removed items are skipped.
func (s *SpotifyService) ExportPlaylist(ctx context.Context, playlistID string) (*models.PlaylistExport, error) {
	sp, err := s.Playlist(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	tracks := make([]models.Track, 0, sp.Tracks.Total)
	next := fmt.Sprintf("/playlists/%s/tracks?limit=%d", url.PathEscape(playlistID), spotifyPageSize)

	for next != "" {
		var response page[SpotifyPlaylistTrack]
		if err := s.doRequest(ctx, http.MethodGet, next, nil, &response); err != nil {
			return nil, err
		}

		for _, item := range response.Items {
			if item.Track == nil || item.Track.IsLocal || item.Track.ID == "" {
				continue
			}
			tracks = append(tracks, item.Track.track())
		}

		next = ""
		if response.Next != nil {
			next = *response.Next
		}
	}

	return &models.PlaylistExport{Playlist: sp.playlist(), Tracks: tracks}, nil
}

// ImportPlaylist creates a playlist owned by the current user and adds the tracks in batches of 100.
func (s *SpotifyService) ImportPlaylist(ctx context.Context, playlist *models.PlaylistExport) (*models.Playlist, error) {
	if playlist == nil {
		return nil, fmt.Errorf("%w: nil playlist", shared.ErrInvalidArgument)
	}

	user, err := s.UserProfile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get user profile: %w", err)
	}

	createReq := map[string]any{
		"name":        playlist.Playlist.Name,
		"description": playlist.Playlist.Description,
		"public":      playlist.Playlist.Public,
	}

	var created SpotifyPlaylist
	endpoint := fmt.Sprintf("/users/%s/playlists", url.PathEscape(user.ID))
	if err := s.doRequest(ctx, http.MethodPost, endpoint, createReq, &created); err != nil {
		return nil, fmt.Errorf("failed to create playlist: %w", err)
	}

	uris := make([]string, 0, len(playlist.Tracks))
	for _, t := range playlist.Tracks {
		switch {
		case t.URI != "":
			uris = append(uris, t.URI)
		case t.ID != "":
			uris = append(uris, "spotify:track:"+t.ID)
		}
	}

	addEndpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(created.ID))
	for start := 0; start < len(uris); start += spotifyAddBatch {
		end := min(start+spotifyAddBatch, len(uris))
		if err := s.doRequest(ctx, http.MethodPost, addEndpoint, map[string]any{"uris": uris[start:end]}, nil); err != nil {
			return nil, fmt.Errorf("failed to add tracks %d-%d: %w", start+1, end, err)
		}
	}

	result := created.playlist()
	result.TrackCount = len(uris)
	return &result, nil
}
