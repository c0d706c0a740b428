// package services defines interface Service for interacting with HTTP APIs
//
// Spotify, YouTube (via proxy)
package services

import (
	"context"

	"github.com/desertthunder/crossfade/internal/matching"
	"github.com/desertthunder/crossfade/internal/models"
	"golang.org/x/oauth2"
)

// Platform identifiers used in config, history and [matching.DirectionFor].
const (
	PlatformSpotify = "spotify"
	PlatformYouTube = "youtube"
)

// Service defines the interface for music service providers (Spotify, YouTube Music) that can
// export and import playlists and answer free-text searches for the matching engine.
type Service interface {
	matching.SearchProvider

	// Authenticate performs OAuth or API key authentication with the service.
	// Returns an error if authentication fails.
	Authenticate(ctx context.Context, credentials map[string]string) error

	// GetPlaylists retrieves all playlists for the authenticated user.
	GetPlaylists(ctx context.Context) ([]models.Playlist, error)

	// GetPlaylist retrieves a specific playlist by ID.
	GetPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error)

	// ExportPlaylist exports a playlist with all its tracks.
	ExportPlaylist(ctx context.Context, playlistID string) (*models.PlaylistExport, error)

	// ImportPlaylist creates a new playlist and populates it with the provided tracks.
	ImportPlaylist(ctx context.Context, playlist *models.PlaylistExport) (*models.Playlist, error)

	// Name returns the display name of the service (e.g., "Spotify", "YouTube Music")
	Name() string

	// Platform returns the platform identifier ([PlatformSpotify], [PlatformYouTube]).
	Platform() string
}

// OAuthService extends [Service] for providers authorized through a browser OAuth flow.
type OAuthService interface {
	Service
	GetAuthURL(state string) string
	GetOAuthConfig() *oauth2.Config
	OAuthenticate(ctx context.Context, token *oauth2.Token) error
}
