// Package services defines the [Service] interface for music streaming providers and implements it for Spotify and YouTube Music.
//
// Every service is also a [matching.SearchProvider], so the matching engine can query either
// platform without knowing which one it is talking to.
//
// # Spotify Implementation
//
// [SpotifyService] uses OAuth2 for authentication with automatic token refresh.
// Refreshed tokens are passed to the callback registered with [SpotifyService.SetTokenRefreshCallback]
// so the CLI can persist them. [SpotifyService.SetToken] replaces the credential mid-run.
//
// # YouTube Music Implementation
//
// [YouTubeService] communicates with a proxy server wrapping ytmusicapi.
// The proxy handles YouTube Music authentication; the auth_file path is sent via the X-Auth-File header.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrNotAuthenticated] : Authenticate() not called
//   - [shared.ErrTokenExpired] : OAuth token expired, reauthorization needed
//   - [shared.ErrRateLimited] : HTTP 429 from the platform
//   - [shared.ErrAPIRequest] : HTTP request failed
//   - [shared.ErrPlaylistNotFound] : Playlist ID not found
//
// # API Mappings
//
// Search results become [matching.Candidate] values:
//   - Spotify: popularity is the 0-100 index, artists are the credited artists
//   - YouTube: popularity is the view count, the first artist is the uploading channel
//
// Playlists map to [models.Playlist] and [models.Track], with durations in milliseconds.
package services
