package services

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/desertthunder/crossfade/internal/shared"
)

var youtubeListRe = regexp.MustCompile(`[?&]list=([a-zA-Z0-9_-]+)`)

// PlaylistRef identifies a playlist on one platform.
type PlaylistRef struct {
	Platform string
	ID       string
}

// ParsePlaylistURL extracts the platform and playlist ID from a share link.
//
//	https://music.youtube.com/playlist?list=PLxyz    -> youtube, PLxyz
//	https://open.spotify.com/playlist/37i9dQZF1DX... -> spotify, 37i9dQZF1DX...
//	spotify:playlist:37i9dQZF1DX...                  -> spotify, 37i9dQZF1DX...
func ParsePlaylistURL(raw string) (PlaylistRef, error) {
	raw = strings.TrimSpace(raw)

	if rest, ok := strings.CutPrefix(raw, "spotify:playlist:"); ok && rest != "" {
		return PlaylistRef{Platform: PlatformSpotify, ID: rest}, nil
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return PlaylistRef{}, fmt.Errorf("%w: %q", shared.ErrInvalidURL, raw)
	}

	host := strings.ToLower(u.Hostname())
	switch {
	case strings.Contains(host, "youtube.com") || host == "youtu.be":
		if m := youtubeListRe.FindStringSubmatch(raw); m != nil {
			return PlaylistRef{Platform: PlatformYouTube, ID: m[1]}, nil
		}
	case strings.Contains(host, "spotify.com"):
		segments := strings.Split(strings.Trim(u.Path, "/"), "/")
		for i, s := range segments {
			if s == "playlist" && i+1 < len(segments) && segments[i+1] != "" {
				return PlaylistRef{Platform: PlatformSpotify, ID: segments[i+1]}, nil
			}
		}
	}

	return PlaylistRef{}, fmt.Errorf("%w: no playlist id in %q", shared.ErrInvalidURL, raw)
}
