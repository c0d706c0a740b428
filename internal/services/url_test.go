package services

import (
	"errors"
	"testing"

	"github.com/desertthunder/crossfade/internal/shared"
)

func TestParsePlaylistURL(t *testing.T) {
	tc := []struct {
		name     string
		url      string
		platform string
		id       string
	}{
		{name: "youtube music", url: "https://music.youtube.com/playlist?list=PLabc_123-x", platform: PlatformYouTube, id: "PLabc_123-x"},
		{name: "youtube watch with list", url: "https://www.youtube.com/watch?v=abc&list=PLxyz", platform: PlatformYouTube, id: "PLxyz"},
		{name: "spotify", url: "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M?si=abc", platform: PlatformSpotify, id: "37i9dQZF1DXcBWIGoYBM5M"},
		{name: "spotify localized", url: "https://open.spotify.com/intl-de/playlist/37i9dQZF1DX", platform: PlatformSpotify, id: "37i9dQZF1DX"},
		{name: "spotify uri", url: "spotify:playlist:37i9dQZF1DX", platform: PlatformSpotify, id: "37i9dQZF1DX"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := ParsePlaylistURL(tt.url)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if ref.Platform != tt.platform || ref.ID != tt.id {
				t.Errorf("got %+v, want %s/%s", ref, tt.platform, tt.id)
			}
		})
	}

	t.Run("invalid", func(t *testing.T) {
		for _, raw := range []string{
			"",
			"not a url",
			"https://music.youtube.com/watch?v=abc",
			"https://open.spotify.com/track/123",
			"https://example.com/playlist/1",
		} {
			if _, err := ParsePlaylistURL(raw); !errors.Is(err, shared.ErrInvalidURL) {
				t.Errorf("ParsePlaylistURL(%q): expected ErrInvalidURL, got %v", raw, err)
			}
		}
	})
}
