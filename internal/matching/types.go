package matching

import (
	"context"
	"regexp"
	"strings"
)

var genericChannelRe = regexp.MustCompile(`(?i)^(various artists|music|lyrics?|records|release|topic)$`)

// SourceTrack describes the item being converted. Only Title is required.
type SourceTrack struct {
	ID         string
	Title      string
	Artist     string
	Album      string
	DurationMS int
	Channel    string
}

// Candidate is a single destination-platform search result.
//
// Popularity is whatever signal the platform exposes (0-100 index on Spotify, view count on
// YouTube); the [Direction] decides how it is scaled.
type Candidate struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Artists    []string `json:"artists,omitempty"`
	Album      string   `json:"album,omitempty"`
	DurationMS int      `json:"duration_ms,omitempty"`
	Popularity float64  `json:"popularity,omitempty"`
	URI        string   `json:"uri,omitempty"`
	URL        string   `json:"url,omitempty"`
	Channel    string   `json:"channel,omitempty"`
	Official   bool     `json:"official,omitempty"`
}

// PrimaryArtist returns the first credited artist, or the channel when there is none.
func (c Candidate) PrimaryArtist() string {
	if len(c.Artists) > 0 {
		return c.Artists[0]
	}
	return c.Channel
}

// MatchRecord is the final decision for one source track.
type MatchRecord struct {
	Source SourceTrack
	Best   *Candidate
	Found  bool
	Score  float64
	Query  string // produced Best; empty when nothing was found
	Cached bool   // served from the cache; the other fields equal the original record
}

// ExtractedInfo holds the parts recovered from a raw title.
//
// MainTitle is set for every non-empty title. Artist and Song are only set when a structural
// pattern produced both sides.
type ExtractedInfo struct {
	Artist    string
	Song      string
	MainTitle string
}

// SearchProvider runs a free-text query against a destination platform.
//
// Implementations wrap [shared.ErrRateLimited] when the platform throttles the caller.
type SearchProvider interface {
	Search(ctx context.Context, query string) ([]Candidate, error)
}

// ProviderFunc adapts a plain function to [SearchProvider].
type ProviderFunc func(ctx context.Context, query string) ([]Candidate, error)

func (f ProviderFunc) Search(ctx context.Context, query string) ([]Candidate, error) {
	return f(ctx, query)
}

// Readier is implemented by providers that can report missing credentials up front.
type Readier interface {
	Ready() error
}

// Analyze derives the [ExtractedInfo] used for both query building and scoring.
//
// Tracks that already carry a structured artist keep it and only have their title cleaned;
// free-form titles go through [ExtractSongInfo].
func Analyze(src SourceTrack) ExtractedInfo {
	artist := primaryArtist(src.Artist)
	if artist == "" {
		return ExtractSongInfo(src.Title)
	}

	main := CleanTitle(src.Title)
	if len([]rune(main)) < 2 {
		main = strings.TrimSpace(src.Title)
	}
	if main == "" {
		return ExtractedInfo{}
	}
	return ExtractedInfo{Artist: artist, Song: main, MainTitle: main}
}

func primaryArtist(artists string) string {
	first, _, _ := strings.Cut(artists, ",")
	return strings.TrimSpace(first)
}

// FromVideo builds the source track for a YouTube video. The uploading channel stands in for the
// artist only when the title names none and the channel is not a generic label.
func FromVideo(id, title, channel string, durationMS int) SourceTrack {
	src := SourceTrack{ID: id, Title: title, DurationMS: durationMS, Channel: channel}
	if ExtractSongInfo(title).Artist != "" {
		return src
	}

	if name := cleanChannel(channel); name != "" && !genericChannelRe.MatchString(name) {
		src.Artist = name
	}
	return src
}
