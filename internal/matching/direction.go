package matching

import (
	"fmt"
	"math"
	"time"

	"github.com/desertthunder/crossfade/internal/shared"
)

// Weights are the coefficients of the final score. Title, Artist and Duration multiply their
// similarity; the remaining fields are absolute bonuses or penalties.
type Weights struct {
	Title    float64
	Artist   float64
	Duration float64

	// Multipliers for the three title comparisons.
	RawTitle  float64
	MainTitle float64
	SongTitle float64

	// ArtistInTitle scales a match of the artist inside the candidate title. Zero disables it.
	ArtistInTitle float64

	PopularityCap    float64
	OfficialSource   float64
	OfficialTitle    float64
	Exact            float64
	VersionPenalty   float64
	WordCountPenalty float64
	ShortPenalty     float64
}

// Thresholds gate rejection, acceptance and early exit.
//
// MinTitle applies by default, Regional when the source title is non-ASCII or carries
// regional-language markers, and ShortTitle when the extracted main title has at most
// ShortTitleRunes runes. The lowest applicable value wins.
type Thresholds struct {
	MinTitle        float64
	Regional        float64
	ShortTitle      float64
	ShortTitleRunes int

	Accept    float64
	EarlyExit float64

	ExactTitle  float64
	ExactArtist float64
}

// Timing spaces provider calls.
type Timing struct {
	QueryDelay       time.Duration
	Backoff          time.Duration
	RateLimitBackoff time.Duration
}

// Validate checks that throttling always backs off longer than any other failure.
func (t Timing) Validate() error {
	if t.QueryDelay < 0 || t.Backoff < 0 {
		return fmt.Errorf("%w: negative delay", shared.ErrInvalidConfig)
	}
	if t.RateLimitBackoff <= t.Backoff {
		return fmt.Errorf("%w: rate limit backoff %s must exceed backoff %s",
			shared.ErrInvalidConfig, t.RateLimitBackoff, t.Backoff)
	}
	return nil
}

// PopularityScale says how [Candidate.Popularity] is read.
type PopularityScale int

const (
	// PopularityIndex is a 0-100 index, scaled linearly up to the cap.
	PopularityIndex PopularityScale = iota
	// PopularityViews is a raw view count, scaled by log10 and ignored under 1000 views.
	PopularityViews
)

func (p PopularityScale) bonus(v, limit float64) float64 {
	if v <= 0 || limit <= 0 {
		return 0
	}

	switch p {
	case PopularityViews:
		if v <= 1000 {
			return 0
		}
		return math.Min(limit, math.Log10(v)/20)
	default:
		return math.Min(limit, math.Min(v, 100)/100*limit)
	}
}

// Direction is the per-platform policy the [Engine] and [Ranker] are parameterized by.
type Direction struct {
	Name        string
	Source      string
	Destination string

	Weights    Weights
	Thresholds Thresholds
	Timing     Timing

	// Duration tolerance is max(DurationFloorMS, DurationRatio * source duration).
	DurationFloorMS int
	DurationRatio   float64
	NeutralDuration float64

	Popularity PopularityScale

	// MaxQueries truncates the generated list when positive.
	MaxQueries int

	RegionalQualifiers []string
	VersionKeywords    []string
	NonMusicKeywords   []string

	// Candidates shorter than MinCandidateMS are dropped, shorter than ShortCandidateMS penalized.
	MinCandidateMS   int
	ShortCandidateMS int

	// ExtractCandidateTitle runs free-form candidate titles through [ExtractSongInfo] before comparing.
	ExtractCandidateTitle bool

	structured func(song, artist, raw string) []string
	artistOnly func(artist string) []string
}

// Validate reports unusable weights, thresholds or timings.
func (d Direction) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: direction has no name", shared.ErrInvalidConfig)
	}
	if err := d.Timing.Validate(); err != nil {
		return fmt.Errorf("%s: %w", d.Name, err)
	}

	th := d.Thresholds
	for name, v := range map[string]float64{
		"min_title": th.MinTitle, "regional": th.Regional, "short_title": th.ShortTitle,
		"accept": th.Accept, "early_exit": th.EarlyExit,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: %s threshold %s=%v outside [0,1]", shared.ErrInvalidConfig, d.Name, name, v)
		}
	}
	if th.EarlyExit < th.Accept {
		return fmt.Errorf("%w: %s early exit %v below accept %v", shared.ErrInvalidConfig, d.Name, th.EarlyExit, th.Accept)
	}
	return nil
}

// VideoToTrack matches free-form YouTube video titles against the Spotify track index.
func VideoToTrack() Direction {
	return Direction{
		Name:        "youtube-to-spotify",
		Source:      "youtube",
		Destination: "spotify",
		Weights: Weights{
			Title:            0.45,
			Artist:           0.35,
			Duration:         0.12,
			RawTitle:         0.8,
			MainTitle:        1.0,
			SongTitle:        0.95,
			PopularityCap:    0.15,
			Exact:            0.1,
			VersionPenalty:   0.3,
			WordCountPenalty: 0.2,
		},
		Thresholds: Thresholds{
			MinTitle:        0.3,
			Regional:        0.2,
			ShortTitle:      0.15,
			ShortTitleRunes: 10,
			Accept:          0.2,
			EarlyExit:       0.7,
			ExactTitle:      0.95,
			ExactArtist:     0.8,
		},
		Timing: Timing{
			QueryDelay:       100 * time.Millisecond,
			Backoff:          500 * time.Millisecond,
			RateLimitBackoff: 3 * time.Second,
		},
		DurationFloorMS:    120_000,
		DurationRatio:      0.3,
		NeutralDuration:    0.5,
		Popularity:         PopularityIndex,
		RegionalQualifiers: []string{"bollywood", "hindi song"},
		VersionKeywords:    []string{"cover", "karaoke", "instrumental", "remix", "acoustic", "live", "piano"},
		structured:         spotifyStructured,
		artistOnly:         spotifyArtistOnly,
	}
}

// TrackToVideo matches structured Spotify tracks against YouTube videos.
func TrackToVideo() Direction {
	return Direction{
		Name:        "spotify-to-youtube",
		Source:      "spotify",
		Destination: "youtube",
		Weights: Weights{
			Title:            0.4,
			Artist:           0.35,
			Duration:         0.1,
			RawTitle:         0.8,
			MainTitle:        1.0,
			SongTitle:        0.95,
			ArtistInTitle:    0.7,
			PopularityCap:    0.25,
			OfficialSource:   0.4,
			OfficialTitle:    0.2,
			VersionPenalty:   0.5,
			WordCountPenalty: 0.2,
			ShortPenalty:     0.3,
		},
		Thresholds: Thresholds{
			MinTitle:        0.3,
			Regional:        0.2,
			ShortTitle:      0.15,
			ShortTitleRunes: 10,
			Accept:          0.25,
			EarlyExit:       0.8,
			ExactTitle:      0.95,
			ExactArtist:     0.8,
		},
		Timing: Timing{
			QueryDelay:       150 * time.Millisecond,
			Backoff:          time.Second,
			RateLimitBackoff: 5 * time.Second,
		},
		DurationFloorMS: 180_000,
		DurationRatio:   0.3,
		NeutralDuration: 0.6,
		Popularity:      PopularityViews,
		VersionKeywords: []string{
			"cover", "remix", "karaoke", "instrumental", "acoustic", "live", "concert", "reaction",
			"tutorial", "how to", "slowed", "reverb", "lofi", "lo-fi", "8d", "nightcore",
			"bass boosted", "trap", "phonk", "edit", "tiktok", "shorts", "compilation", "mashup",
			"vs", "battle",
		},
		NonMusicKeywords: []string{
			"reaction", "review", "breakdown", "analysis", "explained", "tutorial", "how to",
			"making of", "behind the scenes", "interview", "podcast", "talk show", "news",
			"trailer", "gameplay", "gaming", "fortnite", "minecraft", "roblox", "crypto", "nft",
			"bitcoin", "stock", "invest",
		},
		MinCandidateMS:        30_000,
		ShortCandidateMS:      45_000,
		ExtractCandidateTitle: true,
		structured:            youtubeStructured,
	}
}

// DirectionFor picks the policy for a destination platform name.
func DirectionFor(destination string) (Direction, error) {
	switch destination {
	case "spotify":
		return VideoToTrack(), nil
	case "youtube":
		return TrackToVideo(), nil
	default:
		return Direction{}, fmt.Errorf("%w: no matching policy for destination %q", shared.ErrInvalidArgument, destination)
	}
}

// WithOverrides returns d with every non-zero field of o applied. Call Validate afterwards.
func (d Direction) WithOverrides(o shared.DirectionConfig) Direction {
	override(&d.Thresholds.MinTitle, o.MinTitle)
	override(&d.Thresholds.Accept, o.Accept)
	override(&d.Thresholds.EarlyExit, o.EarlyExit)
	override(&d.Weights.Title, o.TitleWeight)
	override(&d.Weights.Artist, o.ArtistWeight)
	override(&d.Weights.Duration, o.DurationWeight)

	if o.QueryDelayMS > 0 {
		d.Timing.QueryDelay = time.Duration(o.QueryDelayMS) * time.Millisecond
	}
	if o.BackoffMS > 0 {
		d.Timing.Backoff = time.Duration(o.BackoffMS) * time.Millisecond
	}
	if o.RateLimitBackoffMS > 0 {
		d.Timing.RateLimitBackoff = time.Duration(o.RateLimitBackoffMS) * time.Millisecond
	}
	if o.MaxQueries > 0 {
		d.MaxQueries = o.MaxQueries
	}
	return d
}

func override(dst *float64, v float64) {
	if v > 0 {
		*dst = v
	}
}
