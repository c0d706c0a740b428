package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/crossfade/internal/matching"
	"github.com/desertthunder/crossfade/internal/services"
	"github.com/desertthunder/crossfade/internal/shared"
	"github.com/urfave/cli/v3"
)

type explanation struct {
	Query     string             `json:"query"`
	Candidate matching.Candidate `json:"candidate"`
	Breakdown matching.Breakdown `json:"breakdown"`
}

type matchOutput struct {
	Title      string              `json:"title"`
	Artist     string              `json:"artist,omitempty"`
	Direction  string              `json:"direction"`
	Found      bool                `json:"found"`
	Score      float64             `json:"score"`
	Query      string              `json:"query,omitempty"`
	Cached     bool                `json:"cached"`
	Match      *matching.Candidate `json:"match,omitempty"`
	Candidates []explanation       `json:"candidates,omitempty"`
}

// Match runs one title through the matching engine against the destination platform.
func (r *Runner) Match(ctx context.Context, cmd *cli.Command) error {
	src, dest, err := trackArgs(cmd)
	if err != nil {
		return err
	}

	if d := cmd.String("duration"); d != "" {
		ms, err := matching.ParseClockDuration(d)
		if err != nil {
			return fmt.Errorf("%w: --duration: %w", shared.ErrInvalidFlag, err)
		}
		src.DurationMS = ms
	}

	svc, err := r.service(dest)
	if err != nil {
		return err
	}

	var candidates []explanation
	opts := matching.EngineOpts{}
	if cmd.Bool("explain") || cmd.Bool("json") {
		opts.OnCandidate = func(q string, c matching.Candidate, b matching.Breakdown) {
			candidates = append(candidates, explanation{Query: q, Candidate: c, Breakdown: b})
		}
	}

	engine, err := r.engine.Matcher(dest, opts)
	if err != nil {
		return err
	}

	rec, err := engine.Match(ctx, src, svc)
	if err != nil {
		return err
	}

	out := matchOutput{
		Title:      src.Title,
		Artist:     src.Artist,
		Direction:  engine.Direction().Name,
		Found:      rec.Found,
		Score:      rec.Score,
		Query:      rec.Query,
		Cached:     rec.Cached,
		Match:      rec.Best,
		Candidates: candidates,
	}

	if cmd.Bool("json") {
		return r.writeJSON(out, true)
	}

	if cmd.Bool("explain") {
		r.printExplanations(candidates)
	}

	r.writePlainHeader(fmt.Sprintf("Match (%s)", out.Direction))
	if !rec.Found || rec.Best == nil {
		return r.writePlain("✗ No match for %q (best score %.3f)\n", src.Title, rec.Score)
	}

	r.writePlain("✓ %s - %s\n", rec.Best.PrimaryArtist(), rec.Best.Title)
	r.writePlain("  Score: %.3f\n", rec.Score)
	r.writePlain("  Query: %s\n", rec.Query)
	if rec.Best.URL != "" {
		r.writePlain("  URL: %s\n", rec.Best.URL)
	} else if rec.Best.URI != "" {
		r.writePlain("  URI: %s\n", rec.Best.URI)
	}
	return nil
}

func (r *Runner) printExplanations(candidates []explanation) {
	query := ""
	for _, e := range candidates {
		if e.Query != query {
			query = e.Query
			r.writePlain("\n🔍 %s\n", query)
		}

		b := e.Breakdown
		if b.Rejected {
			r.writePlain("   ✗ %s - %s  rejected: %s\n", e.Candidate.PrimaryArtist(), e.Candidate.Title, b.Reason)
			continue
		}
		r.writePlain("   %.3f %s - %s\n", b.Total, e.Candidate.PrimaryArtist(), e.Candidate.Title)
		r.writePlain("         title %.2f  artist %.2f  duration %.2f  popularity %.2f  official %.2f  exact %.2f\n",
			b.Title, b.Artist, b.Duration, b.Popularity, b.Official, b.Exact)
		if b.VersionPenalty != 0 || b.WordCountPenalty != 0 || b.ShortPenalty != 0 {
			r.writePlain("         penalties: version %.2f  words %.2f  short %.2f\n", b.VersionPenalty, b.WordCountPenalty, b.ShortPenalty)
		}
	}
	r.writePlain("\n")
}

// Queries prints the search queries generated for a title.
func (r *Runner) Queries(_ context.Context, cmd *cli.Command) error {
	src, dest, err := trackArgs(cmd)
	if err != nil {
		return err
	}

	engine, err := r.engine.Matcher(dest, matching.EngineOpts{})
	if err != nil {
		return err
	}
	dir := engine.Direction()

	info := matching.Analyze(src)
	r.writePlainHeader(fmt.Sprintf("Queries (%s)", dir.Name))
	if info.Artist != "" {
		r.writePlain("Artist: %s\n", info.Artist)
	}
	if info.Song != "" {
		r.writePlain("Song: %s\n", info.Song)
	}
	r.writePlain("Main title: %s\n\n", info.MainTitle)

	for i, q := range matching.BuildQueries(src, dir) {
		r.writePlain("%d. %s\n", i+1, q)
	}
	return nil
}

// trackArgs reads the title argument, --artist and --to.
func trackArgs(cmd *cli.Command) (matching.SourceTrack, string, error) {
	title := cmd.StringArg("title")
	if title == "" {
		return matching.SourceTrack{}, "", fmt.Errorf("%w: title", shared.ErrMissingArgument)
	}

	dest := cmd.String("to")
	if dest == "ytmusic" {
		dest = services.PlatformYouTube
	}
	if dest != services.PlatformSpotify && dest != services.PlatformYouTube {
		return matching.SourceTrack{}, "", fmt.Errorf("%w: --to must be 'spotify' or 'youtube', got %q", shared.ErrInvalidFlag, dest)
	}

	return matching.SourceTrack{Title: title, Artist: cmd.String("artist")}, dest, nil
}
