package matching

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/crossfade/internal/shared"
)

// mockProvider counts calls and answers from a fixed function.
type mockProvider struct {
	mu      sync.Mutex
	calls   int
	queries []string
	answer  func(call int, query string) ([]Candidate, error)
}

func (m *mockProvider) Search(_ context.Context, query string) ([]Candidate, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.queries = append(m.queries, query)
	m.mu.Unlock()
	return m.answer(call, query)
}

func (m *mockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type notReadyProvider struct{ mockProvider }

func (*notReadyProvider) Ready() error { return shared.ErrNotAuthenticated }

// catalogProvider returns every entry whose title appears in the query.
func catalogProvider(entries ...Candidate) *mockProvider {
	return &mockProvider{answer: func(_ int, query string) ([]Candidate, error) {
		var out []Candidate
		for _, c := range entries {
			if strings.Contains(strings.ToLower(query), strings.ToLower(c.Title)) {
				out = append(out, c)
			}
		}
		return out, nil
	}}
}

type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return ctx.Err()
}

func fastDirection() Direction {
	dir := VideoToTrack()
	dir.Timing.QueryDelay = 0
	return dir
}

func newTestEngine(t *testing.T, opts EngineOpts) *Engine {
	t.Helper()
	if opts.Sleep == nil {
		opts.Sleep = (&sleepRecorder{}).Sleep
	}
	e, err := NewEngine(fastDirection(), opts)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

var shapeOfYouTrack = Candidate{
	ID:         "7qiZfU4dY1lWllzX7mPBI3",
	Title:      "Shape of You",
	Artists:    []string{"Ed Sheeran"},
	DurationMS: 233712,
	Popularity: 90,
	URI:        "spotify:track:7qiZfU4dY1lWllzX7mPBI3",
}

func TestEngine(t *testing.T) {
	video := SourceTrack{ID: "JGwWNGJdvx8", Title: "Ed Sheeran - Shape of You (Official Music Video)", DurationMS: 263000}

	t.Run("accepts a confident match after one query", func(t *testing.T) {
		p := &mockProvider{answer: func(int, string) ([]Candidate, error) {
			return []Candidate{{Title: "Shape of You (Acoustic)", Artists: []string{"Ed Sheeran"}}, shapeOfYouTrack}, nil
		}}
		e := newTestEngine(t, EngineOpts{})

		rec, err := e.Match(context.Background(), video, p)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !rec.Found || rec.Best.ID != shapeOfYouTrack.ID {
			t.Fatalf("expected studio version, got %+v", rec.Best)
		}
		if rec.Score <= 0.7 {
			t.Errorf("score = %v, want above early exit", rec.Score)
		}
		if p.Calls() != 1 {
			t.Errorf("provider called %d times, want 1", p.Calls())
		}
		if rec.Query != `track:"Shape of You" artist:"Ed Sheeran"` {
			t.Errorf("query = %q", rec.Query)
		}
	})

	t.Run("serves repeats from cache", func(t *testing.T) {
		p := catalogProvider(shapeOfYouTrack)
		e := newTestEngine(t, EngineOpts{})

		first, _ := e.Match(context.Background(), video, p)
		calls := p.Calls()
		second, err := e.Match(context.Background(), video, p)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if first.Cached || !second.Cached {
			t.Errorf("cached flags = %v, %v; want false, true", first.Cached, second.Cached)
		}
		if p.Calls() != calls {
			t.Errorf("cache hit still searched: %d calls, want %d", p.Calls(), calls)
		}

		want := first
		want.Cached = true
		if !reflect.DeepEqual(second, want) {
			t.Errorf("cached record differs: %+v vs %+v", second, first)
		}

		second.Best.Title = "mutated"
		third, _ := e.Match(context.Background(), video, p)
		if third.Best.Title != shapeOfYouTrack.Title {
			t.Errorf("mutating a returned record changed the cache: %q", third.Best.Title)
		}
	})

	t.Run("matches an exact studio track", func(t *testing.T) {
		src := SourceTrack{Title: "Shape of You", Artist: "Ed Sheeran", DurationMS: 233000}
		candidate := Candidate{Title: "Shape of You", Artists: []string{"Ed Sheeran"}, DurationMS: 233712, Popularity: 90}
		p := &mockProvider{answer: func(int, string) ([]Candidate, error) {
			return []Candidate{candidate}, nil
		}}
		e := newTestEngine(t, EngineOpts{})

		rec, err := e.Match(context.Background(), src, p)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !rec.Found {
			t.Fatalf("expected a match, got %+v", rec)
		}
		if rec.Score <= 0.8 {
			t.Errorf("score = %v, want > 0.8", rec.Score)
		}
		if rec.Best.Title != "Shape of You" {
			t.Errorf("best = %+v", rec.Best)
		}
	})

	t.Run("keeps order and reports misses", func(t *testing.T) {
		p := catalogProvider(
			Candidate{ID: "1", Title: "Blinding Lights", Artists: []string{"The Weeknd"}},
			Candidate{ID: "2", Title: "Levitating", Artists: []string{"Dua Lipa"}},
			Candidate{ID: "4", Title: "Bad Guy", Artists: []string{"Billie Eilish"}},
			shapeOfYouTrack,
		)
		tracks := []SourceTrack{
			{Title: "The Weeknd - Blinding Lights (Official Video)"},
			{Title: "Dua Lipa - Levitating"},
			{Title: "Zzyzx Road Anthem", Artist: "Nobody Known"},
			{Title: "Billie Eilish - Bad Guy"},
			{Title: "Ed Sheeran - Shape of You"},
		}

		var progress []int
		e := newTestEngine(t, EngineOpts{OnProgress: func(i, total int, _ MatchRecord) {
			if total != len(tracks) {
				t.Errorf("total = %d", total)
			}
			progress = append(progress, i)
		}})

		records, err := e.MatchAll(context.Background(), tracks, p)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(records) != len(tracks) {
			t.Fatalf("got %d records, want %d", len(records), len(tracks))
		}

		wantIDs := []string{"1", "2", "", "4", shapeOfYouTrack.ID}
		for i, rec := range records {
			if rec.Source.Title != tracks[i].Title {
				t.Errorf("record %d is for %q", i, rec.Source.Title)
			}
			if wantIDs[i] == "" {
				if rec.Found || rec.Best != nil || rec.Score != 0 {
					t.Errorf("record %d should be a miss, got %+v", i, rec)
				}
				continue
			}
			if !rec.Found || rec.Best.ID != wantIDs[i] {
				t.Errorf("record %d: found=%v best=%+v, want %s", i, rec.Found, rec.Best, wantIDs[i])
			}
		}
		if fmt.Sprint(progress) != "[0 1 2 3 4]" {
			t.Errorf("progress = %v", progress)
		}
	})

	t.Run("backs off longer when throttled", func(t *testing.T) {
		sleeper := &sleepRecorder{}
		p := &mockProvider{answer: func(call int, _ string) ([]Candidate, error) {
			switch call {
			case 1:
				return nil, fmt.Errorf("%w: status 429", shared.ErrRateLimited)
			case 2:
				return nil, errors.New("connection reset")
			default:
				return []Candidate{shapeOfYouTrack}, nil
			}
		}}
		e := newTestEngine(t, EngineOpts{Sleep: sleeper.Sleep})

		rec, err := e.Match(context.Background(), video, p)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !rec.Found {
			t.Fatal("expected a match after the failures")
		}

		timing := e.Direction().Timing
		want := []time.Duration{timing.RateLimitBackoff, timing.Backoff}
		if fmt.Sprint(sleeper.waits) != fmt.Sprint(want) {
			t.Errorf("waits = %v, want %v", sleeper.waits, want)
		}
		if p.Calls() != 3 {
			t.Errorf("calls = %d, want 3", p.Calls())
		}
	})

	t.Run("failing provider yields a cached miss", func(t *testing.T) {
		sleeper := &sleepRecorder{}
		p := &mockProvider{answer: func(int, string) ([]Candidate, error) {
			return nil, shared.ErrServiceUnavailable
		}}
		e := newTestEngine(t, EngineOpts{Sleep: sleeper.Sleep})

		rec, err := e.Match(context.Background(), video, p)
		if err != nil {
			t.Fatalf("provider failures should not surface, got %v", err)
		}
		if rec.Found || rec.Best != nil {
			t.Errorf("expected a miss, got %+v", rec)
		}

		queries := BuildQueries(video, e.Direction())
		if p.Calls() != len(queries) || len(sleeper.waits) != len(queries) {
			t.Errorf("calls=%d waits=%d, want %d each", p.Calls(), len(sleeper.waits), len(queries))
		}

		entry, ok := e.Cache().Get(CacheKey(e.Direction(), video))
		if !ok || entry.Best != nil {
			t.Errorf("miss should be cached, got %+v, %v", entry, ok)
		}
	})

	t.Run("rejects unusable providers", func(t *testing.T) {
		e := newTestEngine(t, EngineOpts{})

		if _, err := e.MatchAll(context.Background(), []SourceTrack{video}, nil); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("nil provider: expected ErrInvalidConfig, got %v", err)
		}

		p := &notReadyProvider{mockProvider{answer: func(int, string) ([]Candidate, error) { return nil, nil }}}
		records, err := e.MatchAll(context.Background(), []SourceTrack{video}, p)
		if !errors.Is(err, shared.ErrInvalidConfig) || !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("not ready: got %v", err)
		}
		if records != nil || p.Calls() != 0 {
			t.Errorf("no track should be processed, got %d records and %d calls", len(records), p.Calls())
		}
	})

	t.Run("stops when cancelled before starting", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		p := catalogProvider(shapeOfYouTrack)
		e := newTestEngine(t, EngineOpts{})

		records, err := e.MatchAll(ctx, []SourceTrack{video, video}, p)
		if !errors.Is(err, shared.ErrTimeout) || !errors.Is(err, context.Canceled) {
			t.Errorf("expected timeout wrapping cancellation, got %v", err)
		}
		if len(records) != 0 || p.Calls() != 0 {
			t.Errorf("got %d records and %d calls, want none", len(records), p.Calls())
		}
	})

	t.Run("returns partial results when cancelled mid-run", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		p := catalogProvider(shapeOfYouTrack)
		e := newTestEngine(t, EngineOpts{OnProgress: func(i, _ int, _ MatchRecord) {
			if i == 0 {
				cancel()
			}
		}})

		tracks := []SourceTrack{video, {Title: "Another Song"}, {Title: "Third Song"}}
		records, err := e.MatchAll(ctx, tracks, p)
		if !errors.Is(err, shared.ErrTimeout) {
			t.Fatalf("expected ErrTimeout, got %v", err)
		}
		if len(records) != 1 || !records[0].Found {
			t.Errorf("expected the first record only, got %+v", records)
		}
	})

	t.Run("does not cache an interrupted track", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		p := &mockProvider{answer: func(int, string) ([]Candidate, error) {
			cancel()
			return nil, context.Canceled
		}}
		e := newTestEngine(t, EngineOpts{})

		_, err := e.Match(ctx, video, p)
		if !errors.Is(err, shared.ErrTimeout) {
			t.Errorf("expected ErrTimeout, got %v", err)
		}
		if e.Cache().Len() != 0 {
			t.Errorf("cache holds %d entries, want 0", e.Cache().Len())
		}
	})

	t.Run("reports every scored candidate", func(t *testing.T) {
		var seen []Breakdown
		p := &mockProvider{answer: func(int, string) ([]Candidate, error) {
			return []Candidate{{Title: "Perfect", Artists: []string{"Ed Sheeran"}}, shapeOfYouTrack}, nil
		}}
		e := newTestEngine(t, EngineOpts{OnCandidate: func(_ string, _ Candidate, b Breakdown) {
			seen = append(seen, b)
		}})

		if _, err := e.Match(context.Background(), video, p); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(seen) != 2 {
			t.Fatalf("observed %d candidates, want 2", len(seen))
		}
		if !seen[0].Rejected || seen[1].Rejected {
			t.Errorf("unexpected rejections: %+v", seen)
		}
	})
}

func TestNewEngine(t *testing.T) {
	t.Run("invalid timing", func(t *testing.T) {
		dir := VideoToTrack()
		dir.Timing.RateLimitBackoff = dir.Timing.Backoff

		if _, err := NewEngine(dir, EngineOpts{}); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("invalid thresholds", func(t *testing.T) {
		dir := TrackToVideo()
		dir.Thresholds.EarlyExit = 0.1

		if _, err := NewEngine(dir, EngineOpts{}); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("defaults", func(t *testing.T) {
		e, err := NewEngine(TrackToVideo(), EngineOpts{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if e.Cache() == nil || e.Direction().Name != "spotify-to-youtube" {
			t.Errorf("unexpected engine state: %+v", e)
		}
	})
}

func TestDirectionFor(t *testing.T) {
	if d, err := DirectionFor("spotify"); err != nil || d.Name != "youtube-to-spotify" {
		t.Errorf("spotify: %v, %v", d.Name, err)
	}
	if d, err := DirectionFor("youtube"); err != nil || d.Name != "spotify-to-youtube" {
		t.Errorf("youtube: %v, %v", d.Name, err)
	}
	if _, err := DirectionFor("tidal"); !errors.Is(err, shared.ErrInvalidArgument) {
		t.Errorf("tidal: expected ErrInvalidArgument, got %v", err)
	}
}

func TestWithOverrides(t *testing.T) {
	base := TrackToVideo()

	t.Run("zero keeps defaults", func(t *testing.T) {
		got := base.WithOverrides(shared.DirectionConfig{})
		if got.Thresholds != base.Thresholds || got.Weights != base.Weights || got.Timing != base.Timing {
			t.Errorf("empty overrides changed the direction")
		}
	})

	t.Run("applies set fields", func(t *testing.T) {
		got := base.WithOverrides(shared.DirectionConfig{
			Accept:             0.4,
			ArtistWeight:       0.5,
			QueryDelayMS:       10,
			RateLimitBackoffMS: 9000,
			MaxQueries:         4,
		})

		if got.Thresholds.Accept != 0.4 || got.Weights.Artist != 0.5 || got.MaxQueries != 4 {
			t.Errorf("overrides not applied: %+v", got)
		}
		if got.Timing.QueryDelay != 10*time.Millisecond || got.Timing.RateLimitBackoff != 9*time.Second {
			t.Errorf("timing overrides not applied: %+v", got.Timing)
		}
		if got.Thresholds.EarlyExit != base.Thresholds.EarlyExit {
			t.Errorf("unset field changed")
		}
		if err := got.Validate(); err != nil {
			t.Errorf("overridden direction should stay valid: %v", err)
		}
	})

	t.Run("invalid result is caught by validation", func(t *testing.T) {
		got := base.WithOverrides(shared.DirectionConfig{BackoffMS: 60000})
		if err := got.Validate(); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}
