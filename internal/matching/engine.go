package matching

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/crossfade/internal/shared"
	"golang.org/x/time/rate"
)

// ProgressFunc is called after each track with its zero-based index.
type ProgressFunc func(index, total int, rec MatchRecord)

// CandidateFunc observes every scored candidate. Used for explaining decisions.
type CandidateFunc func(query string, c Candidate, b Breakdown)

// EngineOpts configures an [Engine]. Zero values select defaults.
type EngineOpts struct {
	Cache       Cache
	Logger      *log.Logger
	Sleep       func(ctx context.Context, d time.Duration) error
	OnProgress  ProgressFunc
	OnCandidate CandidateFunc
}

// Engine runs the per-track matching state machine for one [Direction].
//
// An Engine may be shared by overlapping conversions; its cache and limiter are safe for
// concurrent use.
type Engine struct {
	dir         Direction
	ranker      *Ranker
	cache       Cache
	limiter     *rate.Limiter
	logger      *log.Logger
	sleep       func(ctx context.Context, d time.Duration) error
	onProgress  ProgressFunc
	onCandidate CandidateFunc
}

// NewEngine validates dir and builds an engine around it.
func NewEngine(dir Direction, opts EngineOpts) (*Engine, error) {
	if err := dir.Validate(); err != nil {
		return nil, err
	}

	if opts.Cache == nil {
		opts.Cache = NewFIFOCache(DefaultCacheSize)
	}
	if opts.Logger == nil {
		opts.Logger = shared.DiscardLogger()
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}

	limit := rate.Inf
	if dir.Timing.QueryDelay > 0 {
		limit = rate.Every(dir.Timing.QueryDelay)
	}

	return &Engine{
		dir:         dir,
		ranker:      NewRanker(dir),
		cache:       opts.Cache,
		limiter:     rate.NewLimiter(limit, 1),
		logger:      shared.WithLogger(opts.Logger, "direction", dir.Name),
		sleep:       opts.Sleep,
		onProgress:  opts.OnProgress,
		onCandidate: opts.OnCandidate,
	}, nil
}

// Direction returns the policy the engine was built with.
func (e *Engine) Direction() Direction { return e.dir }

// Cache returns the engine's match cache.
func (e *Engine) Cache() Cache { return e.cache }

// MatchAll matches tracks in order and returns one record per track.
//
// Provider failures are absorbed per query. The returned error is non-nil only when the provider
// is unusable (wrapping [shared.ErrInvalidConfig], before any track is processed) or when ctx ends
// (wrapping [shared.ErrTimeout]); in the latter case the records matched so far are returned too.
func (e *Engine) MatchAll(ctx context.Context, tracks []SourceTrack, provider SearchProvider) ([]MatchRecord, error) {
	if err := checkProvider(provider); err != nil {
		return nil, err
	}

	records := make([]MatchRecord, 0, len(tracks))
	found := 0
	for i, src := range tracks {
		if err := ctx.Err(); err != nil {
			return records, e.interrupted(ctx, len(records), len(tracks))
		}

		e.logger.Info("matching", "track", fmt.Sprintf("%d/%d", i+1, len(tracks)), "title", src.Title, "artist", src.Artist)

		rec, stopped := e.match(ctx, src, provider)
		records = append(records, rec)
		if rec.Found {
			found++
		}
		if e.onProgress != nil {
			e.onProgress(i, len(tracks), rec)
		}
		if stopped {
			return records, e.interrupted(ctx, len(records), len(tracks))
		}
	}

	e.logger.Info("matching complete",
		"found", found, "total", len(tracks),
		"rate", fmt.Sprintf("%.1f%%", percent(found, len(tracks))),
		"cache", e.cache.Len())
	return records, nil
}

// Match runs a single track through the engine.
func (e *Engine) Match(ctx context.Context, src SourceTrack, provider SearchProvider) (MatchRecord, error) {
	if err := checkProvider(provider); err != nil {
		return MatchRecord{Source: src}, err
	}

	rec, stopped := e.match(ctx, src, provider)
	if stopped {
		return rec, e.interrupted(ctx, 0, 1)
	}
	return rec, nil
}

// match returns the record for src and whether ctx ended while it was being searched.
// Interrupted tracks are not cached.
func (e *Engine) match(ctx context.Context, src SourceTrack, provider SearchProvider) (MatchRecord, bool) {
	rec := MatchRecord{Source: src}
	key := CacheKey(e.dir, src)

	if entry, ok := e.cache.Get(key); ok {
		e.logger.Debug("cache hit", "key", key, "found", entry.Best != nil)
		rec.Best, rec.Score, rec.Query = entry.Best, entry.Score, entry.Query
		rec.Found, rec.Cached = entry.Best != nil, true
		return rec, false
	}

	info := Analyze(src)
	queries := buildQueries(src, info, e.dir)
	e.logger.Debug("queries built", "count", len(queries), "main", info.MainTitle, "artist", info.Artist)

	var (
		best      *Candidate
		bestScore float64
		bestQuery string
	)

	for _, q := range queries {
		if ctx.Err() != nil {
			return e.finish(rec, best, bestScore, bestQuery), true
		}
		if err := e.limiter.Wait(ctx); err != nil {
			return e.finish(rec, best, bestScore, bestQuery), true
		}

		results, err := provider.Search(ctx, q)
		if err != nil {
			if ctx.Err() != nil {
				return e.finish(rec, best, bestScore, bestQuery), true
			}

			wait := e.dir.Timing.Backoff
			if errors.Is(err, shared.ErrRateLimited) {
				wait = e.dir.Timing.RateLimitBackoff
				e.logger.Warn("rate limited, backing off", "query", q, "wait", wait)
			} else {
				e.logger.Warn("query failed", "query", q, "error", err)
			}

			if err := e.sleep(ctx, wait); err != nil {
				return e.finish(rec, best, bestScore, bestQuery), true
			}
			continue
		}

		for i := range results {
			c := results[i]
			b := e.ranker.Evaluate(src, c, info)
			if e.onCandidate != nil {
				e.onCandidate(q, c, b)
			}

			if b.Total > e.dir.Thresholds.Accept && b.Total > bestScore {
				best, bestScore, bestQuery = &c, b.Total, q
				e.logger.Debug("new best", "title", c.Title, "score", fmt.Sprintf("%.3f", b.Total))
			}
		}

		if bestScore > e.dir.Thresholds.EarlyExit {
			e.logger.Debug("confident match, skipping remaining queries", "query", q)
			break
		}
	}

	rec = e.finish(rec, best, bestScore, bestQuery)
	e.cache.Put(key, CacheEntry{Best: rec.Best, Score: rec.Score, Query: rec.Query})

	if rec.Found {
		e.logger.Info("matched", "title", rec.Best.Title, "artist", rec.Best.PrimaryArtist(), "score", fmt.Sprintf("%.3f", rec.Score))
	} else {
		e.logger.Info("no suitable match", "title", src.Title)
	}
	return rec, false
}

func (e *Engine) finish(rec MatchRecord, best *Candidate, score float64, query string) MatchRecord {
	if best == nil {
		return rec
	}
	rec.Best, rec.Score, rec.Query, rec.Found = best, score, query, true
	return rec
}

func (e *Engine) interrupted(ctx context.Context, done, total int) error {
	cause := context.Cause(ctx)
	if cause == nil {
		// the limiter refuses waits that would overrun the deadline before ctx is done
		cause = context.DeadlineExceeded
	}

	e.logger.Warn("matching interrupted", "done", done, "total", total)
	return fmt.Errorf("%w: matched %d of %d tracks: %w", shared.ErrTimeout, done, total, cause)
}

func checkProvider(p SearchProvider) error {
	if p == nil {
		return fmt.Errorf("%w: no search provider", shared.ErrInvalidConfig)
	}
	if r, ok := p.(Readier); ok {
		if err := r.Ready(); err != nil {
			return fmt.Errorf("%w: search provider not ready: %w", shared.ErrInvalidConfig, err)
		}
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}
