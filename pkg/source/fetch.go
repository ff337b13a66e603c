package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Result is the outcome of fetching one source. Errors are collected, not
// raised: one source failing never blocks or cancels the others.
type Result struct {
	Source   Config
	Articles []RawArticle
	Err      error
	Elapsed  time.Duration
}

// RunnerConfig bounds the parallel fan-out and the per-source retry policy.
type RunnerConfig struct {
	Timeout          time.Duration // per-source budget, covers all attempts
	MaxParallel      int
	MaxAttempts      int
	BaseDelay        time.Duration // doubled per attempt
	MaxDelay         time.Duration
	DefaultMinLength int // content below this is flagged, not dropped
}

// Runner fetches a set of due sources in parallel, one independent task per
// source, and pools the results.
type Runner struct {
	fetchers map[Mode]Fetcher
	cfg      RunnerConfig
	log      *slog.Logger
}

// NewRunner creates a runner over the given fetch-mode implementations.
func NewRunner(fetchers []Fetcher, cfg RunnerConfig, log *slog.Logger) *Runner {
	if cfg.Timeout == 0 {
		cfg.Timeout = 45 * time.Second
	}
	if cfg.MaxParallel == 0 {
		cfg.MaxParallel = 8
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay == 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay == 0 {
		cfg.MaxDelay = 15 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}

	byMode := make(map[Mode]Fetcher, len(fetchers))
	for _, f := range fetchers {
		byMode[f.Mode()] = f
	}
	return &Runner{fetchers: byMode, cfg: cfg, log: log}
}

// FetchAll fans out over sources with bounded parallelism. Results are
// returned in input order regardless of completion order.
func (r *Runner) FetchAll(ctx context.Context, sources []Config) []Result {
	results := make([]Result, len(sources))

	var g errgroup.Group
	g.SetLimit(r.cfg.MaxParallel)

	for i, cfg := range sources {
		g.Go(func() error {
			start := time.Now()
			articles, err := r.fetchOne(ctx, cfg)
			results[i] = Result{
				Source:   cfg,
				Articles: articles,
				Err:      err,
				Elapsed:  time.Since(start),
			}
			return nil
		})
	}

	g.Wait()
	return results
}

// fetchOne runs one source with its own timeout and retry loop.
func (r *Runner) fetchOne(ctx context.Context, cfg Config) ([]RawArticle, error) {
	fetcher, ok := r.fetchers[cfg.Mode]
	if !ok {
		return nil, NewParse(cfg.ID, fmt.Errorf("no fetcher for mode %q", cfg.Mode))
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	// Throttled sources get a fixed pre-fetch delay to reduce the chance
	// of further blocking.
	if cfg.PreFetchDelay > 0 {
		if err := sleepCtx(ctx, cfg.PreFetchDelay); err != nil {
			return nil, NewTransient(cfg.ID, err)
		}
	}

	delay := r.cfg.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		articles, err := fetcher.Fetch(ctx, cfg)
		if err == nil {
			r.flagShort(cfg, articles)
			return articles, nil
		}
		lastErr = err

		if !Retryable(err) || attempt == r.cfg.MaxAttempts {
			break
		}

		r.log.Debug("fetch retry",
			"source", cfg.ID, "attempt", attempt, "delay", delay, "err", err)

		if serr := sleepCtx(ctx, delay); serr != nil {
			return nil, NewTransient(cfg.ID, serr)
		}
		delay *= 2
		if delay > r.cfg.MaxDelay {
			delay = r.cfg.MaxDelay
		}
	}

	return nil, lastErr
}

// flagShort marks articles whose content is below the source's minimum
// length. They are never silently dropped; the scorer's auto-reject path
// records the reason.
func (r *Runner) flagShort(cfg Config, articles []RawArticle) {
	minLen := cfg.MinContentLength
	if minLen == 0 {
		minLen = r.cfg.DefaultMinLength
	}
	if minLen <= 0 {
		return
	}
	for i := range articles {
		if len(articles[i].Content) < minLen {
			articles[i].TooShort = true
			articles[i].ShortReason = fmt.Sprintf("content %d chars below source minimum %d",
				len(articles[i].Content), minLen)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
