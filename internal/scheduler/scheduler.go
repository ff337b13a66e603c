// Package scheduler decides which sources are due for fetch, applying
// cadence rules and failure-based backoff, and drives the daemon loop.
package scheduler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/rowanhart/localwire/internal/store"
	"github.com/rowanhart/localwire/pkg/classify"
	"github.com/rowanhart/localwire/pkg/source"
)

// Config holds the cadence rules.
type Config struct {
	DefaultInterval time.Duration // cadence for sources with no own interval
	ThrottledMin    time.Duration // minimum cadence after a recent 403
	ForbiddenWindow time.Duration // how long a 403 keeps throttling
	PreFetchDelay   time.Duration // fixed delay before fetching throttled sources
}

// Obituary sources run on a fixed cadence regardless of configuration:
// funeral homes publish on their own clock.
const obituaryInterval = 6 * time.Hour

// DefaultConfig returns the standard cadence rules.
func DefaultConfig() Config {
	return Config{
		DefaultInterval: time.Hour,
		ThrottledMin:    30 * time.Minute,
		ForbiddenWindow: time.Hour,
		PreFetchDelay:   5 * time.Second,
	}
}

// Scheduler selects due sources. The breaker it owns is the only state
// shared across cycles.
type Scheduler struct {
	cfg     Config
	breaker *Breaker
	now     func() time.Time
}

// New creates a scheduler around the given breaker.
func New(cfg Config, breaker *Breaker) *Scheduler {
	if cfg.DefaultInterval == 0 {
		cfg.DefaultInterval = time.Hour
	}
	if cfg.ThrottledMin == 0 {
		cfg.ThrottledMin = 30 * time.Minute
	}
	if cfg.ForbiddenWindow == 0 {
		cfg.ForbiddenWindow = time.Hour
	}
	if cfg.PreFetchDelay == 0 {
		cfg.PreFetchDelay = 5 * time.Second
	}
	return &Scheduler{cfg: cfg, breaker: breaker, now: time.Now}
}

// Breaker exposes the scheduler's breaker for recording fetch outcomes.
func (s *Scheduler) Breaker() *Breaker { return s.breaker }

// Due returns the subset of sources due for fetch. force bypasses cadence
// but never the breaker, the enabled flag, or the in-flight guard.
func (s *Scheduler) Due(rows []store.SourceRow, force bool) []source.Config {
	now := s.now()
	var due []source.Config

	for _, row := range rows {
		if !row.Enabled {
			continue
		}
		if !s.breaker.Allow(row.ID) {
			continue
		}

		cfg := row.Config()
		state := row.State()

		interval := cfg.RefreshInterval
		if interval == 0 {
			interval = s.cfg.DefaultInterval
		}
		if classify.Category(cfg.Category) == classify.CategoryObituaries {
			interval = obituaryInterval
		}

		// A recent 403 throttles the source and adds a pre-fetch delay.
		throttled := state.LastErrorCode == http.StatusForbidden &&
			now.Sub(state.LastErrorTime) < s.cfg.ForbiddenWindow
		if throttled {
			if interval < s.cfg.ThrottledMin {
				interval = s.cfg.ThrottledMin
			}
			cfg.PreFetchDelay = s.cfg.PreFetchDelay
		}

		if !force && !state.LastFetchTime.IsZero() && now.Sub(state.LastFetchTime) < interval {
			continue
		}

		due = append(due, cfg)
	}
	return due
}

// CycleFunc runs one full aggregation cycle.
type CycleFunc func(ctx context.Context, force bool) error

// Runner is the daemon loop: periodic cycles until the context is
// cancelled.
type Runner struct {
	interval time.Duration
	cycle    CycleFunc
	log      *slog.Logger
}

// NewRunner creates the daemon loop.
func NewRunner(interval time.Duration, cycle CycleFunc, log *slog.Logger) *Runner {
	if interval == 0 {
		interval = 15 * time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &Runner{interval: interval, cycle: cycle, log: log}
}

// Run blocks until ctx is cancelled, running one cycle immediately and
// then one per tick.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info("scheduler starting", "interval", r.interval)
	if err := r.cycle(ctx, false); err != nil {
		r.log.Error("cycle failed", "err", err)
	}

	for {
		select {
		case <-ctx.Done():
			r.log.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := r.cycle(ctx, false); err != nil {
				r.log.Error("cycle failed", "err", err)
			}
		}
	}
}
