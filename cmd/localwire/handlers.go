package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rowanhart/localwire/internal/aggregator"
	"github.com/rowanhart/localwire/internal/config"
	"github.com/rowanhart/localwire/internal/logger"
	"github.com/rowanhart/localwire/internal/scheduler"
	"github.com/rowanhart/localwire/internal/store"
	"github.com/rowanhart/localwire/pkg/pubstate"
	"github.com/rowanhart/localwire/pkg/server"
	"github.com/rowanhart/localwire/pkg/source"
)

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

// app bundles the wired pipeline for the command handlers.
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	store   *store.SQLiteStore
	sched   *scheduler.Scheduler
	tracker *pubstate.Tracker
	agg     *aggregator.Aggregator
}

func buildApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg.Log.Level)

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	// Seed configured sources; runtime state columns stay store-owned.
	ctx := context.Background()
	for _, entry := range cfg.Sources {
		if err := db.UpsertSource(ctx, entry.ToSource()); err != nil {
			db.Close()
			return nil, fmt.Errorf("seed source %s: %w", entry.ID, err)
		}
	}

	breaker := scheduler.NewBreaker(cfg.Breaker.FailureThreshold, cfg.Breaker.ParseCooldown())
	sched := scheduler.New(scheduler.Config{
		DefaultInterval: cfg.Schedule.ParseDefaultRefresh(),
		ThrottledMin:    cfg.Schedule.ParseThrottledMin(),
		ForbiddenWindow: cfg.Schedule.ParseForbiddenWindow(),
		PreFetchDelay:   cfg.Schedule.ParsePreFetchDelay(),
	}, breaker)

	client := &http.Client{Timeout: 30 * time.Second}
	runner := source.NewRunner(
		[]source.Fetcher{source.NewRSSFetcher(client), source.NewScrapeFetcher(client)},
		cfg.Fetch.RunnerConfig(),
		log,
	)

	tracker := pubstate.New(db, cfg.Locale.Key())
	agg := aggregator.New(db, sched, runner, tracker,
		cfg.Scoring, cfg.Feedback, cfg.Locale.Key(),
		cfg.Schedule.ParseCycleDeadline(), log)

	return &app{
		cfg:     cfg,
		log:     log,
		store:   db,
		sched:   sched,
		tracker: tracker,
		agg:     agg,
	}, nil
}

func (a *app) close() {
	a.store.Close()
}

func runAggregate(force bool) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	articles, err := a.agg.Aggregate(context.Background(), force)
	if err != nil {
		return fmt.Errorf("aggregate: %w", err)
	}

	fmt.Printf("%d articles in republish scope\n", len(articles))
	return nil
}

func runArticles(rejected bool, category string, limit int, jsonOutput bool) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	filter := store.ArticleFilter{Category: category, Limit: limit}
	if rejected {
		filter.Rejected = &rejected
	}

	articles, err := a.store.ListArticles(context.Background(), filter)
	if err != nil {
		return fmt.Errorf("list articles: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(articles)
	}

	if len(articles) == 0 {
		fmt.Println("no articles found (try: localwire aggregate)")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCORE\tCATEGORY\tSOURCE\tTITLE")
	for _, art := range articles {
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\n",
			art.ID, art.RelevanceScore, art.Category, art.SourceID, truncate(art.Title, 60))
	}
	return w.Flush()
}

func runSources() error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	rows, err := a.store.ListSources(context.Background())
	if err != nil {
		return fmt.Errorf("list sources: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODE\tENABLED\tLAST FETCH\tARTICLES\tFAILURES\tLAST ERROR")
	for _, row := range rows {
		lastFetch := "never"
		if !row.LastFetchTime.IsZero() {
			lastFetch = row.LastFetchTime.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%d\t%d\t%s\n",
			row.ID, row.Mode, row.Enabled, lastFetch,
			row.LastArticleCount, row.ConsecutiveFailures, truncate(row.LastError, 40))
	}
	return w.Flush()
}

func runServe(port int) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	if port == 0 {
		port = a.cfg.Server.Port
	}

	srv := server.New(a.store, a.agg, a.tracker, a.sched.Breaker(),
		a.cfg.Locale.Key(), port, a.log)
	return srv.ListenAndServe()
}

func runDaemon(port int) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	if port == 0 {
		port = a.cfg.Server.Port
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runner := scheduler.NewRunner(a.cfg.Schedule.ParseCycleInterval(),
		func(ctx context.Context, force bool) error {
			_, err := a.agg.Aggregate(ctx, force)
			return err
		}, a.log)

	go func() {
		if err := runner.Run(ctx); err != nil && ctx.Err() == nil {
			a.log.Error("scheduler error", "err", err)
		}
	}()

	srv := server.New(a.store, a.agg, a.tracker, a.sched.Breaker(),
		a.cfg.Locale.Key(), port, a.log)
	return srv.ListenAndServe()
}

func runDedupPurge() error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	purged, err := a.store.PurgeDuplicateKeys(context.Background())
	if err != nil {
		return fmt.Errorf("dedup purge: %w", err)
	}

	fmt.Printf("purged %d duplicate rows\n", purged)
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
