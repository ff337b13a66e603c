// Package aggregator wires the pipeline: due-source selection, concurrent
// fetch, dedup, scoring, classification, and publication-state updates.
package aggregator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rowanhart/localwire/internal/scheduler"
	"github.com/rowanhart/localwire/internal/store"
	"github.com/rowanhart/localwire/pkg/classify"
	"github.com/rowanhart/localwire/pkg/dedup"
	"github.com/rowanhart/localwire/pkg/pubstate"
	"github.com/rowanhart/localwire/pkg/relevance"
	"github.com/rowanhart/localwire/pkg/source"
)

// Aggregator is the single entry point for schedulers, the CLI, and
// downstream generation.
type Aggregator struct {
	store    store.Store
	sched    *scheduler.Scheduler
	runner   *source.Runner
	tracker  *pubstate.Tracker
	scoring  relevance.Config
	feedback relevance.AdjusterConfig
	locale   string
	deadline time.Duration
	log      *slog.Logger
}

// New assembles the pipeline. deadline is the advisory whole-cycle budget.
func New(
	s store.Store,
	sched *scheduler.Scheduler,
	runner *source.Runner,
	tracker *pubstate.Tracker,
	scoring relevance.Config,
	feedback relevance.AdjusterConfig,
	locale string,
	deadline time.Duration,
	log *slog.Logger,
) *Aggregator {
	if log == nil {
		log = slog.Default()
	}
	return &Aggregator{
		store:    s,
		sched:    sched,
		runner:   runner,
		tracker:  tracker,
		scoring:  scoring,
		feedback: feedback,
		locale:   locale,
		deadline: deadline,
		log:      log,
	}
}

// Aggregate runs one full cycle and returns the articles in republish
// scope: everything past the watermark, or the full corpus under force.
// Per-source failures never abort the cycle; persistence failures do.
func (a *Aggregator) Aggregate(ctx context.Context, force bool) ([]store.Article, error) {
	start := time.Now()
	log := a.log.With("cycle", uuid.NewString()[:8])

	rows, err := a.store.ListSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("load sources: %w", err)
	}
	srcByID := make(map[string]source.Config, len(rows))
	for _, row := range rows {
		srcByID[row.ID] = row.Config()
	}

	due := a.sched.Due(rows, force)
	log.Info("cycle start", "sources", len(rows), "due", len(due), "force", force)

	batch, err := a.fetchPhase(ctx, log, due)
	if err != nil {
		return nil, err
	}

	if a.deadline > 0 && time.Since(start) > a.deadline {
		log.Warn("cycle deadline exceeded, continuing with partial results",
			"elapsed", time.Since(start), "deadline", a.deadline)
	}

	if err := a.reducePhase(ctx, log, batch, srcByID, force); err != nil {
		return nil, err
	}

	out, err := a.republishScope(ctx, force)
	if err != nil {
		return nil, err
	}

	log.Info("cycle done",
		"fetched", len(batch), "scope", len(out), "elapsed", time.Since(start))
	return out, nil
}

// fetchPhase fans out over due sources and records every attempt's outcome
// on the breaker and in the source state, independent of result.
func (a *Aggregator) fetchPhase(ctx context.Context, log *slog.Logger, due []source.Config) ([]source.RawArticle, error) {
	breaker := a.sched.Breaker()

	// A source whose previous cycle is still outstanding is skipped, not
	// queued.
	fetchable := due[:0:0]
	for _, cfg := range due {
		if breaker.BeginFetch(cfg.ID) {
			fetchable = append(fetchable, cfg)
		} else {
			log.Warn("fetch still outstanding from previous cycle", "source", cfg.ID)
		}
	}
	defer func() {
		for _, cfg := range fetchable {
			breaker.EndFetch(cfg.ID)
		}
	}()

	results := a.runner.FetchAll(ctx, fetchable)

	now := time.Now().UTC()
	var batch []source.RawArticle
	for _, res := range results {
		st := source.State{
			SourceID:         res.Source.ID,
			LastFetchTime:    now,
			LastArticleCount: len(res.Articles),
		}
		if res.Err != nil {
			st.LastError = res.Err.Error()
			st.LastErrorCode = source.StatusCode(res.Err)
			st.LastErrorTime = now
			st.ConsecutiveFailures = breaker.RecordFailure(res.Source.ID)
			log.Warn("source failed",
				"source", res.Source.ID, "kind", source.Kind(res.Err), "err", res.Err)
		} else {
			breaker.RecordSuccess(res.Source.ID)
			log.Debug("source fetched",
				"source", res.Source.ID, "articles", len(res.Articles), "elapsed", res.Elapsed)
			batch = append(batch, res.Articles...)
		}

		if err := a.store.UpdateSourceState(ctx, st); err != nil {
			return nil, fmt.Errorf("record source state: %w", err)
		}
	}
	return batch, nil
}

// reducePhase dedupes the pooled batch against itself and the persisted
// store, then scores, classifies, and persists in stable input order. A
// forced cycle skips the persisted-key drop so known articles flow back
// through scoring and classification with the current training history.
func (a *Aggregator) reducePhase(ctx context.Context, log *slog.Logger, batch []source.RawArticle, srcByID map[string]source.Config, force bool) error {
	var existing map[string]bool
	if !force {
		keys, err := a.store.ExistingKeys(ctx)
		if err != nil {
			return fmt.Errorf("load identity keys: %w", err)
		}
		existing = keys
	}
	unique := dedup.Dedupe(batch, existing)
	log.Info("dedup", "batch", len(batch), "unique", len(unique), "force", force)

	scorer, classifier, err := a.buildEvaluators(ctx)
	if err != nil {
		return err
	}

	for _, raw := range unique {
		src := srcByID[raw.SourceID]

		stellar, err := a.stellarFlag(ctx, dedup.Key(raw))
		if err != nil {
			return err
		}
		res := scorer.Score(raw, src.Name, stellar)
		category, confidence := classifier.Classify(raw, src)

		article := store.Article{
			IdentityKey:        dedup.Key(raw),
			Title:              raw.Title,
			URL:                raw.URL,
			PublishedAt:        raw.PublishedAt,
			Byline:             raw.Byline,
			Content:            raw.Content,
			SourceID:           raw.SourceID,
			FetchedAt:          raw.FetchedAt,
			RelevanceScore:     res.Score,
			RawScore:           res.Raw,
			Category:           string(category),
			CategoryConfidence: confidence,
			MatchedTags:        res.Matched,
			MissingTags:        res.Missing,
			LocaleTags:         localeTags(res.Matched),
		}

		id, err := a.store.UpsertArticle(ctx, &article)
		if err != nil {
			return fmt.Errorf("persist article: %w", err)
		}

		if err := a.applyManagement(ctx, id, raw, src, res); err != nil {
			return fmt.Errorf("persist management state: %w", err)
		}
	}
	return nil
}

// applyManagement decides the article's flags. Rejected articles are kept,
// flagged with a reason; nothing is silently dropped.
func (a *Aggregator) applyManagement(ctx context.Context, id int64, raw source.RawArticle, src source.Config, res relevance.Result) error {
	switch {
	case raw.TooShort:
		return a.tracker.AutoReject(ctx, id, raw.ShortReason)
	case src.RequireLocaleMention && !res.HasLocale:
		return a.tracker.AutoReject(ctx, id, "source requires a locale mention; none found")
	case res.Score < a.scoring.RejectThreshold:
		return a.tracker.AutoReject(ctx, id, res.AutoRejectReason(a.scoring.RejectThreshold))
	default:
		return a.tracker.Accept(ctx, id)
	}
}

// stellarFlag reports whether a previously persisted article carrying this
// identity key was marked exemplary by an operator. New articles have no
// management row yet and score without the boost.
func (a *Aggregator) stellarFlag(ctx context.Context, key string) (bool, error) {
	article, err := a.store.GetArticleByKey(ctx, key)
	if err != nil {
		return false, fmt.Errorf("look up article %s: %w", key, err)
	}
	if article == nil {
		return false, nil
	}
	ms, err := a.store.GetManagementState(ctx, article.ID)
	if err != nil {
		return false, fmt.Errorf("look up management state %d: %w", article.ID, err)
	}
	return ms != nil && ms.Stellar, nil
}

// buildEvaluators loads the locale's training history into a fresh scorer
// and classifier for this cycle.
func (a *Aggregator) buildEvaluators(ctx context.Context) (*relevance.Scorer, *classify.Classifier, error) {
	feedback, err := a.store.ListTrainingSignals(ctx, a.locale, store.SignalFeedback)
	if err != nil {
		return nil, nil, fmt.Errorf("load feedback signals: %w", err)
	}
	signals := make([]relevance.Signal, 0, len(feedback))
	for _, sig := range feedback {
		signals = append(signals, relevance.Signal{
			Features:  sig.Features,
			Positive:  sig.Label == "positive",
			CreatedAt: sig.CreatedAt,
		})
	}
	adjuster := relevance.NewAdjuster(a.feedback, signals)

	corrections, err := a.store.ListTrainingSignals(ctx, a.locale, store.SignalCorrection)
	if err != nil {
		return nil, nil, fmt.Errorf("load corrections: %w", err)
	}
	examples := make([]classify.Example, 0, len(corrections))
	for _, sig := range corrections {
		examples = append(examples, classify.Example{
			Text:      sig.Text,
			Category:  classify.Category(sig.Label),
			CreatedAt: sig.CreatedAt,
		})
	}

	return relevance.NewScorer(a.scoring, adjuster), classify.New(examples), nil
}

// republishScope lists the articles downstream generation should process
// and advances the watermark past them.
func (a *Aggregator) republishScope(ctx context.Context, force bool) ([]store.Article, error) {
	var sinceID int64
	if !force {
		id, err := a.tracker.Watermark(ctx)
		if err != nil {
			return nil, fmt.Errorf("read watermark: %w", err)
		}
		sinceID = id
	}

	out, err := a.store.ListArticles(ctx, store.ArticleFilter{SinceID: sinceID, Limit: 10000})
	if err != nil {
		return nil, fmt.Errorf("list republish scope: %w", err)
	}

	if len(out) > 0 {
		if err := a.tracker.Advance(ctx, out[len(out)-1].ID); err != nil {
			return nil, fmt.Errorf("advance watermark: %w", err)
		}
	}
	return out, nil
}

func localeTags(matched []string) []string {
	var tags []string
	for _, tag := range matched {
		if strings.HasPrefix(tag, "locale:") ||
			strings.HasPrefix(tag, "nearby:") ||
			strings.HasPrefix(tag, "landmark:") {
			tags = append(tags, tag)
		}
	}
	return tags
}
