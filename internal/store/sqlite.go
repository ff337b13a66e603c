package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/rowanhart/localwire/pkg/source"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// New opens a SQLite database and runs migrations.
func New(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UpsertArticle inserts a new canonical article or, when the identity key
// already exists, updates only the mutable score/category/tag fields. The
// core fields set on first insert never change. Returns the article id.
func (s *SQLiteStore) UpsertArticle(ctx context.Context, a *Article) (int64, error) {
	matched, _ := json.Marshal(emptyIfNil(a.MatchedTags))
	missing, _ := json.Marshal(emptyIfNil(a.MissingTags))
	locale, _ := json.Marshal(emptyIfNil(a.LocaleTags))

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO articles (identity_key, title, url, published_at, byline, content,
			source_id, fetched_at, relevance_score, raw_score, category,
			category_confidence, matched_tags, missing_tags, locale_tags)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(identity_key) DO UPDATE SET
			relevance_score = excluded.relevance_score,
			raw_score = excluded.raw_score,
			category = excluded.category,
			category_confidence = excluded.category_confidence,
			matched_tags = excluded.matched_tags,
			missing_tags = excluded.missing_tags,
			locale_tags = excluded.locale_tags,
			fetched_at = excluded.fetched_at
	`, a.IdentityKey, a.Title, a.URL, a.PublishedAt, a.Byline, a.Content,
		a.SourceID, a.FetchedAt, a.RelevanceScore, a.RawScore, a.Category,
		a.CategoryConfidence, string(matched), string(missing), string(locale))
	if err != nil {
		return 0, fmt.Errorf("upsert article %s: %w", a.IdentityKey, err)
	}

	var id int64
	if err := s.db.GetContext(ctx, &id,
		"SELECT id FROM articles WHERE identity_key = ?", a.IdentityKey); err != nil {
		return 0, fmt.Errorf("resolve article id %s: %w", a.IdentityKey, err)
	}
	a.ID = id
	return id, nil
}

func (s *SQLiteStore) GetArticle(ctx context.Context, id int64) (*Article, error) {
	var a Article
	if err := s.db.GetContext(ctx, &a, "SELECT * FROM articles WHERE id = ?", id); err != nil {
		return nil, fmt.Errorf("get article %d: %w", id, err)
	}
	decodeArticleTags(&a)
	return &a, nil
}

func (s *SQLiteStore) GetArticleByKey(ctx context.Context, key string) (*Article, error) {
	var a Article
	err := s.db.GetContext(ctx, &a, "SELECT * FROM articles WHERE identity_key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get article by key: %w", err)
	}
	decodeArticleTags(&a)
	return &a, nil
}

func (s *SQLiteStore) ListArticles(ctx context.Context, f ArticleFilter) ([]Article, error) {
	query := "SELECT a.* FROM articles a"
	var args []any

	if f.Rejected != nil {
		query += " JOIN management_state m ON m.article_id = a.id"
	}
	query += " WHERE 1=1"

	if f.Category != "" {
		query += " AND a.category = ?"
		args = append(args, f.Category)
	}
	if f.SourceID != "" {
		query += " AND a.source_id = ?"
		args = append(args, f.SourceID)
	}
	if f.SinceID > 0 {
		query += " AND a.id > ?"
		args = append(args, f.SinceID)
	}
	if !f.FetchedSince.IsZero() {
		query += " AND a.fetched_at >= ?"
		args = append(args, f.FetchedSince)
	}
	if f.Rejected != nil {
		if *f.Rejected {
			query += " AND (m.rejected = 1 OR m.auto_rejected = 1)"
		} else {
			query += " AND m.rejected = 0 AND m.auto_rejected = 0"
		}
	}

	query += " ORDER BY a.id"

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)

	var articles []Article
	if err := s.db.SelectContext(ctx, &articles, query, args...); err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	for i := range articles {
		decodeArticleTags(&articles[i])
	}
	return articles, nil
}

func (s *SQLiteStore) ExistingKeys(ctx context.Context) (map[string]bool, error) {
	var keys []string
	if err := s.db.SelectContext(ctx, &keys, "SELECT identity_key FROM articles"); err != nil {
		return nil, fmt.Errorf("list identity keys: %w", err)
	}
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set, nil
}

// PurgeDuplicateKeys removes historical duplicate rows sharing an identity
// key, keeping the highest-id row as authoritative. The unique index on
// identity_key prevents new duplicates; this is maintenance for databases
// that predate it.
func (s *SQLiteStore) PurgeDuplicateKeys(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM articles WHERE id NOT IN (
			SELECT MAX(id) FROM articles GROUP BY identity_key
		)
	`)
	if err != nil {
		return 0, fmt.Errorf("purge duplicate keys: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *SQLiteStore) GetManagementState(ctx context.Context, articleID int64) (*ManagementState, error) {
	var ms ManagementState
	err := s.db.GetContext(ctx, &ms,
		"SELECT * FROM management_state WHERE article_id = ? ORDER BY updated_at DESC LIMIT 1",
		articleID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get management state %d: %w", articleID, err)
	}
	return &ms, nil
}

// UpsertManagementState replaces the article's management row inside one
// transaction, deleting any pre-existing rows first. Blind inserts produced
// duplicate rows in the past; delete-then-insert self-heals them and keeps
// the one-row-per-article invariant.
func (s *SQLiteStore) UpsertManagementState(ctx context.Context, ms *ManagementState) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin management upsert: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM management_state WHERE article_id = ?", ms.ArticleID); err != nil {
		return fmt.Errorf("clear management state %d: %w", ms.ArticleID, err)
	}

	if ms.UpdatedAt.IsZero() {
		ms.UpdatedAt = time.Now().UTC()
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO management_state (article_id, enabled, rejected, auto_rejected,
			auto_reject_reason, top_story, featured, stellar, display_order, feedback_label, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, ms.ArticleID, ms.Enabled, ms.Rejected, ms.AutoRejected, ms.AutoRejectReason,
		ms.TopStory, ms.Featured, ms.Stellar, ms.DisplayOrder, ms.FeedbackLabel, ms.UpdatedAt); err != nil {
		return fmt.Errorf("insert management state %d: %w", ms.ArticleID, err)
	}

	return tx.Commit()
}

func (s *SQLiteStore) AddTrainingSignal(ctx context.Context, sig *TrainingSignal) error {
	features, _ := json.Marshal(emptyIfNil(sig.Features))
	if sig.CreatedAt.IsZero() {
		sig.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO training_signals (kind, locale, label, text, features, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, sig.Kind, sig.Locale, sig.Label, sig.Text, string(features), sig.CreatedAt)
	if err != nil {
		return fmt.Errorf("add training signal: %w", err)
	}
	sig.ID, _ = res.LastInsertId()
	return nil
}

func (s *SQLiteStore) ListTrainingSignals(ctx context.Context, locale, kind string) ([]TrainingSignal, error) {
	query := "SELECT * FROM training_signals WHERE locale = ?"
	args := []any{locale}
	if kind != "" {
		query += " AND kind = ?"
		args = append(args, kind)
	}
	query += " ORDER BY created_at"

	var signals []TrainingSignal
	if err := s.db.SelectContext(ctx, &signals, query, args...); err != nil {
		return nil, fmt.Errorf("list training signals: %w", err)
	}
	for i := range signals {
		json.Unmarshal([]byte(signals[i].FeaturesJSON), &signals[i].Features)
	}
	return signals, nil
}

// UpsertSource seeds or updates a source's configuration columns. Runtime
// state columns are untouched.
func (s *SQLiteStore) UpsertSource(ctx context.Context, cfg source.Config) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sources (id, name, endpoint, mode, category, enabled,
			require_locale_mention, refresh_secs, min_content_length,
			item_selector, title_selector, link_selector, summary_selector)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			endpoint = excluded.endpoint,
			mode = excluded.mode,
			category = excluded.category,
			enabled = excluded.enabled,
			require_locale_mention = excluded.require_locale_mention,
			refresh_secs = excluded.refresh_secs,
			min_content_length = excluded.min_content_length,
			item_selector = excluded.item_selector,
			title_selector = excluded.title_selector,
			link_selector = excluded.link_selector,
			summary_selector = excluded.summary_selector
	`, cfg.ID, cfg.Name, cfg.Endpoint, string(cfg.Mode), cfg.Category, cfg.Enabled,
		cfg.RequireLocaleMention, int64(cfg.RefreshInterval.Seconds()), cfg.MinContentLength,
		cfg.ItemSelector, cfg.TitleSelector, cfg.LinkSelector, cfg.SummarySelector)
	if err != nil {
		return fmt.Errorf("upsert source %s: %w", cfg.ID, err)
	}
	return nil
}

func (s *SQLiteStore) ListSources(ctx context.Context) ([]SourceRow, error) {
	var rows []SourceRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT * FROM sources ORDER BY id"); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	return rows, nil
}

// UpdateSourceState records the outcome of a fetch attempt, success or
// failure, in one atomic statement.
func (s *SQLiteStore) UpdateSourceState(ctx context.Context, st source.State) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sources SET
			last_fetch_time = ?,
			last_article_count = ?,
			last_error = ?,
			last_error_code = ?,
			last_error_time = ?,
			consecutive_failures = ?
		WHERE id = ?
	`, st.LastFetchTime, st.LastArticleCount, st.LastError, st.LastErrorCode,
		st.LastErrorTime, st.ConsecutiveFailures, st.SourceID)
	if err != nil {
		return fmt.Errorf("update source state %s: %w", st.SourceID, err)
	}
	return nil
}

func (s *SQLiteStore) Watermark(ctx context.Context, locale string) (int64, time.Time, error) {
	var row struct {
		LastArticleID int64     `db:"last_article_id"`
		UpdatedAt     time.Time `db:"updated_at"`
	}
	err := s.db.GetContext(ctx, &row,
		"SELECT last_article_id, updated_at FROM watermarks WHERE locale = ?", locale)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, time.Time{}, nil
	}
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("get watermark %s: %w", locale, err)
	}
	return row.LastArticleID, row.UpdatedAt, nil
}

func (s *SQLiteStore) SetWatermark(ctx context.Context, locale string, articleID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO watermarks (locale, last_article_id, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(locale) DO UPDATE SET
			last_article_id = excluded.last_article_id,
			updated_at = excluded.updated_at
	`, locale, articleID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set watermark %s: %w", locale, err)
	}
	return nil
}

func decodeArticleTags(a *Article) {
	json.Unmarshal([]byte(a.MatchedTagsJSON), &a.MatchedTags)
	json.Unmarshal([]byte(a.MissingTagsJSON), &a.MissingTags)
	json.Unmarshal([]byte(a.LocaleTagsJSON), &a.LocaleTags)
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
