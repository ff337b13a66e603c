package store

import (
	"context"
	"time"

	"github.com/rowanhart/localwire/pkg/source"
)

// Article is a persisted canonical article. The id is assigned on first
// insert; identity fields are immutable afterwards, score/category/tag
// fields are not. The pipeline never hard-deletes articles.
type Article struct {
	ID          int64     `db:"id" json:"id"`
	IdentityKey string    `db:"identity_key" json:"identity_key"`
	Title       string    `db:"title" json:"title"`
	URL         string    `db:"url" json:"url"`
	PublishedAt time.Time `db:"published_at" json:"published_at"`
	Byline      string    `db:"byline" json:"byline"`
	Content     string    `db:"content" json:"content"`
	SourceID    string    `db:"source_id" json:"source_id"`
	FetchedAt   time.Time `db:"fetched_at" json:"fetched_at"`

	RelevanceScore     int    `db:"relevance_score" json:"relevance_score"`
	RawScore           int    `db:"raw_score" json:"raw_score"`
	Category           string `db:"category" json:"category"`
	CategoryConfidence int    `db:"category_confidence" json:"category_confidence"`

	MatchedTags []string `db:"-" json:"matched_tags"`
	MissingTags []string `db:"-" json:"missing_tags"`
	LocaleTags  []string `db:"-" json:"locale_tags"`

	MatchedTagsJSON string `db:"matched_tags" json:"-"`
	MissingTagsJSON string `db:"missing_tags" json:"-"`
	LocaleTagsJSON  string `db:"locale_tags" json:"-"`
}

// ManagementState is the single per-article row of operator-facing flags.
type ManagementState struct {
	ArticleID        int64     `db:"article_id" json:"article_id"`
	Enabled          bool      `db:"enabled" json:"enabled"`
	Rejected         bool      `db:"rejected" json:"rejected"`
	AutoRejected     bool      `db:"auto_rejected" json:"auto_rejected"`
	AutoRejectReason string    `db:"auto_reject_reason" json:"auto_reject_reason"`
	TopStory         bool      `db:"top_story" json:"top_story"`
	Featured         bool      `db:"featured" json:"featured"`
	Stellar          bool      `db:"stellar" json:"stellar"`
	DisplayOrder     int       `db:"display_order" json:"display_order"`
	FeedbackLabel    string    `db:"feedback_label" json:"feedback_label"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// Signal kinds in the training log.
const (
	SignalFeedback   = "feedback"   // operator kept/rejected an article
	SignalCorrection = "correction" // operator corrected a category
)

// TrainingSignal is one append-only training record.
type TrainingSignal struct {
	ID        int64     `db:"id" json:"id"`
	Kind      string    `db:"kind" json:"kind"`
	Locale    string    `db:"locale" json:"locale"`
	Label     string    `db:"label" json:"label"`
	Text      string    `db:"text" json:"text"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`

	Features     []string `db:"-" json:"features"`
	FeaturesJSON string   `db:"features" json:"-"`
}

// SourceRow joins a source's configuration and its runtime fetch state.
type SourceRow struct {
	ID                   string    `db:"id"`
	Name                 string    `db:"name"`
	Endpoint             string    `db:"endpoint"`
	Mode                 string    `db:"mode"`
	Category             string    `db:"category"`
	Enabled              bool      `db:"enabled"`
	RequireLocaleMention bool      `db:"require_locale_mention"`
	RefreshSecs          int64     `db:"refresh_secs"`
	MinContentLength     int       `db:"min_content_length"`
	ItemSelector         string    `db:"item_selector"`
	TitleSelector        string    `db:"title_selector"`
	LinkSelector         string    `db:"link_selector"`
	SummarySelector      string    `db:"summary_selector"`
	LastFetchTime        time.Time `db:"last_fetch_time"`
	LastArticleCount     int       `db:"last_article_count"`
	LastError            string    `db:"last_error"`
	LastErrorCode        int       `db:"last_error_code"`
	LastErrorTime        time.Time `db:"last_error_time"`
	ConsecutiveFailures  int       `db:"consecutive_failures"`
}

// Config converts the row to the fetcher-facing configuration.
func (r SourceRow) Config() source.Config {
	return source.Config{
		ID:                   r.ID,
		Name:                 r.Name,
		Endpoint:             r.Endpoint,
		Mode:                 source.Mode(r.Mode),
		Category:             r.Category,
		Enabled:              r.Enabled,
		RequireLocaleMention: r.RequireLocaleMention,
		RefreshInterval:      time.Duration(r.RefreshSecs) * time.Second,
		MinContentLength:     r.MinContentLength,
		ItemSelector:         r.ItemSelector,
		TitleSelector:        r.TitleSelector,
		LinkSelector:         r.LinkSelector,
		SummarySelector:      r.SummarySelector,
	}
}

// State converts the row to its runtime fetch state.
func (r SourceRow) State() source.State {
	return source.State{
		SourceID:            r.ID,
		LastFetchTime:       r.LastFetchTime,
		LastArticleCount:    r.LastArticleCount,
		LastError:           r.LastError,
		LastErrorCode:       r.LastErrorCode,
		LastErrorTime:       r.LastErrorTime,
		ConsecutiveFailures: r.ConsecutiveFailures,
	}
}

// ArticleFilter controls article listing.
type ArticleFilter struct {
	Category     string
	SourceID     string
	Rejected     *bool // filters on the management rejected/auto_rejected flags
	SinceID      int64 // exclusive lower bound on article id
	FetchedSince time.Time
	Limit        int
}

// Store is the persistence interface for the pipeline.
type Store interface {
	UpsertArticle(ctx context.Context, a *Article) (int64, error)
	GetArticle(ctx context.Context, id int64) (*Article, error)
	GetArticleByKey(ctx context.Context, key string) (*Article, error)
	ListArticles(ctx context.Context, f ArticleFilter) ([]Article, error)
	ExistingKeys(ctx context.Context) (map[string]bool, error)
	PurgeDuplicateKeys(ctx context.Context) (int64, error)

	GetManagementState(ctx context.Context, articleID int64) (*ManagementState, error)
	UpsertManagementState(ctx context.Context, ms *ManagementState) error

	AddTrainingSignal(ctx context.Context, sig *TrainingSignal) error
	ListTrainingSignals(ctx context.Context, locale, kind string) ([]TrainingSignal, error)

	UpsertSource(ctx context.Context, cfg source.Config) error
	ListSources(ctx context.Context) ([]SourceRow, error)
	UpdateSourceState(ctx context.Context, st source.State) error

	Watermark(ctx context.Context, locale string) (int64, time.Time, error)
	SetWatermark(ctx context.Context, locale string, articleID int64) error

	Close() error
}
