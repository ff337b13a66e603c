package source

import (
	"context"
	"time"
)

// Mode identifies how a source is fetched.
type Mode string

const (
	ModeRSS    Mode = "rss"
	ModeScrape Mode = "scrape"
)

// Config describes a single news source. Operator tooling creates and edits
// these; the scheduler reads them every cycle.
type Config struct {
	ID                   string        `json:"id" db:"id"`
	Name                 string        `json:"name" db:"name"`
	Endpoint             string        `json:"endpoint" db:"endpoint"`
	Mode                 Mode          `json:"mode" db:"mode"`
	Category             string        `json:"category" db:"category"`
	Enabled              bool          `json:"enabled" db:"enabled"`
	RequireLocaleMention bool          `json:"require_locale_mention" db:"require_locale_mention"`
	RefreshInterval      time.Duration `json:"refresh_interval" db:"-"`
	MinContentLength     int           `json:"min_content_length" db:"min_content_length"`

	// Scrape-mode selectors. Empty values fall back to generic article markup.
	ItemSelector    string `json:"item_selector,omitempty" db:"item_selector"`
	TitleSelector   string `json:"title_selector,omitempty" db:"title_selector"`
	LinkSelector    string `json:"link_selector,omitempty" db:"link_selector"`
	SummarySelector string `json:"summary_selector,omitempty" db:"summary_selector"`

	// PreFetchDelay is set by the scheduler for recently throttled sources.
	// Never persisted.
	PreFetchDelay time.Duration `json:"-" db:"-"`
}

// State is the store-owned runtime state of a source, updated after every
// fetch attempt regardless of outcome.
type State struct {
	SourceID            string    `db:"source_id"`
	LastFetchTime       time.Time `db:"last_fetch_time"`
	LastArticleCount    int       `db:"last_article_count"`
	LastError           string    `db:"last_error"`
	LastErrorCode       int       `db:"last_error_code"`
	LastErrorTime       time.Time `db:"last_error_time"`
	ConsecutiveFailures int       `db:"consecutive_failures"`
}

// RawArticle is the normalized fetch output for both modes. Ephemeral:
// produced by fetchers, consumed by the deduplicator.
type RawArticle struct {
	Title       string
	URL         string
	PublishedAt time.Time
	Byline      string
	Content     string
	SourceID    string
	FetchedAt   time.Time

	// TooShort marks content below the per-source minimum length. The
	// article is still produced so downstream rejection stays auditable.
	TooShort    bool
	ShortReason string
}

// Fetcher retrieves articles for one fetch mode.
type Fetcher interface {
	Mode() Mode
	Fetch(ctx context.Context, cfg Config) ([]RawArticle, error)
}
