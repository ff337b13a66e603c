package store

const schema = `
CREATE TABLE IF NOT EXISTS articles (
    id                  INTEGER PRIMARY KEY AUTOINCREMENT,
    identity_key        TEXT NOT NULL,
    title               TEXT NOT NULL,
    url                 TEXT NOT NULL DEFAULT '',
    published_at        DATETIME NOT NULL,
    byline              TEXT NOT NULL DEFAULT '',
    content             TEXT NOT NULL DEFAULT '',
    source_id           TEXT NOT NULL,
    fetched_at          DATETIME NOT NULL,
    relevance_score     INTEGER NOT NULL DEFAULT 0,
    raw_score           INTEGER NOT NULL DEFAULT 0,
    category            TEXT NOT NULL DEFAULT 'news',
    category_confidence INTEGER NOT NULL DEFAULT 0,
    matched_tags        TEXT NOT NULL DEFAULT '[]',
    missing_tags        TEXT NOT NULL DEFAULT '[]',
    locale_tags         TEXT NOT NULL DEFAULT '[]'
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_articles_identity ON articles(identity_key);
CREATE INDEX IF NOT EXISTS idx_articles_source ON articles(source_id);
CREATE INDEX IF NOT EXISTS idx_articles_category ON articles(category);
CREATE INDEX IF NOT EXISTS idx_articles_fetched ON articles(fetched_at);

CREATE TABLE IF NOT EXISTS management_state (
    article_id         INTEGER NOT NULL REFERENCES articles(id),
    enabled            BOOLEAN NOT NULL DEFAULT 1,
    rejected           BOOLEAN NOT NULL DEFAULT 0,
    auto_rejected      BOOLEAN NOT NULL DEFAULT 0,
    auto_reject_reason TEXT NOT NULL DEFAULT '',
    top_story          BOOLEAN NOT NULL DEFAULT 0,
    featured           BOOLEAN NOT NULL DEFAULT 0,
    stellar            BOOLEAN NOT NULL DEFAULT 0,
    display_order      INTEGER NOT NULL DEFAULT 0,
    feedback_label     TEXT NOT NULL DEFAULT '',
    updated_at         DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_management_article ON management_state(article_id);

CREATE TABLE IF NOT EXISTS training_signals (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    kind       TEXT NOT NULL,
    locale     TEXT NOT NULL,
    label      TEXT NOT NULL,
    text       TEXT NOT NULL DEFAULT '',
    features   TEXT NOT NULL DEFAULT '[]',
    created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_signals_locale ON training_signals(locale, kind);

CREATE TABLE IF NOT EXISTS sources (
    id                     TEXT PRIMARY KEY,
    name                   TEXT NOT NULL,
    endpoint               TEXT NOT NULL,
    mode                   TEXT NOT NULL,
    category               TEXT NOT NULL DEFAULT '',
    enabled                BOOLEAN NOT NULL DEFAULT 1,
    require_locale_mention BOOLEAN NOT NULL DEFAULT 0,
    refresh_secs           INTEGER NOT NULL DEFAULT 0,
    min_content_length     INTEGER NOT NULL DEFAULT 0,
    item_selector          TEXT NOT NULL DEFAULT '',
    title_selector         TEXT NOT NULL DEFAULT '',
    link_selector          TEXT NOT NULL DEFAULT '',
    summary_selector       TEXT NOT NULL DEFAULT '',
    last_fetch_time        DATETIME NOT NULL DEFAULT '0001-01-01 00:00:00+00:00',
    last_article_count     INTEGER NOT NULL DEFAULT 0,
    last_error             TEXT NOT NULL DEFAULT '',
    last_error_code        INTEGER NOT NULL DEFAULT 0,
    last_error_time        DATETIME NOT NULL DEFAULT '0001-01-01 00:00:00+00:00',
    consecutive_failures   INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS watermarks (
    locale          TEXT PRIMARY KEY,
    last_article_id INTEGER NOT NULL DEFAULT 0,
    updated_at      DATETIME NOT NULL
);
`
