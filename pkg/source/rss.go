package source

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// RSSFetcher pulls articles from RSS/Atom feeds.
type RSSFetcher struct {
	client *http.Client
	parser *gofeed.Parser
}

// NewRSSFetcher creates an RSS fetcher with a shared HTTP client.
func NewRSSFetcher(client *http.Client) *RSSFetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &RSSFetcher{
		client: client,
		parser: gofeed.NewParser(),
	}
}

func (f *RSSFetcher) Mode() Mode { return ModeRSS }

func (f *RSSFetcher) Fetch(ctx context.Context, cfg Config) ([]RawArticle, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.Endpoint, nil)
	if err != nil {
		return nil, NewTransient(cfg.ID, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, NewTransient(cfg.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
		return nil, NewForbidden(cfg.ID, resp.StatusCode, fmt.Errorf("feed %s blocked", cfg.Name))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, NewTransient(cfg.ID, fmt.Errorf("feed %s status %d", cfg.Name, resp.StatusCode))
	}

	parsed, err := f.parser.Parse(resp.Body)
	if err != nil {
		return nil, NewParse(cfg.ID, fmt.Errorf("parse feed %s: %w", cfg.Name, err))
	}

	now := time.Now().UTC()
	articles := make([]RawArticle, 0, len(parsed.Items))
	for _, entry := range parsed.Items {
		title := strings.TrimSpace(entry.Title)
		if title == "" {
			continue
		}

		// Missing publish dates default to ingestion time.
		published := now
		if entry.PublishedParsed != nil {
			published = entry.PublishedParsed.UTC()
		} else if entry.UpdatedParsed != nil {
			published = entry.UpdatedParsed.UTC()
		}

		link := entry.Link
		if link == "" && len(entry.Links) > 0 {
			link = entry.Links[0]
		}

		byline := ""
		if entry.Author != nil {
			byline = entry.Author.Name
		}

		content := entry.Content
		if content == "" {
			content = entry.Description
		}

		articles = append(articles, RawArticle{
			Title:       title,
			URL:         strings.TrimSpace(link),
			PublishedAt: published,
			Byline:      byline,
			Content:     stripTags(content),
			SourceID:    cfg.ID,
			FetchedAt:   now,
		})
	}

	return articles, nil
}

const userAgent = "localwire/1.0"
