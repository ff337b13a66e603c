package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// ScrapeFetcher pulls articles from plain HTML index pages using
// per-source CSS selectors, with a generic fallback for common article
// markup.
type ScrapeFetcher struct {
	client *http.Client
}

// NewScrapeFetcher creates an HTML scraper with a shared HTTP client.
func NewScrapeFetcher(client *http.Client) *ScrapeFetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &ScrapeFetcher{client: client}
}

func (f *ScrapeFetcher) Mode() Mode { return ModeScrape }

func (f *ScrapeFetcher) Fetch(ctx context.Context, cfg Config) ([]RawArticle, error) {
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
		return nil, NewForbidden(cfg.ID, resp.StatusCode, fmt.Errorf("page %s blocked", cfg.Name))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, NewTransient(cfg.ID, fmt.Errorf("page %s status %d", cfg.Name, resp.StatusCode))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, NewParse(cfg.ID, fmt.Errorf("parse page %s: %w", cfg.Name, err))
	}

	base, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, NewParse(cfg.ID, fmt.Errorf("parse endpoint %s: %w", cfg.Endpoint, err))
	}

	itemSel := cfg.ItemSelector
	if itemSel == "" {
		itemSel = "article"
	}
	titleSel := cfg.TitleSelector
	if titleSel == "" {
		titleSel = "h1, h2, h3"
	}
	linkSel := cfg.LinkSelector
	if linkSel == "" {
		linkSel = "a"
	}
	summarySel := cfg.SummarySelector
	if summarySel == "" {
		summarySel = "p"
	}

	now := time.Now().UTC()
	var articles []RawArticle

	doc.Find(itemSel).Each(func(_ int, sel *goquery.Selection) {
		title := strings.TrimSpace(sel.Find(titleSel).First().Text())
		if title == "" {
			return
		}

		link := ""
		if href, ok := sel.Find(linkSel).First().Attr("href"); ok {
			link = resolveLink(base, href)
		}

		summary := strings.TrimSpace(sel.Find(summarySel).First().Text())

		articles = append(articles, RawArticle{
			Title:       title,
			URL:         link,
			PublishedAt: now, // index pages rarely carry machine-readable dates
			Content:     summary,
			SourceID:    cfg.ID,
			FetchedAt:   now,
		})
	})

	if len(articles) == 0 && doc.Find(itemSel).Length() == 0 {
		return nil, NewParse(cfg.ID, fmt.Errorf("page %s: selector %q matched nothing", cfg.Name, itemSel))
	}

	return articles, nil
}

func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(u).String()
}

// stripTags flattens embedded HTML in feed descriptions to plain text.
func stripTags(s string) string {
	if !strings.ContainsRune(s, '<') {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(doc.Text())
}
