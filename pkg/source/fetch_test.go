package source_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowanhart/localwire/pkg/source"
)

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Herald News</title>
    <item>
      <title>Council approves budget</title>
      <link>https://example.com/budget</link>
      <pubDate>Wed, 19 Aug 2026 09:00:00 GMT</pubDate>
      <description>The city council approved next year's budget.</description>
    </item>
    <item>
      <title>Bridge repairs begin</title>
      <link>https://example.com/bridge</link>
      <description>&lt;p&gt;Crews started work Monday.&lt;/p&gt;</description>
    </item>
  </channel>
</rss>`

func rssConfig(id, endpoint string) source.Config {
	return source.Config{
		ID:       id,
		Name:     id,
		Endpoint: endpoint,
		Mode:     source.ModeRSS,
		Enabled:  true,
	}
}

func quickRunner(t *testing.T) *source.Runner {
	t.Helper()
	client := &http.Client{Timeout: 5 * time.Second}
	return source.NewRunner(
		[]source.Fetcher{source.NewRSSFetcher(client), source.NewScrapeFetcher(client)},
		source.RunnerConfig{
			Timeout:     5 * time.Second,
			MaxAttempts: 3,
			BaseDelay:   time.Millisecond,
			MaxDelay:    5 * time.Millisecond,
		},
		nil,
	)
}

func TestFetchRSS(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "localwire/1.0", r.Header.Get("User-Agent"))
		fmt.Fprint(w, feedXML)
	}))
	defer srv.Close()

	f := source.NewRSSFetcher(srv.Client())
	articles, err := f.Fetch(context.Background(), rssConfig("herald", srv.URL))
	require.NoError(t, err)
	require.Len(t, articles, 2)

	assert.Equal(t, "Council approves budget", articles[0].Title)
	assert.Equal(t, "https://example.com/budget", articles[0].URL)
	assert.Equal(t, time.Date(2026, 8, 19, 9, 0, 0, 0, time.UTC), articles[0].PublishedAt)
	assert.Equal(t, "herald", articles[0].SourceID)

	// Embedded HTML is flattened, missing dates default to fetch time.
	assert.Equal(t, "Crews started work Monday.", articles[1].Content)
	assert.WithinDuration(t, time.Now().UTC(), articles[1].PublishedAt, time.Minute)
}

func TestFetchForbiddenIsTypedAndNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	r := quickRunner(t)
	results := r.FetchAll(context.Background(), []source.Config{rssConfig("blocked", srv.URL)})
	require.Len(t, results, 1)

	err := results[0].Err
	require.Error(t, err)
	assert.True(t, source.IsForbidden(err))
	assert.Equal(t, http.StatusForbidden, source.StatusCode(err))
	assert.Equal(t, int32(1), hits.Load(), "403 is permanent for the cycle, no retries")

	var ferr *source.FetchError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, "blocked", ferr.SourceID)
}

func TestFetchTransientRetriesThenSucceeds(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, feedXML)
	}))
	defer srv.Close()

	r := quickRunner(t)
	results := r.FetchAll(context.Background(), []source.Config{rssConfig("flaky", srv.URL)})
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.Len(t, results[0].Articles, 2)
	assert.Equal(t, int32(3), hits.Load())
}

func TestFetchAllIsolatesFailures(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, feedXML)
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer bad.Close()

	r := quickRunner(t)
	results := r.FetchAll(context.Background(), []source.Config{
		rssConfig("bad", bad.URL),
		rssConfig("good", good.URL),
	})
	require.Len(t, results, 2)

	// Input order is preserved; the failure never blocks the other source.
	assert.Equal(t, "bad", results[0].Source.ID)
	assert.Error(t, results[0].Err)
	assert.Equal(t, "good", results[1].Source.ID)
	require.NoError(t, results[1].Err)
	assert.Len(t, results[1].Articles, 2)
}

func TestFetchFlagsShortContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, feedXML)
	}))
	defer srv.Close()

	r := quickRunner(t)
	cfg := rssConfig("herald", srv.URL)
	cfg.MinContentLength = 30

	results := r.FetchAll(context.Background(), []source.Config{cfg})
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	require.Len(t, results[0].Articles, 2)

	assert.False(t, results[0].Articles[0].TooShort)
	assert.True(t, results[0].Articles[1].TooShort, "short articles are flagged, never dropped")
	assert.Contains(t, results[0].Articles[1].ShortReason, "below source minimum")
}

func TestFetchUnknownMode(t *testing.T) {
	r := quickRunner(t)
	results := r.FetchAll(context.Background(), []source.Config{{
		ID:   "weird",
		Mode: source.Mode("carrier-pigeon"),
	}})
	require.Len(t, results, 1)
	require.Error(t, results[0].Err)
	assert.False(t, source.Retryable(results[0].Err))
}

func TestFetchScrapeWithSelectors(t *testing.T) {
	page := `<html><body>
		<div class="story"><h2>Fire on Main Street</h2>
			<a href="/news/fire">more</a><p class="teaser">Crews responded overnight.</p></div>
		<div class="story"><h2>School board meets</h2>
			<a href="https://other.example.com/board">more</a><p class="teaser">Agenda includes buses.</p></div>
		<div class="story"><h2></h2><a href="/skipped">x</a></div>
	</body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page)
	}))
	defer srv.Close()

	f := source.NewScrapeFetcher(srv.Client())
	articles, err := f.Fetch(context.Background(), source.Config{
		ID:              "scraper",
		Name:            "scraper",
		Endpoint:        srv.URL + "/index",
		Mode:            source.ModeScrape,
		ItemSelector:    "div.story",
		SummarySelector: "p.teaser",
	})
	require.NoError(t, err)
	require.Len(t, articles, 2, "titleless items are skipped")

	assert.Equal(t, "Fire on Main Street", articles[0].Title)
	assert.Equal(t, srv.URL+"/news/fire", articles[0].URL, "relative links resolve against the endpoint")
	assert.Equal(t, "Crews responded overnight.", articles[0].Content)
	assert.Equal(t, "https://other.example.com/board", articles[1].URL)
}

func TestFetchScrapeSelectorMatchesNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body><p>nothing here</p></body></html>")
	}))
	defer srv.Close()

	f := source.NewScrapeFetcher(srv.Client())
	_, err := f.Fetch(context.Background(), source.Config{
		ID:           "scraper",
		Endpoint:     srv.URL,
		Mode:         source.ModeScrape,
		ItemSelector: "div.story",
	})
	require.Error(t, err)

	var ferr *source.FetchError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, source.KindParse, ferr.Kind)
	assert.False(t, source.Retryable(err))
}

func TestFetchErrorUnwraps(t *testing.T) {
	inner := errors.New("boom")
	err := source.NewTransient("src", inner)
	assert.ErrorIs(t, err, inner)
	assert.True(t, source.Retryable(err))
}
