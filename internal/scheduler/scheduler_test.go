package scheduler

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowanhart/localwire/internal/store"
)

var schedNow = time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

func newTestScheduler() *Scheduler {
	s := New(DefaultConfig(), NewBreaker(3, 15*time.Minute))
	s.now = func() time.Time { return schedNow }
	return s
}

func row(id string) store.SourceRow {
	return store.SourceRow{
		ID:       id,
		Name:     id,
		Endpoint: "https://example.com/feed",
		Mode:     "rss",
		Category: "news",
		Enabled:  true,
	}
}

func ids(s *Scheduler, rows []store.SourceRow, force bool) []string {
	var out []string
	for _, cfg := range s.Due(rows, force) {
		out = append(out, cfg.ID)
	}
	return out
}

func TestDueRespectsCadence(t *testing.T) {
	s := newTestScheduler()

	fresh := row("fresh")
	fresh.LastFetchTime = schedNow.Add(-10 * time.Minute)
	stale := row("stale")
	stale.LastFetchTime = schedNow.Add(-2 * time.Hour)
	never := row("never")

	got := ids(s, []store.SourceRow{fresh, stale, never}, false)
	assert.Equal(t, []string{"stale", "never"}, got)
}

func TestDuePerSourceInterval(t *testing.T) {
	s := newTestScheduler()

	quick := row("quick")
	quick.RefreshSecs = int64((10 * time.Minute).Seconds())
	quick.LastFetchTime = schedNow.Add(-15 * time.Minute)

	slow := row("slow")
	slow.RefreshSecs = int64((4 * time.Hour).Seconds())
	slow.LastFetchTime = schedNow.Add(-2 * time.Hour)

	got := ids(s, []store.SourceRow{quick, slow}, false)
	assert.Equal(t, []string{"quick"}, got)
}

func TestDueObituaryFixedInterval(t *testing.T) {
	s := newTestScheduler()

	obit := row("obit")
	obit.Category = "obituaries"
	obit.RefreshSecs = int64((10 * time.Minute).Seconds()) // ignored
	obit.LastFetchTime = schedNow.Add(-2 * time.Hour)

	assert.Empty(t, ids(s, []store.SourceRow{obit}, false))

	obit.LastFetchTime = schedNow.Add(-7 * time.Hour)
	assert.Equal(t, []string{"obit"}, ids(s, []store.SourceRow{obit}, false))
}

func TestDueThrottlesAfterForbidden(t *testing.T) {
	s := newTestScheduler()

	src := row("blocked")
	src.RefreshSecs = int64((10 * time.Minute).Seconds())
	src.LastErrorCode = http.StatusForbidden
	src.LastErrorTime = schedNow.Add(-20 * time.Minute)
	src.LastFetchTime = schedNow.Add(-20 * time.Minute)

	// Throttled: the 10m cadence is raised to the 30m minimum.
	assert.Empty(t, ids(s, []store.SourceRow{src}, false))

	src.LastFetchTime = schedNow.Add(-40 * time.Minute)
	src.LastErrorTime = schedNow.Add(-40 * time.Minute)
	due := s.Due([]store.SourceRow{src}, false)
	require.Len(t, due, 1)
	assert.Equal(t, s.cfg.PreFetchDelay, due[0].PreFetchDelay)
}

func TestDueForbiddenWindowExpires(t *testing.T) {
	s := newTestScheduler()

	src := row("recovered")
	src.RefreshSecs = int64((10 * time.Minute).Seconds())
	src.LastErrorCode = http.StatusForbidden
	src.LastErrorTime = schedNow.Add(-90 * time.Minute)
	src.LastFetchTime = schedNow.Add(-15 * time.Minute)

	due := s.Due([]store.SourceRow{src}, false)
	require.Len(t, due, 1)
	assert.Zero(t, due[0].PreFetchDelay, "no pre-fetch delay once the window expires")
}

func TestDueSkipsDisabled(t *testing.T) {
	s := newTestScheduler()

	off := row("off")
	off.Enabled = false

	assert.Empty(t, ids(s, []store.SourceRow{off}, true))
}

func TestDueForceBypassesCadenceOnly(t *testing.T) {
	s := newTestScheduler()

	fresh := row("fresh")
	fresh.LastFetchTime = schedNow.Add(-time.Minute)
	assert.Equal(t, []string{"fresh"}, ids(s, []store.SourceRow{fresh}, true))

	tripped := row("tripped")
	for i := 0; i < 3; i++ {
		s.Breaker().RecordFailure("tripped")
	}
	assert.Empty(t, ids(s, []store.SourceRow{tripped}, true),
		"force never bypasses the breaker")
}
