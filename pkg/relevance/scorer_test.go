package relevance

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowanhart/localwire/pkg/source"
)

var testNow = time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.LocalePhrases = []string{"Fall River"}
	cfg.NearbyPlaces = []string{"Somerset", "Swansea"}
	cfg.Landmarks = []string{"Battleship Cove", "Kennedy Park", "Durfee High"}
	cfg.TopicKeywords = []TopicKeyword{
		{Keyword: "arrest", Topic: "crime", Weight: 12},
		{Keyword: "police", Topic: "crime", Weight: 8},
		{Keyword: "city council", Topic: "government", Weight: 10},
	}
	cfg.Credibility = []CredibilityTier{
		{Substring: "herald", Bonus: 10},
		{Substring: "gazette", Bonus: 6},
	}
	return cfg
}

func newTestScorer(cfg Config) *Scorer {
	s := NewScorer(cfg, nil)
	s.now = func() time.Time { return testNow }
	return s
}

func article(title, content string, age time.Duration) source.RawArticle {
	return source.RawArticle{
		Title:       title,
		Content:     content,
		PublishedAt: testNow.Add(-age),
	}
}

func TestScoreBounds(t *testing.T) {
	s := newTestScorer(testConfig())

	articles := []source.RawArticle{
		article("Fall River arrest Fall River police Fall River city council", strings.Repeat("Fall River arrest ", 40), time.Hour),
		article("nothing relevant at all", "generic text", 30*24*time.Hour),
		article("casino betting odds sponsored content shocking", "you won't believe", time.Hour),
	}
	for _, a := range articles {
		res := s.Score(a, "Fall River Herald", false)
		assert.GreaterOrEqual(t, res.Score, 0)
		assert.LessOrEqual(t, res.Score, 100)
	}
}

func TestLocaleArrestCredibleSource(t *testing.T) {
	s := newTestScorer(testConfig())

	a := article("Fall River man faces arrest after downtown incident", "Police made an arrest in Fall River on Tuesday.", 2*time.Hour)
	res := s.Score(a, "Fall River Herald", false)

	// locale 15 + arrest 12 + police 8 + credibility 10 + recency 10*2
	assert.GreaterOrEqual(t, res.Score, 50)
	assert.True(t, res.HasLocale)
	assert.Contains(t, res.Matched, "locale:fall river")
	assert.Contains(t, res.Matched, "topic:crime:arrest")
	assert.Contains(t, res.Matched, "credible:herald")
}

func TestZeroMatchesFloorsNegative(t *testing.T) {
	s := newTestScorer(testConfig())

	a := article("completely unrelated story", "nothing about the area at all", 30*24*time.Hour)
	res := s.Score(a, "somewhere else", false)

	assert.Equal(t, -10, res.Raw)
	assert.Equal(t, 0, res.Score)
	assert.Contains(t, res.Missing, "locale")

	reason := res.AutoRejectReason(25)
	assert.NotEmpty(t, reason)
	assert.Contains(t, reason, "below threshold 25")
}

func TestNearbyPlaceNeedsLocaleAnchor(t *testing.T) {
	s := newTestScorer(testConfig())

	anchored := article("Fall River and Somerset split bridge costs", "", time.Hour)
	resAnchored := s.Score(anchored, "gazette", false)
	assert.Contains(t, resAnchored.Matched, "nearby:somerset")
	assert.True(t, resAnchored.HasLocale)

	leaked := article("Somerset approves new budget", "", time.Hour)
	resLeaked := s.Score(leaked, "gazette", false)
	assert.Less(t, resLeaked.Raw, 0, "nearby mention without locale anchor should be penalized")
}

func TestLandmarkCap(t *testing.T) {
	cfg := testConfig()
	cfg.LandmarkCap = 2
	s := newTestScorer(cfg)

	a := article("Three landmarks", "Battleship Cove and Kennedy Park and Durfee High", 30*24*time.Hour)
	res := s.Score(a, "other", false)

	// 3 matches capped at 2, weight 3 each; no other positive terms.
	assert.Equal(t, 2*cfg.LandmarkWeight, res.Raw)
	assert.Len(t, res.Matched, 3)
}

func TestCredibilityFirstMatchOnly(t *testing.T) {
	s := newTestScorer(testConfig())

	a := article("Fall River update", "", 30*24*time.Hour)
	res := s.Score(a, "Herald Gazette Combined", false)

	assert.Contains(t, res.Matched, "credible:herald")
	assert.NotContains(t, res.Matched, "credible:gazette")
}

func TestRecencyAmplifiedByLocale(t *testing.T) {
	cfg := testConfig()
	s := newTestScorer(cfg)

	local := article("Fall River story", "", time.Hour)
	national := article("some other story entirely", "", time.Hour)

	localRes := s.Score(local, "other", false)
	nationalRes := s.Score(national, "other", false)

	assert.Contains(t, localRes.Matched, "recent:today")
	// locale 15 + doubled recency 20
	assert.Equal(t, 35, localRes.Raw)
	// recency alone, not doubled
	assert.Equal(t, 10, nationalRes.Raw)
}

func TestNationalPenaltyNeedsTwoKeywordsAndNoLocale(t *testing.T) {
	s := newTestScorer(testConfig())

	oneHit := article("congress debates", "a long way from here", 30*24*time.Hour)
	assert.GreaterOrEqual(t, s.Score(oneHit, "other", false).Raw, -10,
		"a single national keyword should not trigger the penalty")

	twoHits := article("congress and the white house clash", "", 30*24*time.Hour)
	res := s.Score(twoHits, "other", false)
	assert.LessOrEqual(t, res.Raw, -20)

	localAngle := article("Fall River delegation heads to congress over white house grant", "", 30*24*time.Hour)
	localRes := s.Score(localAngle, "other", false)
	assert.Greater(t, localRes.Raw, 0, "locally-angled national coverage is not penalized")
}

func TestStellarBoost(t *testing.T) {
	s := newTestScorer(testConfig())

	a := article("Fall River longread", "", 30*24*time.Hour)
	plain := s.Score(a, "other", false)
	stellar := s.Score(a, "other", true)

	assert.Equal(t, plain.Raw+s.cfg.StellarBonus, stellar.Raw)
	assert.Contains(t, stellar.Matched, "stellar")
}

func TestPenaltyPatterns(t *testing.T) {
	s := newTestScorer(testConfig())

	a := article("Fall River: you won't believe this sponsored content", "", time.Hour)
	res := s.Score(a, "other", false)

	require.NotEmpty(t, res.Matched)
	assert.Contains(t, res.Matched, "penalty:you won't believe")
	assert.Contains(t, res.Matched, "penalty:sponsored content")
}

func TestThresholdNeverRejectsAbove(t *testing.T) {
	s := newTestScorer(testConfig())

	a := article("Fall River arrest", "police arrest in Fall River", time.Hour)
	res := s.Score(a, "Fall River Herald", false)
	require.GreaterOrEqual(t, res.Score, 25)
	// Callers only reject below threshold; nothing at or above it.
	assert.False(t, res.Score < 25)
}
