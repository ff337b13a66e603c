package relevance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func signalSet(n int, feature string, positive bool) []Signal {
	signals := make([]Signal, n)
	for i := range signals {
		signals[i] = Signal{Features: []string{feature}, Positive: positive}
	}
	return signals
}

func TestAdjusterColdStart(t *testing.T) {
	cfg := AdjusterConfig{MinSamples: 10, MaxAdjust: 20, Scale: 100}
	a := NewAdjuster(cfg, signalSet(5, "topic:crime:arrest", true))

	assert.Equal(t, 5, a.SampleCount())
	assert.Zero(t, a.Adjust([]string{"topic:crime:arrest"}))
}

func TestAdjusterUnknownFeaturesAreNeutral(t *testing.T) {
	cfg := AdjusterConfig{MinSamples: 5, MaxAdjust: 20, Scale: 100}
	a := NewAdjuster(cfg, signalSet(10, "topic:crime:arrest", true))

	assert.Zero(t, a.Adjust([]string{"topic:sports:playoff"}))
}

func TestAdjusterPositiveFeatureBoosts(t *testing.T) {
	cfg := AdjusterConfig{MinSamples: 5, MaxAdjust: 20, Scale: 100}

	// Half of sampled articles are positive overall, but every article
	// with the arrest feature was kept.
	signals := append(signalSet(10, "topic:crime:arrest", true),
		signalSet(10, "penalty:sponsored content", false)...)
	a := NewAdjuster(cfg, signals)

	adj := a.Adjust([]string{"topic:crime:arrest"})
	assert.Greater(t, adj, 0.0)
	assert.LessOrEqual(t, adj, 20.0)

	neg := a.Adjust([]string{"penalty:sponsored content"})
	assert.Less(t, neg, 0.0)
	assert.GreaterOrEqual(t, neg, -20.0)
}

func TestAdjusterClamped(t *testing.T) {
	cfg := AdjusterConfig{MinSamples: 2, MaxAdjust: 20, Scale: 1000}
	signals := append(signalSet(50, "good", true), signalSet(50, "bad", false)...)
	a := NewAdjuster(cfg, signals)

	assert.Equal(t, 20.0, a.Adjust([]string{"good"}))
	assert.Equal(t, -20.0, a.Adjust([]string{"bad"}))
}

func TestAdjusterAveragesAcrossFeatures(t *testing.T) {
	cfg := AdjusterConfig{MinSamples: 2, MaxAdjust: 50, Scale: 100}
	signals := append(signalSet(10, "good", true), signalSet(10, "bad", false)...)
	a := NewAdjuster(cfg, signals)

	// One strongly positive and one strongly negative feature cancel out.
	assert.InDelta(t, 0.0, a.Adjust([]string{"good", "bad"}), 0.001)
}

func TestScorerAppliesAdjustment(t *testing.T) {
	cfg := testConfig()
	adjCfg := AdjusterConfig{MinSamples: 2, MaxAdjust: 20, Scale: 1000}
	signals := append(signalSet(20, "topic:crime:arrest", true),
		signalSet(20, "penalty:sponsored content", false)...)

	base := newTestScorer(cfg)
	boosted := newTestScorer(cfg)
	boosted.adjuster = NewAdjuster(adjCfg, signals)

	a := article("arrest made downtown", "", 30*24*time.Hour)

	plain := base.Score(a, "other", false)
	adjusted := boosted.Score(a, "other", false)

	assert.Equal(t, 20.0, adjusted.Adjustment)
	assert.Equal(t, plain.Raw+20, adjusted.Raw)
}
