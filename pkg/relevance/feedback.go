package relevance

import "time"

// Signal is one operator feedback record for the locale: which features the
// article carried and whether the operator kept it.
type Signal struct {
	Features  []string
	Positive  bool
	CreatedAt time.Time
}

// AdjusterConfig bounds the online feedback adjustment.
type AdjusterConfig struct {
	MinSamples int     `yaml:"min_samples"` // cold start below this: adjustment is zero
	MaxAdjust  float64 `yaml:"max_adjust"`  // clamp range, e.g. 20 means [-20, +20]
	Scale      float64 `yaml:"scale"`       // multiplier on the averaged rate delta
}

// DefaultAdjusterConfig returns the tuned defaults.
func DefaultAdjusterConfig() AdjusterConfig {
	return AdjusterConfig{MinSamples: 10, MaxAdjust: 20, Scale: 100}
}

// Adjuster computes a bounded score adjustment from historical feedback.
// Despite the heritage of the idea, this is empirical frequency counting,
// not Bayesian inference: each matched feature's positive-feedback rate is
// compared against the locale's overall positive rate, the deltas are
// averaged, scaled, and clamped.
type Adjuster struct {
	cfg AdjusterConfig

	total        int
	positive     int
	featureTotal map[string]int
	featurePos   map[string]int
}

// NewAdjuster indexes the locale's historical signals.
func NewAdjuster(cfg AdjusterConfig, signals []Signal) *Adjuster {
	if cfg.MinSamples == 0 {
		cfg.MinSamples = 10
	}
	if cfg.MaxAdjust == 0 {
		cfg.MaxAdjust = 20
	}
	if cfg.Scale == 0 {
		cfg.Scale = 100
	}

	a := &Adjuster{
		cfg:          cfg,
		featureTotal: make(map[string]int),
		featurePos:   make(map[string]int),
	}
	for _, sig := range signals {
		a.total++
		if sig.Positive {
			a.positive++
		}
		seen := make(map[string]bool, len(sig.Features))
		for _, f := range sig.Features {
			if seen[f] {
				continue
			}
			seen[f] = true
			a.featureTotal[f]++
			if sig.Positive {
				a.featurePos[f]++
			}
		}
	}
	return a
}

// SampleCount returns how many signals the adjuster was built from.
func (a *Adjuster) SampleCount() int { return a.total }

// Adjust returns the bounded adjustment for an article carrying the given
// features. Zero when the locale has too little history or no feature has
// been seen before.
func (a *Adjuster) Adjust(features []string) float64 {
	if a.total < a.cfg.MinSamples {
		return 0
	}

	baseline := float64(a.positive) / float64(a.total)

	sum := 0.0
	n := 0
	for _, f := range features {
		ft := a.featureTotal[f]
		if ft == 0 {
			continue
		}
		rate := float64(a.featurePos[f]) / float64(ft)
		sum += rate - baseline
		n++
	}
	if n == 0 {
		return 0
	}

	adj := sum / float64(n) * a.cfg.Scale
	if adj > a.cfg.MaxAdjust {
		adj = a.cfg.MaxAdjust
	}
	if adj < -a.cfg.MaxAdjust {
		adj = -a.cfg.MaxAdjust
	}
	return adj
}
