// Package relevance scores articles for a target locale with a single
// configuration-driven weighted-rule engine.
package relevance

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rowanhart/localwire/pkg/source"
)

// TopicKeyword is one weighted entry in the topic-keyword table.
type TopicKeyword struct {
	Keyword string `yaml:"keyword"`
	Topic   string `yaml:"topic"`
	Weight  int    `yaml:"weight"`
}

// CredibilityTier grants a fixed bonus when the source name contains the
// substring. First matching tier wins; no double counting.
type CredibilityTier struct {
	Substring string `yaml:"substring"`
	Bonus     int    `yaml:"bonus"`
}

// Config holds every scoring weight. The numbers are product tuning, not
// structure: the rule order is fixed, the weights come from configuration.
type Config struct {
	LocalePhrases []string `yaml:"locale_phrases"`
	NearbyPlaces  []string `yaml:"nearby_places"`
	Landmarks     []string `yaml:"landmarks"`

	LocaleWeight  int `yaml:"locale_weight"`
	NearbyWeight  int `yaml:"nearby_weight"`
	NearbyPenalty int `yaml:"nearby_penalty"`

	LandmarkWeight int `yaml:"landmark_weight"`
	LandmarkCap    int `yaml:"landmark_cap"`

	TopicKeywords []TopicKeyword    `yaml:"topic_keywords"`
	Credibility   []CredibilityTier `yaml:"credibility"`

	RecencyToday     int `yaml:"recency_today"`
	RecencyYesterday int `yaml:"recency_yesterday"`
	RecencyWeek      int `yaml:"recency_week"`

	PenaltyPatterns []string `yaml:"penalty_patterns"`
	PenaltyWeight   int      `yaml:"penalty_weight"`

	NationalKeywords []string `yaml:"national_keywords"`
	NationalPenalty  int      `yaml:"national_penalty"`
	NationalMinHits  int      `yaml:"national_min_hits"`

	StellarBonus    int `yaml:"stellar_bonus"`
	ZeroFloor       int `yaml:"zero_floor"`
	RejectThreshold int `yaml:"reject_threshold"`
}

// DefaultConfig returns the tuned default weights. Locale phrase lists are
// deployment-specific and start empty.
func DefaultConfig() Config {
	return Config{
		LocaleWeight:     15,
		NearbyWeight:     5,
		NearbyPenalty:    -25,
		LandmarkWeight:   3,
		LandmarkCap:      4,
		RecencyToday:     10,
		RecencyYesterday: 6,
		RecencyWeek:      3,
		PenaltyPatterns: []string{
			"you won't believe", "shocking", "sponsored content",
			"casino", "betting odds", "sportsbook",
		},
		PenaltyWeight: -15,
		NationalKeywords: []string{
			"white house", "congress", "senate hearing", "supreme court",
			"presidential campaign", "capitol hill",
		},
		NationalPenalty: -20,
		NationalMinHits: 2,
		StellarBonus:    40,
		ZeroFloor:       -10,
		RejectThreshold: 25,
	}
}

// Result is the audit record for one scored article.
type Result struct {
	Score      int      `json:"score"` // clamped to [0,100]
	Raw        int      `json:"raw"`   // pre-clamp sum, floor and adjustment applied
	Matched    []string `json:"matched_tags"`
	Missing    []string `json:"missing_tags"`
	Adjustment float64  `json:"adjustment"` // bounded feedback term
	HasLocale  bool     `json:"has_locale"`
}

// AutoRejectReason renders the machine-readable reason recorded alongside an
// auto-rejected article.
func (r Result) AutoRejectReason(threshold int) string {
	return fmt.Sprintf("score %d below threshold %d (matched: %s; missing: %s)",
		r.Score, threshold, joinOrNone(r.Matched), joinOrNone(r.Missing))
}

func joinOrNone(tags []string) string {
	if len(tags) == 0 {
		return "none"
	}
	return strings.Join(tags, ",")
}

// document is the precomputed view of an article the rules read.
type document struct {
	text       string // lowercased title + content
	sourceName string // lowercased
	age        time.Duration
	stellar    bool

	hasLocale     bool
	localeMatches int
}

type rule struct {
	name  string
	apply func(*document) (points int, matched, missing []string)
}

// Scorer is the single authoritative relevance implementation: an ordered
// list of weighted rules over one precomputed document.
type Scorer struct {
	cfg      Config
	rules    []rule
	adjuster *Adjuster
	now      func() time.Time
}

// NewScorer builds the rule list from config. adjuster may be nil.
func NewScorer(cfg Config, adjuster *Adjuster) *Scorer {
	s := &Scorer{cfg: cfg, adjuster: adjuster, now: time.Now}
	s.rules = []rule{
		{name: "locale", apply: s.localeRule},
		{name: "nearby", apply: s.nearbyRule},
		{name: "landmark", apply: s.landmarkRule},
		{name: "topic", apply: s.topicRule},
		{name: "credibility", apply: s.credibilityRule},
		{name: "recency", apply: s.recencyRule},
		{name: "penalty", apply: s.penaltyRule},
		{name: "national", apply: s.nationalRule},
		{name: "stellar", apply: s.stellarRule},
	}
	return s
}

// Score computes the deterministic weighted sum, applies the zero floor,
// adds the bounded feedback adjustment, and clamps to [0,100]. stellar marks
// an operator-flagged exemplary article.
func (s *Scorer) Score(a source.RawArticle, sourceName string, stellar bool) Result {
	doc := s.newDocument(a, sourceName, stellar)

	sum := 0
	var matched, missing []string
	for _, r := range s.rules {
		points, m, miss := r.apply(doc)
		sum += points
		matched = append(matched, m...)
		missing = append(missing, miss...)
	}

	// No evidence of relevance is worse than marginal relevance.
	if sum == 0 {
		sum = s.cfg.ZeroFloor
	}

	adjustment := 0.0
	if s.adjuster != nil {
		adjustment = s.adjuster.Adjust(matched)
	}
	raw := sum + int(adjustment)

	score := raw
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	sort.Strings(matched)
	sort.Strings(missing)

	return Result{
		Score:      score,
		Raw:        raw,
		Matched:    matched,
		Missing:    missing,
		Adjustment: adjustment,
		HasLocale:  doc.hasLocale,
	}
}

func (s *Scorer) newDocument(a source.RawArticle, sourceName string, stellar bool) *document {
	doc := &document{
		text:       strings.ToLower(a.Title + " " + a.Content),
		sourceName: strings.ToLower(sourceName),
		age:        s.now().UTC().Sub(a.PublishedAt.UTC()),
		stellar:    stellar,
	}
	for _, phrase := range s.cfg.LocalePhrases {
		if strings.Contains(doc.text, strings.ToLower(phrase)) {
			doc.localeMatches++
		}
	}
	doc.hasLocale = doc.localeMatches > 0
	return doc
}

// localeRule: large fixed weight per distinct primary phrase found. The
// primary set is small, so no per-phrase cap.
func (s *Scorer) localeRule(doc *document) (int, []string, []string) {
	if doc.localeMatches == 0 {
		return 0, nil, []string{"locale"}
	}
	var matched []string
	for _, phrase := range s.cfg.LocalePhrases {
		if strings.Contains(doc.text, strings.ToLower(phrase)) {
			matched = append(matched, "locale:"+strings.ToLower(phrase))
		}
	}
	return doc.localeMatches * s.cfg.LocaleWeight, matched, nil
}

// nearbyRule: adjacent places score a small bonus only when the primary
// locale is also mentioned; otherwise a large penalty stops adjacent-region
// leakage.
func (s *Scorer) nearbyRule(doc *document) (int, []string, []string) {
	hits := 0
	var matched []string
	for _, place := range s.cfg.NearbyPlaces {
		if strings.Contains(doc.text, strings.ToLower(place)) {
			hits++
			matched = append(matched, "nearby:"+strings.ToLower(place))
		}
	}
	if hits == 0 {
		return 0, nil, nil
	}
	if doc.hasLocale {
		return hits * s.cfg.NearbyWeight, matched, nil
	}
	return s.cfg.NearbyPenalty, matched, []string{"locale"}
}

// landmarkRule: small weight per named place, capped so boilerplate footers
// cannot inflate the score.
func (s *Scorer) landmarkRule(doc *document) (int, []string, []string) {
	hits := 0
	var matched []string
	for _, lm := range s.cfg.Landmarks {
		if strings.Contains(doc.text, strings.ToLower(lm)) {
			hits++
			matched = append(matched, "landmark:"+strings.ToLower(lm))
		}
	}
	if s.cfg.LandmarkCap > 0 && hits > s.cfg.LandmarkCap {
		hits = s.cfg.LandmarkCap
	}
	return hits * s.cfg.LandmarkWeight, matched, nil
}

func (s *Scorer) topicRule(doc *document) (int, []string, []string) {
	sum := 0
	var matched []string
	for _, tk := range s.cfg.TopicKeywords {
		if strings.Contains(doc.text, strings.ToLower(tk.Keyword)) {
			sum += tk.Weight
			matched = append(matched, "topic:"+tk.Topic+":"+strings.ToLower(tk.Keyword))
		}
	}
	if sum == 0 {
		return 0, nil, []string{"topic"}
	}
	return sum, matched, nil
}

// credibilityRule: first matching tier only.
func (s *Scorer) credibilityRule(doc *document) (int, []string, []string) {
	for _, tier := range s.cfg.Credibility {
		if strings.Contains(doc.sourceName, strings.ToLower(tier.Substring)) {
			return tier.Bonus, []string{"credible:" + strings.ToLower(tier.Substring)}, nil
		}
	}
	return 0, nil, nil
}

// recencyRule: tiered by age bucket, amplified when the article carries a
// locale match. Local news ages faster in importance.
func (s *Scorer) recencyRule(doc *document) (int, []string, []string) {
	bonus := 0
	tag := ""
	switch {
	case doc.age < 24*time.Hour:
		bonus, tag = s.cfg.RecencyToday, "recent:today"
	case doc.age < 48*time.Hour:
		bonus, tag = s.cfg.RecencyYesterday, "recent:yesterday"
	case doc.age < 7*24*time.Hour:
		bonus, tag = s.cfg.RecencyWeek, "recent:week"
	default:
		return 0, nil, nil
	}
	if doc.hasLocale {
		bonus *= 2
	}
	return bonus, []string{tag}, nil
}

func (s *Scorer) penaltyRule(doc *document) (int, []string, []string) {
	sum := 0
	var matched []string
	for _, pattern := range s.cfg.PenaltyPatterns {
		if strings.Contains(doc.text, strings.ToLower(pattern)) {
			sum += s.cfg.PenaltyWeight
			matched = append(matched, "penalty:"+strings.ToLower(pattern))
		}
	}
	return sum, matched, nil
}

// nationalRule: penalize national politics only when there is no locale
// connection and at least NationalMinHits distinct keywords appear, so
// locally-angled national coverage is untouched.
func (s *Scorer) nationalRule(doc *document) (int, []string, []string) {
	if doc.hasLocale {
		return 0, nil, nil
	}
	hits := 0
	var matched []string
	for _, kw := range s.cfg.NationalKeywords {
		if strings.Contains(doc.text, strings.ToLower(kw)) {
			hits++
			matched = append(matched, "national:"+strings.ToLower(kw))
		}
	}
	minHits := s.cfg.NationalMinHits
	if minHits == 0 {
		minHits = 2
	}
	if hits < minHits {
		return 0, nil, nil
	}
	return s.cfg.NationalPenalty, matched, nil
}

func (s *Scorer) stellarRule(doc *document) (int, []string, []string) {
	if !doc.stellar {
		return 0, nil, nil
	}
	return s.cfg.StellarBonus, []string{"stellar"}, nil
}
