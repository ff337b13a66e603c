// Package classify assigns each article a category via a fixed-precedence
// cascade: URL path signal, forced source category, content keywords,
// learned keywords, source default.
package classify

import (
	"strings"

	"github.com/rowanhart/localwire/pkg/source"
)

// Category is the fixed classification enum.
type Category string

const (
	CategoryObituaries    Category = "obituaries"
	CategoryCrime         Category = "crime"
	CategorySports        Category = "sports"
	CategoryEntertainment Category = "entertainment"
	CategoryBusiness      Category = "business"
	CategorySchools       Category = "schools"
	CategoryFood          Category = "food"
	CategoryWeather       Category = "weather"
	CategoryGovernment    Category = "government"
	CategoryEvents        Category = "events"
	CategoryNews          Category = "news"
)

// All returns every known category.
func All() []Category {
	return []Category{
		CategoryObituaries, CategoryCrime, CategorySports,
		CategoryEntertainment, CategoryBusiness, CategorySchools,
		CategoryFood, CategoryWeather, CategoryGovernment,
		CategoryEvents, CategoryNews,
	}
}

// Valid reports whether c is a known category.
func Valid(c Category) bool {
	for _, known := range All() {
		if c == known {
			return true
		}
	}
	return false
}

// pathSignals are explicit URL-path segments that win outright.
var pathSignals = []struct {
	segment  string
	category Category
}{
	{"obituar", CategoryObituaries},
	{"/sports/", CategorySports},
	{"/crime", CategoryCrime},
	{"/police", CategoryCrime},
	{"/business", CategoryBusiness},
	{"/entertainment", CategoryEntertainment},
	{"/weather", CategoryWeather},
	{"/schools", CategorySchools},
	{"/education", CategorySchools},
	{"/events", CategoryEvents},
	{"/food", CategoryFood},
}

// contentRule is one step of the fixed-order content-keyword cascade.
type contentRule struct {
	category Category
	keywords []string
}

// contentCascade runs in this exact order. Obituaries come first, guarded
// by the death+accident exclusion below.
var contentCascade = []contentRule{
	{CategoryObituaries, []string{
		"obituary", "passed away", "funeral home", "funeral services",
		"visitation", "survived by", "in loving memory", "interment",
	}},
	{CategoryCrime, []string{
		"arrest", "arrested", "police", "charged with", "stabbing",
		"shooting", "robbery", "burglary", "indicted", "sentenced",
	}},
	{CategorySports, []string{
		"touchdown", "playoff", "varsity", "scored", "season opener",
		"coach", "tournament", "championship",
	}},
	{CategoryEntertainment, []string{
		"concert", "theater", "theatre", "band", "album", "film festival",
		"comedy show",
	}},
	{CategoryBusiness, []string{
		"grand opening", "small business", "storefront", "hiring",
		"layoffs", "chamber of commerce", "economy",
	}},
	{CategorySchools, []string{
		"school district", "students", "superintendent", "school board",
		"graduation", "teacher",
	}},
	{CategoryFood, []string{
		"restaurant", "menu", "chef", "dining", "recipe", "food truck",
	}},
	{CategoryWeather, []string{
		"forecast", "storm", "snowfall", "hurricane", "flood warning",
		"heat advisory",
	}},
	{CategoryGovernment, []string{
		"city council", "mayor", "ordinance", "zoning", "town meeting",
		"budget", "ballot", "election",
	}},
}

// Accidental-death language excludes the obituary check: those stories are
// news or crime, not obituaries.
var (
	deathWords    = []string{"died", "dead", "killed", "fatal"}
	accidentWords = []string{"crash", "accident", "shooting", "fire", "collision", "overdose"}
)

// Classifier applies the cascade plus a learned-keyword set built from
// operator corrections.
type Classifier struct {
	learned map[Category][]string
}

// New builds a classifier. Learned keywords are derived from corrected
// training examples; pass nil for a rules-only classifier.
func New(examples []Example) *Classifier {
	return &Classifier{learned: LearnKeywords(examples)}
}

// Classify returns the category and a confidence in [0,100].
func (c *Classifier) Classify(a source.RawArticle, src source.Config) (Category, int) {
	// 1. Explicit URL-path signal wins outright.
	lowerURL := strings.ToLower(a.URL)
	for _, sig := range pathSignals {
		if strings.Contains(lowerURL, sig.segment) {
			return sig.category, 95
		}
	}

	// 2. Obituary-configured sources force their category regardless of
	// content.
	if Category(src.Category) == CategoryObituaries {
		return CategoryObituaries, 90
	}

	// 3. Fixed-order content-keyword cascade.
	text := strings.ToLower(a.Title + " " + a.Content)
	skipObituaries := containsAny(text, deathWords) && containsAny(text, accidentWords)
	for _, rule := range contentCascade {
		if rule.category == CategoryObituaries && skipObituaries {
			continue
		}
		if hits := countMatches(text, rule.keywords); hits > 0 {
			conf := 60 + 10*(hits-1)
			if conf > 90 {
				conf = 90
			}
			return rule.category, conf
		}
	}

	// 4. Learned-keyword cascade: a category is selected when at least two
	// of its learned keywords match.
	for _, cat := range All() {
		if hits := countMatches(text, c.learned[cat]); hits >= 2 {
			conf := 50 + 10*(hits-2)
			if conf > 80 {
				conf = 80
			}
			return cat, conf
		}
	}

	// 5. Source default, else the generic label.
	if src.Category != "" && Valid(Category(src.Category)) {
		return Category(src.Category), 30
	}
	return CategoryNews, 20
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

func countMatches(text string, keywords []string) int {
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			hits++
		}
	}
	return hits
}
