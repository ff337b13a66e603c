package classify

import (
	"sort"
	"strings"
	"time"
	"unicode"
)

// Example is one manually corrected classification. Corrections are the
// only feedback loop: no retraining happens beyond counting these.
type Example struct {
	Text      string
	Category  Category
	CreatedAt time.Time
}

// LearnKeywords derives per-category keyword sets from corrected examples.
// A keyword qualifies when it appeared at least twice overall across at
// least two independent examples for the same category.
func LearnKeywords(examples []Example) map[Category][]string {
	type tally struct {
		occurrences int
		examples    int
	}
	counts := make(map[Category]map[string]*tally)

	for _, ex := range examples {
		if !Valid(ex.Category) {
			continue
		}
		if counts[ex.Category] == nil {
			counts[ex.Category] = make(map[string]*tally)
		}
		perExample := make(map[string]int)
		for _, tok := range significantTokens(ex.Text) {
			perExample[tok]++
		}
		for tok, n := range perExample {
			t := counts[ex.Category][tok]
			if t == nil {
				t = &tally{}
				counts[ex.Category][tok] = t
			}
			t.occurrences += n
			t.examples++
		}
	}

	learned := make(map[Category][]string, len(counts))
	for cat, tokens := range counts {
		var kws []string
		for tok, t := range tokens {
			if t.occurrences >= 2 && t.examples >= 2 {
				kws = append(kws, tok)
			}
		}
		sort.Strings(kws)
		learned[cat] = kws
	}
	return learned
}

var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true,
	"but": true, "in": true, "on": true, "at": true, "to": true,
	"for": true, "of": true, "with": true, "by": true, "from": true,
	"is": true, "are": true, "was": true, "were": true, "be": true,
	"been": true, "has": true, "have": true, "had": true, "will": true,
	"this": true, "that": true, "these": true, "those": true,
	"it": true, "its": true, "his": true, "her": true, "their": true,
	"as": true, "after": true, "before": true, "into": true, "over": true,
	"new": true, "more": true, "about": true, "said": true, "who": true,
}

// significantTokens extracts meaningful lowercase words from text.
func significantTokens(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var tokens []string
	for _, w := range words {
		if len(w) >= 3 && !stopwords[w] {
			tokens = append(tokens, w)
		}
	}
	return tokens
}
