// Package dedup collapses duplicate articles by canonical identity.
package dedup

import (
	"strings"

	"github.com/rowanhart/localwire/pkg/source"
)

// Key derives the canonical identity key for an article: the URL when
// present, otherwise normalized title + source + published date.
func Key(a source.RawArticle) string {
	if u := strings.TrimSpace(a.URL); u != "" {
		return u
	}
	return NormalizeTitle(a.Title) + "|" + a.SourceID + "|" + a.PublishedAt.UTC().Format("2006-01-02")
}

// NormalizeTitle lowercases a title and collapses whitespace.
func NormalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}

// Dedupe drops batch-internal duplicates (first occurrence wins) and any
// article whose key already exists in the persisted store. Order is
// preserved.
func Dedupe(batch []source.RawArticle, existing map[string]bool) []source.RawArticle {
	seen := make(map[string]bool, len(batch))
	unique := make([]source.RawArticle, 0, len(batch))

	for _, a := range batch {
		key := Key(a)
		if seen[key] || existing[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, a)
	}
	return unique
}
