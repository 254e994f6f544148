// Package keyword implements the default word predicate used for content
// searches: every word must occur in the text as a substring, compared after
// Unicode normalization and case folding.
package keyword

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

// Fold normalizes s for matching.
func Fold(s string) string {
	return folder.String(norm.NFC.String(s))
}

// Match reports whether every non-blank word occurs in text. An empty word
// list matches everything.
func Match(text string, words []string) bool {
	if len(words) == 0 {
		return true
	}
	folded := Fold(text)
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		if !strings.Contains(folded, Fold(w)) {
			return false
		}
	}
	return true
}

// Split breaks a user query into words on whitespace.
func Split(q string) []string {
	return strings.Fields(q)
}
