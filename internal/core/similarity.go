package core

// similarity.go scores how alike two column names are.
//
// Both inputs are normalized first so formatting does not matter:
// "Hourly Rate", "hourly_rate" and "hourlyRate" all become "hourlyrate".
// Accented letters are folded to their base letter before non-alphanumerics
// are dropped, so "Désignation" normalizes to "designation".

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// NormalizeName lowercases s, folds diacritics, and keeps only [a-z0-9].
func NormalizeName(s string) string {
	decomposed := norm.NFD.String(s)

	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		r = unicode.ToLower(r)
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Similarity returns a score in [0,1] where 1 means the normalized strings
// are identical: 1 - levenshtein(a, b) / max(len(a), len(b)).
// Two strings that both normalize to "" score 1.
func Similarity(a, b string) float64 {
	return normalizedSimilarity(NormalizeName(a), NormalizeName(b))
}

func normalizedSimilarity(a, b string) float64 {
	longest := max(len(a), len(b))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(a, b))/float64(longest)
}

// levenshtein computes the edit distance between two ASCII strings with unit
// cost insertions, deletions and substitutions. Only two DP rows are kept.
func levenshtein(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
