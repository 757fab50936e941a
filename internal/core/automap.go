package core

// automap.go proposes a mapping from CSV headers to schema fields.
//
// Each header is scored against every field's key and label. The best field
// wins when its score is above the threshold; otherwise the column is skipped.
// Two strategies are available:
//   - first: per-header best match, ties go to the earlier field. Two headers
//     may end up on the same field; the session gate reports that.
//   - bijective: greedy global assignment by descending score so every field
//     is targeted at most once.

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// Skip is the mapping target meaning "do not import this column".
const Skip = ""

// DefaultThreshold is the minimum score (exclusive) for an automatic match.
const DefaultThreshold = 0.6

// Strategy selects how AutoMap resolves competing matches.
type Strategy string

const (
	StrategyFirstMatch Strategy = "first"
	StrategyBijective  Strategy = "bijective"
)

// ParseStrategy converts a configuration string to a Strategy.
// The empty string selects StrategyFirstMatch.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyFirstMatch:
		return StrategyFirstMatch, nil
	case StrategyBijective:
		return StrategyBijective, nil
	default:
		return "", fmt.Errorf("unknown match strategy %q (want first or bijective)", s)
	}
}

// ColumnMapping maps one CSV column to a schema field key, or to Skip.
type ColumnMapping struct {
	Column int    `json:"column"`
	Header string `json:"header"`
	Field  string `json:"field"`
}

// FieldMapping holds one entry per CSV column, in column order.
type FieldMapping []ColumnMapping

// NewFieldMapping returns a mapping that skips every column.
func NewFieldMapping(headers []string) FieldMapping {
	m := make(FieldMapping, len(headers))
	for i, h := range headers {
		m[i] = ColumnMapping{Column: i, Header: h, Field: Skip}
	}
	return m
}

// Clone returns an independent copy.
func (m FieldMapping) Clone() FieldMapping {
	out := make(FieldMapping, len(m))
	copy(out, m)
	return out
}

// Target returns the field mapped from header (first column carrying it).
func (m FieldMapping) Target(header string) string {
	for _, c := range m {
		if c.Header == header {
			return c.Field
		}
	}
	return Skip
}

// Set maps every column carrying header to field.
// Returns false when no column has that header.
func (m FieldMapping) Set(header, field string) bool {
	found := false
	for i := range m {
		if m[i].Header == header {
			m[i].Field = field
			found = true
		}
	}
	return found
}

// IsTargeted reports whether any column maps to field.
func (m FieldMapping) IsTargeted(field string) bool {
	for _, c := range m {
		if c.Field == field && field != Skip {
			return true
		}
	}
	return false
}

// Duplicates returns fields targeted by more than one column, in order of
// first appearance.
func (m FieldMapping) Duplicates() []string {
	counts := make(map[string]int)
	var order []string
	for _, c := range m {
		if c.Field == Skip {
			continue
		}
		if counts[c.Field] == 0 {
			order = append(order, c.Field)
		}
		counts[c.Field]++
	}

	var dups []string
	for _, f := range order {
		if counts[f] > 1 {
			dups = append(dups, f)
		}
	}
	return dups
}

// AsMap returns the mapping as header -> field key. When a header appears in
// several columns the first column wins.
func (m FieldMapping) AsMap() map[string]string {
	out := make(map[string]string, len(m))
	for _, c := range m {
		if _, ok := out[c.Header]; !ok {
			out[c.Header] = c.Field
		}
	}
	return out
}

// Matcher scores headers against schema fields.
type Matcher struct {
	Threshold float64
	Strategy  Strategy
}

// DefaultMatcher returns the first-match strategy at DefaultThreshold.
func DefaultMatcher() Matcher {
	return Matcher{Threshold: DefaultThreshold, Strategy: StrategyFirstMatch}
}

// AutoMap proposes a mapping with the default matcher.
func AutoMap(headers []string, schema *Schema) FieldMapping {
	return DefaultMatcher().Map(headers, schema)
}

// Map proposes a mapping for headers against schema.
func (m Matcher) Map(headers []string, schema *Schema) FieldMapping {
	if m.Strategy == StrategyBijective {
		return m.mapBijective(headers, schema)
	}
	return m.mapFirst(headers, schema)
}

func (m Matcher) mapFirst(headers []string, schema *Schema) FieldMapping {
	mapping := NewFieldMapping(headers)

	for i, h := range headers {
		best, bestScore := -1, 0.0
		for j, f := range schema.Fields {
			if score := FieldScore(h, f); best < 0 || score > bestScore {
				best, bestScore = j, score
			}
		}
		if best >= 0 && bestScore > m.Threshold {
			mapping[i].Field = schema.Fields[best].Key
		}
	}
	return mapping
}

func (m Matcher) mapBijective(headers []string, schema *Schema) FieldMapping {
	type pair struct {
		column, field int
		score         float64
	}

	var pairs []pair
	for i, h := range headers {
		for j, f := range schema.Fields {
			if score := FieldScore(h, f); score > m.Threshold {
				pairs = append(pairs, pair{column: i, field: j, score: score})
			}
		}
	}

	sort.Slice(pairs, func(a, b int) bool {
		if pairs[a].score != pairs[b].score {
			return pairs[a].score > pairs[b].score
		}
		if pairs[a].column != pairs[b].column {
			return pairs[a].column < pairs[b].column
		}
		return pairs[a].field < pairs[b].field
	})

	mapping := NewFieldMapping(headers)
	usedField := make(map[int]bool)
	for _, p := range pairs {
		if usedField[p.field] || mapping[p.column].Field != Skip {
			continue
		}
		mapping[p.column].Field = schema.Fields[p.field].Key
		usedField[p.field] = true
	}
	return mapping
}

// Candidate is one ranked suggestion for a header.
type Candidate struct {
	Field string  `json:"field"`
	Label string  `json:"label"`
	Score float64 `json:"score"`
	Match bool    `json:"match"` // Score clears the matcher threshold
}

// Suggest ranks schema fields for header by score, best first. Fields with a
// zero score are left out. limit <= 0 returns all candidates.
func (m Matcher) Suggest(header string, schema *Schema, limit int) []Candidate {
	var out []Candidate
	for _, f := range schema.Fields {
		if score := FieldScore(header, f); score > 0 {
			out = append(out, Candidate{Field: f.Key, Label: f.Label, Score: score, Match: score > m.Threshold})
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Score > out[b].Score })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// FieldScore is the best of the key and label scores for header.
func FieldScore(header string, f SchemaField) float64 {
	return max(nameScore(header, f.Key), nameScore(header, f.Label))
}

// nameScore combines edit-distance similarity with a containment score for
// abbreviated headers such as "Rate" against "Hourly Rate".
func nameScore(a, b string) float64 {
	return max(Similarity(a, b), containment(a, b))
}

// containment scores a name that is a prefix, suffix or run of whole words of
// the other, compared normalized: 0.6 + 0.4 * len(short)/len(long). Short
// fragments (under 3 chars or under 30% of the longer name) score 0.
func containment(a, b string) float64 {
	short, long, longRaw := NormalizeName(a), NormalizeName(b), b
	if len(short) > len(long) {
		short, long, longRaw = long, short, a
	}
	if len(short) < 3 || len(short) == len(long) {
		return 0
	}

	ratio := float64(len(short)) / float64(len(long))
	if ratio < 0.3 {
		return 0
	}
	if strings.HasPrefix(long, short) || strings.HasSuffix(long, short) || isTokenRun(short, nameTokens(longRaw)) {
		return 0.6 + 0.4*ratio
	}
	return 0
}

// nameTokens splits a raw name into normalized words at separators and
// lower-to-upper case changes: "maxLeadTime Days" gives max, lead, time, days.
func nameTokens(s string) []string {
	var tokens []string
	var cur []rune
	flush := func() {
		if t := NormalizeName(string(cur)); t != "" {
			tokens = append(tokens, t)
		}
		cur = cur[:0]
	}

	var prev rune
	for _, r := range s {
		switch {
		case !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.Is(unicode.Mn, r):
			flush()
		case unicode.IsUpper(r) && unicode.IsLower(prev):
			flush()
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
		prev = r
	}
	flush()
	return tokens
}

// isTokenRun reports whether s is one or more consecutive tokens joined.
func isTokenRun(s string, tokens []string) bool {
	for i := range tokens {
		joined := ""
		for _, t := range tokens[i:] {
			joined += t
			if joined == s {
				return true
			}
			if len(joined) >= len(s) {
				break
			}
		}
	}
	return false
}
