package engine

import (
	"strings"
	"unicode"
)

// stopWords are excluded from overlap scoring so filler doesn't inflate
// similarity between unrelated statements.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "i": {}, "im": {}, "is": {}, "am": {},
	"are": {}, "was": {}, "be": {}, "to": {}, "of": {}, "and": {}, "or": {},
	"in": {}, "on": {}, "it": {}, "that": {}, "this": {}, "my": {}, "me": {},
	"you": {}, "for": {}, "with": {}, "at": {}, "do": {}, "dont": {},
	"not": {}, "so": {}, "but": {}, "have": {}, "has": {},
	"what": {}, "when": {}, "where": {}, "how": {}, "should": {},
	"would": {}, "could": {}, "can": {}, "will": {},
}

// tokenSet lowercases s, strips punctuation, and returns the set of
// non-stopword tokens.
func tokenSet(s string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if _, skip := stopWords[f]; skip {
			continue
		}
		set[f] = struct{}{}
	}
	return set
}

// overlap returns the token-set Jaccard similarity of two texts in [0, 1].
func overlap(a, b string) float64 {
	sa, sb := tokenSet(a), tokenSet(b)
	if len(sa) == 0 || len(sb) == 0 {
		return 0
	}
	shared := 0
	for t := range sa {
		if _, ok := sb[t]; ok {
			shared++
		}
	}
	union := len(sa) + len(sb) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}

// queryOverlap scores how much of the query's vocabulary a value covers:
// shared tokens normalized by query token count, capped at 1. Used as the
// retrieval relevance term.
func queryOverlap(query, value string) float64 {
	qs := tokenSet(query)
	if len(qs) == 0 {
		return 0
	}
	vs := tokenSet(value)
	shared := 0
	for t := range qs {
		if _, ok := vs[t]; ok {
			shared++
		}
	}
	rel := float64(shared) / float64(len(qs))
	if rel > 1 {
		rel = 1
	}
	return rel
}
