package rerank

import (
	"context"
	"strings"
	"unicode"
)

// OverlapScorer is the offline fallback when no cross-encoder service is
// configured. A candidate scores the share of distinct query tokens it
// contains, plus a small bonus for matching the query's first token pair as
// a phrase.
type OverlapScorer struct{}

func (OverlapScorer) Score(_ context.Context, query string, candidates []string) ([]float64, error) {
	queryTokens := splitAlphaNumLower(query)
	querySet := toTokenSet(queryTokens)
	phrase := ""
	if len(queryTokens) >= 2 {
		phrase = queryTokens[0] + " " + queryTokens[1]
	}

	out := make([]float64, len(candidates))
	for i, c := range candidates {
		tokens := splitAlphaNumLower(c)
		score := 0.9 * tokenOverlap(querySet, toTokenSet(tokens))
		if phrase != "" && strings.Contains(strings.Join(tokens, " "), phrase) {
			score += 0.1
		}
		out[i] = score
	}
	return out, nil
}

func tokenOverlap(query, chunk map[string]struct{}) float64 {
	if len(query) == 0 || len(chunk) == 0 {
		return 0
	}
	matches := 0
	for token := range query {
		if _, ok := chunk[token]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(query))
}

func toTokenSet(tokens []string) map[string]struct{} {
	out := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		out[token] = struct{}{}
	}
	return out
}

func splitAlphaNumLower(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
