// Package scorer ranks candidate table names against a natural-language
// question. The scoring is deterministic and language-agnostic: token
// overlap plus a fixed list of generic business-entity nouns. It is the
// only "semantic" signal the resolver uses when a tenant owns more than
// one table and no table was requested.
package scorer

import (
	"sort"
	"strings"
	"unicode"
)

// SelectionThreshold is the minimum winning score for a candidate to be
// selected. At or below it, callers fall back to the first available table.
const SelectionThreshold = 5

// Scoring weights.
const (
	weightVerbatim  = 100 // candidate name appears verbatim in the question
	weightExact     = 10  // per exact token overlap
	weightSubstring = 5   // per substring match with a token longer than 3
	weightEntity    = 15  // per shared generic business-entity noun
)

// businessEntities are generic nouns that frequently name both a table and
// the thing a question asks about.
var businessEntities = []string{
	"user", "customer", "client", "person", "people",
	"order", "sale", "transaction", "purchase",
	"product", "item", "inventory", "catalog",
	"account", "profile", "data", "record",
}

// Tokenize lowercases s and splits it on every non-alphanumeric rune.
func Tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Score computes the relevance of a candidate table name to a question.
func Score(question, candidate string) int {
	questionLower := strings.ToLower(question)
	candidateLower := strings.ToLower(candidate)

	questionTokens := tokenSet(question)
	candidateTokens := tokenSet(candidate)

	score := 0

	if strings.Contains(questionLower, candidateLower) {
		score += weightVerbatim
	}

	for tok := range candidateTokens {
		if _, ok := questionTokens[tok]; ok {
			score += weightExact
		}
	}

	for q := range questionTokens {
		for c := range candidateTokens {
			if len(q) > 3 && strings.Contains(c, q) {
				score += weightSubstring
			} else if len(c) > 3 && strings.Contains(q, c) {
				score += weightSubstring
			}
		}
	}

	for _, entity := range businessEntities {
		if strings.Contains(questionLower, entity) && strings.Contains(candidateLower, entity) {
			score += weightEntity
		}
	}

	return score
}

// Best returns the highest-scoring candidate and its score. Ties break
// lexicographically so selection is stable across catalog listings.
// An empty candidate list yields ("", 0).
func Best(question string, candidates []string) (string, int) {
	if len(candidates) == 0 {
		return "", 0
	}

	sorted := make([]string, len(candidates))
	copy(sorted, candidates)
	sort.Strings(sorted)

	best := ""
	bestScore := -1
	for _, c := range sorted {
		if s := Score(question, c); s > bestScore {
			best = c
			bestScore = s
		}
	}
	return best, bestScore
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range Tokenize(s) {
		set[tok] = struct{}{}
	}
	return set
}
