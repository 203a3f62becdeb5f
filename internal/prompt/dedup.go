// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package prompt

import (
	"strings"
	"unicode"

	"github.com/pdiddy/research-match/pkg/types"
)

// DefaultDedupThreshold is the Jaccard similarity at or above which a
// candidate is treated as restating an existing proposal.
const DefaultDedupThreshold = 0.5

// wordSet lowercases s, drops punctuation and symbols, and returns the set of
// whitespace-separated words.
func wordSet(s string) map[string]struct{} {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s)

	words := strings.Fields(cleaned)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// Jaccard returns |A∩B| / |A∪B| over the normalized word sets of a and b.
// Two texts that both normalize to nothing are identical (1.0); exactly one
// empty text is similarity 0.
func Jaccard(a, b string) float64 {
	setA, setB := wordSet(a), wordSet(b)
	switch {
	case len(setA) == 0 && len(setB) == 0:
		return 1.0
	case len(setA) == 0 || len(setB) == 0:
		return 0
	}

	inter := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

// DedupResult splits candidates into new proposals and restatements.
type DedupResult struct {
	Unique     []types.ProposalOutput
	Duplicates []types.ProposalOutput
}

// Deduplicate removes candidates whose title or scientific question is at
// least threshold-similar to any existing proposal for the pair. A threshold
// of zero or less uses DefaultDedupThreshold. Candidates are not compared
// against each other.
func Deduplicate(candidates []types.ProposalOutput, existing []types.ExistingProposal, threshold float64) DedupResult {
	if threshold <= 0 {
		threshold = DefaultDedupThreshold
	}

	res := DedupResult{Unique: make([]types.ProposalOutput, 0, len(candidates))}
	for _, c := range candidates {
		if isDuplicate(c, existing, threshold) {
			res.Duplicates = append(res.Duplicates, c)
			continue
		}
		res.Unique = append(res.Unique, c)
	}
	return res
}

func isDuplicate(c types.ProposalOutput, existing []types.ExistingProposal, threshold float64) bool {
	for _, e := range existing {
		if Jaccard(c.Title, e.Title) >= threshold ||
			Jaccard(c.ScientificQuestion, e.ScientificQuestion) >= threshold {
			return true
		}
	}
	return false
}
