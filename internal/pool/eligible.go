// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pool

import (
	"sort"

	"github.com/pdiddy/research-match/pkg/types"
)

// Options controls an eligibility computation.
type Options struct {
	// ForUserID restricts the computation to pool entries where the user is
	// either selector or target. Empty means all users.
	ForUserID string

	// Cap is the per-user pool cap. Zero uses types.DefaultPoolCap.
	Cap int

	// Seed drives bulk sampling.
	Seed string

	// DisableCap returns every pool entry unfiltered.
	DisableCap bool
}

// pairKey is the ordered id tuple that identifies an unordered pair.
type pairKey struct {
	a, b string
}

func newPairKey(x, y string) pairKey {
	if y < x {
		x, y = y, x
	}
	return pairKey{a: x, b: y}
}

type versionPair struct {
	a, b int
}

// ComputeEligiblePairs turns pool selections, user settings and prior matching
// results into the pairs that need evaluation this cycle. A pair is eligible
// when the selection is mutual, or one-sided toward a user who allows incoming
// proposals; both users must have a profile; and no prior matching result
// exists at the pair's current profile versions. Ineligible pairs are simply
// omitted. The output is sorted by (ResearcherAID, ResearcherBID).
func ComputeEligiblePairs(entries []types.PoolEntry, users []types.UserState, prior []types.MatchingResult, opts Options) []types.EligiblePair {
	if opts.ForUserID != "" {
		scoped := make([]types.PoolEntry, 0, len(entries))
		for _, e := range entries {
			if e.SelectorID == opts.ForUserID || e.TargetID == opts.ForUserID {
				scoped = append(scoped, e)
			}
		}
		entries = scoped
	}

	capSize := opts.Cap
	if capSize <= 0 {
		capSize = types.DefaultPoolCap
	}
	capped := CapPool(entries, capSize, opts.Seed, opts.DisableCap)

	// Directed "selected" relation from the capped entries.
	selected := make(map[pairKey]bool, len(capped))
	for _, e := range capped {
		if e.SelectorID == e.TargetID {
			continue
		}
		selected[pairKey{a: e.SelectorID, b: e.TargetID}] = true
	}

	usersByID := make(map[string]types.UserState, len(users))
	for _, u := range users {
		usersByID[u.ID] = u
	}

	evaluated := make(map[pairKey]map[versionPair]bool)
	for _, r := range prior {
		k := pairKey{a: r.ResearcherAID, b: r.ResearcherBID}
		if evaluated[k] == nil {
			evaluated[k] = make(map[versionPair]bool)
		}
		evaluated[k][versionPair{a: r.ProfileVersionA, b: r.ProfileVersionB}] = true
	}

	visited := make(map[pairKey]bool)
	var pairs []types.EligiblePair

	for edge := range selected {
		k := newPairKey(edge.a, edge.b)
		if visited[k] {
			continue
		}
		visited[k] = true

		userA, okA := usersByID[k.a]
		userB, okB := usersByID[k.b]
		if !okA || !okB || !userA.HasProfile || !userB.HasProfile {
			continue
		}

		visA, visB, ok := visibilities(selected, userA, userB)
		if !ok {
			continue
		}

		if evaluated[k][versionPair{a: userA.ProfileVersion, b: userB.ProfileVersion}] {
			continue
		}

		pairs = append(pairs, types.EligiblePair{
			ResearcherAID:   k.a,
			ResearcherBID:   k.b,
			VisibilityA:     visA,
			VisibilityB:     visB,
			ProfileVersionA: userA.ProfileVersion,
			ProfileVersionB: userB.ProfileVersion,
		})
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].ResearcherAID != pairs[j].ResearcherAID {
			return pairs[i].ResearcherAID < pairs[j].ResearcherAID
		}
		return pairs[i].ResearcherBID < pairs[j].ResearcherBID
	})
	return pairs
}

// visibilities assigns per-side visibility for the ordered pair (a, b).
// Mutual selection makes both sides visible regardless of consent. A
// one-sided selection needs the target to allow incoming proposals; the
// selector then sees the proposal while the target waits for the selector's
// interest to be confirmed.
func visibilities(selected map[pairKey]bool, a, b types.UserState) (types.Visibility, types.Visibility, bool) {
	aSelectsB := selected[pairKey{a: a.ID, b: b.ID}]
	bSelectsA := selected[pairKey{a: b.ID, b: a.ID}]

	switch {
	case aSelectsB && bSelectsA:
		return types.VisibilityVisible, types.VisibilityVisible, true
	case aSelectsB && b.AllowIncomingProposals:
		return types.VisibilityVisible, types.VisibilityPendingOtherInterest, true
	case bSelectsA && a.AllowIncomingProposals:
		return types.VisibilityPendingOtherInterest, types.VisibilityVisible, true
	}
	return "", "", false
}
