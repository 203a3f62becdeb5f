// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package prompt

import (
	"sort"
	"strings"

	"github.com/pdiddy/research-match/pkg/types"
)

const (
	// MatchingPublicationCap bounds the abstracts shown per researcher in a
	// matching prompt.
	MatchingPublicationCap = 10

	// SynthesisPublicationCap bounds the abstracts fed to profile synthesis.
	SynthesisPublicationCap = 30
)

// positionPriority orders author positions: senior (last) authorship first,
// then first authorship, then everything else.
var positionPriority = map[types.AuthorPosition]int{
	types.PositionLast:   0,
	types.PositionFirst:  1,
	types.PositionMiddle: 2,
}

func priorityOf(p types.AuthorPosition) int {
	if v, ok := positionPriority[p]; ok {
		return v
	}
	return len(positionPriority)
}

// SelectPublications returns at most limit publications ordered by author
// position (last, first, middle) and then by descending year. When
// requireAbstract is set, publications with a blank abstract are dropped
// before truncation. The input slice is not modified.
func SelectPublications(pubs []types.Publication, limit int, requireAbstract bool) []types.Publication {
	selected := make([]types.Publication, 0, len(pubs))
	for _, p := range pubs {
		if requireAbstract && strings.TrimSpace(p.Abstract) == "" {
			continue
		}
		selected = append(selected, p)
	}

	sort.SliceStable(selected, func(i, j int) bool {
		pi, pj := priorityOf(selected[i].AuthorPosition), priorityOf(selected[j].AuthorPosition)
		if pi != pj {
			return pi < pj
		}
		return selected[i].Year > selected[j].Year
	})

	if limit >= 0 && len(selected) > limit {
		selected = selected[:limit]
	}
	return selected
}

// byRecency returns a copy of pubs sorted most recent first.
func byRecency(pubs []types.Publication) []types.Publication {
	out := make([]types.Publication, len(pubs))
	copy(out, pubs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Year > out[j].Year
	})
	return out
}
