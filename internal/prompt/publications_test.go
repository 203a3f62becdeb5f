// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pdiddy/research-match/pkg/types"
)

func pmids(pubs []types.Publication) []string {
	out := make([]string, len(pubs))
	for i, p := range pubs {
		out[i] = p.PMID
	}
	return out
}

func TestSelectPublicationsOrder(t *testing.T) {
	pubs := []types.Publication{
		{PMID: "mid-2024", Abstract: "x", Year: 2024, AuthorPosition: types.PositionMiddle},
		{PMID: "first-2020", Abstract: "x", Year: 2020, AuthorPosition: types.PositionFirst},
		{PMID: "last-2019", Abstract: "x", Year: 2019, AuthorPosition: types.PositionLast},
		{PMID: "last-2023", Abstract: "x", Year: 2023, AuthorPosition: types.PositionLast},
		{PMID: "first-2022", Abstract: "x", Year: 2022, AuthorPosition: types.PositionFirst},
		{PMID: "unknown", Abstract: "x", Year: 2025},
	}

	got := SelectPublications(pubs, 10, false)
	assert.Equal(t, []string{"last-2023", "last-2019", "first-2022", "first-2020", "mid-2024", "unknown"}, pmids(got))
}

func TestSelectPublicationsStableTies(t *testing.T) {
	pubs := []types.Publication{
		{PMID: "a", Abstract: "x", Year: 2020, AuthorPosition: types.PositionLast},
		{PMID: "b", Abstract: "x", Year: 2020, AuthorPosition: types.PositionLast},
		{PMID: "c", Abstract: "x", Year: 2020, AuthorPosition: types.PositionLast},
	}
	assert.Equal(t, []string{"a", "b", "c"}, pmids(SelectPublications(pubs, 10, true)))
}

func TestSelectPublicationsAbstractFilter(t *testing.T) {
	pubs := []types.Publication{
		{PMID: "blank", Abstract: "  \n", Year: 2024, AuthorPosition: types.PositionLast},
		{PMID: "empty", Year: 2024, AuthorPosition: types.PositionLast},
		{PMID: "full", Abstract: "text", Year: 2010, AuthorPosition: types.PositionMiddle},
	}

	assert.Equal(t, []string{"full"}, pmids(SelectPublications(pubs, 10, true)))
	assert.Len(t, SelectPublications(pubs, 10, false), 3)
}

func TestSelectPublicationsTruncates(t *testing.T) {
	var pubs []types.Publication
	for i := 0; i < 45; i++ {
		pubs = append(pubs, types.Publication{PMID: "p", Abstract: "x", Year: 2000 + i})
	}

	assert.Len(t, SelectPublications(pubs, MatchingPublicationCap, true), 10)
	assert.Len(t, SelectPublications(pubs, SynthesisPublicationCap, true), 30)
	assert.Empty(t, SelectPublications(pubs, 0, true))
}

func TestSelectPublicationsDoesNotMutate(t *testing.T) {
	pubs := []types.Publication{
		{PMID: "1", Abstract: "x", Year: 2010, AuthorPosition: types.PositionMiddle},
		{PMID: "2", Abstract: "x", Year: 2020, AuthorPosition: types.PositionLast},
	}
	original := append([]types.Publication(nil), pubs...)

	_ = SelectPublications(pubs, 1, true)
	_ = byRecency(pubs)

	assert.Equal(t, original, pubs)
}
