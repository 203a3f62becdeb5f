// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package match

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pdiddy/research-match/internal/generate"
	"github.com/pdiddy/research-match/internal/llm"
	"github.com/pdiddy/research-match/internal/store"
	"github.com/pdiddy/research-match/pkg/types"
)

// --- test helpers ---

const trioFixture = `
users:
  - id: alice
    name: Alice Chen
    profile_version: 1
    profile:
      research_summary: Tau propagation.
    publications:
      - pmid: "111"
        title: Tau seeding
        abstract: Seeding assays.
        year: 2023
        author_position: last
  - id: bob
    name: Bob Diaz
    profile_version: 1
    profile:
      research_summary: Single-molecule imaging.
    publications:
      - pmid: "221"
        title: Fibril uptake
        abstract: Uptake assays.
        year: 2022
        author_position: first
  - id: carol
    name: Carol Evans
    profile_version: 1
    profile:
      research_summary: Cryo-EM of fibrils.
pool:
  - {selector: alice, target: bob}
  - {selector: bob, target: alice}
  - {selector: alice, target: carol}
  - {selector: carol, target: alice}
  - {selector: bob, target: carol}
  - {selector: carol, target: bob}
`

const pairFixture = `
users:
  - id: alice
    name: Alice Chen
    profile_version: 1
    profile:
      research_summary: Tau propagation.
    publications:
      - pmid: "111"
        title: Tau seeding
        abstract: Seeding assays.
        year: 2023
        author_position: last
  - id: bob
    name: Bob Diaz
    profile_version: 1
    profile:
      research_summary: Single-molecule imaging.
pool:
  - {selector: alice, target: bob}
  - {selector: bob, target: alice}
`

func testStore(t *testing.T, fixture string) *store.Store {
	t.Helper()
	s, err := store.Open(types.StoreConfig{Path: filepath.Join(t.TempDir(), "match.db")})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = s.Import(context.Background(), strings.NewReader(fixture))
	require.NoError(t, err)
	return s
}

func proposalJSON(t *testing.T, title string, pmids ...string) string {
	t.Helper()
	data, err := json.Marshal([]types.ProposalOutput{{
		Title:                   title,
		CollaborationType:       "complementary techniques",
		ScientificQuestion:      "Does " + title + " hold?",
		OneLineSummaryA:         "for a",
		OneLineSummaryB:         "for b",
		DetailedRationale:       "rationale",
		LabAContributions:       "a brings",
		LabBContributions:       "b brings",
		LabABenefits:            "a gains",
		LabBBenefits:            "b gains",
		ProposedFirstExperiment: "pilot",
		AnchoringPMIDs:          pmids,
		ConfidenceTier:          types.ConfidenceModerate,
		Reasoning:               "reasoning",
	}})
	require.NoError(t, err)
	return string(data)
}

// fakeLLM answers each call with respond and counts calls.
type fakeLLM struct {
	mu      sync.Mutex
	calls   int
	respond func(call int, req llm.Request) (string, error)
}

func (f *fakeLLM) Complete(_ context.Context, req llm.Request) ([]llm.ContentBlock, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()

	text, err := f.respond(call, req)
	if err != nil {
		return nil, err
	}
	return []llm.ContentBlock{{Type: "text", Text: text}}, nil
}

func newGenerator(client llm.Client) *generate.Generator {
	return generate.New(client, types.GenerationConfig{
		AIConfig: types.AIConfig{Provider: "anthropic", Model: "test-model", MaxRetries: 1},
	}, nil)
}

func userPrompt(req llm.Request) string {
	if len(req.Messages) == 0 {
		return ""
	}
	return req.Messages[0].Content
}

// --- end-to-end scenarios ---

func TestRunSingleProposal(t *testing.T) {
	s := testStore(t, pairFixture)
	client := &fakeLLM{respond: func(int, llm.Request) (string, error) {
		return proposalJSON(t, "Imaging tau uptake", "111"), nil
	}}
	engine := New(s, newGenerator(client), 2, nil)
	ctx := context.Background()

	summary, err := engine.Run(ctx, types.MatchingConfig{Seed: "2026-W42"})
	require.NoError(t, err)

	want := Summary{Seed: "2026-W42", Pairs: 1, Evaluated: 1, WithProposals: 1, Stored: 1}
	if diff := cmp.Diff(want, summary); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 1, client.calls)

	proposals, err := s.Proposals(ctx)
	require.NoError(t, err)
	require.Len(t, proposals, 1)
	assert.Equal(t, "Imaging tau uptake", proposals[0].Title)
	assert.Equal(t, "test-model", proposals[0].Model)
	assert.Equal(t, types.VisibilityVisible, proposals[0].VisibilityA)
	assert.Equal(t, types.VisibilityVisible, proposals[0].VisibilityB)
	assert.Len(t, proposals[0].AnchoringPublicationIDs, 1)

	results, err := s.MatchingResults(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, types.OutcomeProposalsGenerated, results[0].Outcome)
}

func TestRunRetryThenEmpty(t *testing.T) {
	s := testStore(t, pairFixture)
	client := &fakeLLM{respond: func(call int, _ llm.Request) (string, error) {
		if call == 1 {
			return "I could not think of anything useful.", nil
		}
		return "[]", nil
	}}
	engine := New(s, newGenerator(client), 1, nil)
	ctx := context.Background()

	summary, err := engine.Run(ctx, types.MatchingConfig{Seed: "s"})
	require.NoError(t, err)

	want := Summary{Seed: "s", Pairs: 1, Evaluated: 1, NoProposal: 1, Retried: 1}
	if diff := cmp.Diff(want, summary); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 2, client.calls)

	proposals, err := s.Proposals(ctx)
	require.NoError(t, err)
	assert.Empty(t, proposals)

	results, err := s.MatchingResults(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, types.OutcomeNoProposal, results[0].Outcome)
}

func TestRunSkipsEvaluatedPairs(t *testing.T) {
	s := testStore(t, pairFixture)
	client := &fakeLLM{respond: func(int, llm.Request) (string, error) { return "[]", nil }}
	engine := New(s, newGenerator(client), 1, nil)
	ctx := context.Background()

	_, err := engine.Run(ctx, types.MatchingConfig{Seed: "s"})
	require.NoError(t, err)

	again, err := engine.Run(ctx, types.MatchingConfig{Seed: "s"})
	require.NoError(t, err)
	assert.Zero(t, again.Pairs)
	assert.Equal(t, 1, client.calls)

	// A profile change makes the pair eligible again.
	_, err = s.Import(ctx, strings.NewReader(`
users:
  - id: bob
    name: Bob Diaz
    profile_version: 2
    profile:
      research_summary: Now doing cryo-ET.
`))
	require.NoError(t, err)

	third, err := engine.Run(ctx, types.MatchingConfig{Seed: "s"})
	require.NoError(t, err)
	assert.Equal(t, 1, third.Pairs)
	assert.Equal(t, 2, client.calls)
}

func TestRunIsolatesFailures(t *testing.T) {
	s := testStore(t, trioFixture)
	client := &fakeLLM{respond: func(_ int, req llm.Request) (string, error) {
		p := userPrompt(req)
		if strings.Contains(p, "Bob Diaz") && strings.Contains(p, "Carol Evans") {
			return "", &llm.APIError{Provider: "Claude", StatusCode: http.StatusBadRequest, Body: "bad request"}
		}
		return proposalJSON(t, "Shared idea", "111", "999"), nil
	}}
	engine := New(s, newGenerator(client), 3, nil)
	ctx := context.Background()

	summary, err := engine.Run(ctx, types.MatchingConfig{Seed: "s"})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Pairs)
	assert.Equal(t, 2, summary.Evaluated)
	assert.Equal(t, 2, summary.Stored)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, "bob", summary.Failures[0].ResearcherAID)
	assert.Equal(t, "carol", summary.Failures[0].ResearcherBID)
	assert.Contains(t, summary.Failures[0].Error, "400")

	// alice-bob resolves 111 only; alice-carol resolves 111 only.
	assert.Equal(t, 2, summary.UnresolvedPMIDs)

	results, err := s.MatchingResults(ctx)
	require.NoError(t, err)
	assert.Len(t, results, 2, "failed pair writes no matching result")

	// The failed pair is retried next cycle.
	pairs, err := engine.Eligible(ctx, types.MatchingConfig{Seed: "s"})
	require.NoError(t, err)
	assert.Equal(t, []types.EligiblePair{{
		ResearcherAID: "bob", ResearcherBID: "carol",
		VisibilityA: types.VisibilityVisible, VisibilityB: types.VisibilityVisible,
		ProfileVersionA: 1, ProfileVersionB: 1,
	}}, pairs)
}

func TestRunForUser(t *testing.T) {
	s := testStore(t, trioFixture)
	client := &fakeLLM{respond: func(int, llm.Request) (string, error) { return "[]", nil }}
	engine := New(s, newGenerator(client), 2, nil)

	summary, err := engine.Run(context.Background(), types.MatchingConfig{Seed: "s", ForUserID: "carol"})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Pairs)
	assert.Equal(t, 2, summary.NoProposal)
}

// cancellingGenerator cancels the run on its first call.
type cancellingGenerator struct {
	cancel context.CancelFunc
	calls  int
}

func (g *cancellingGenerator) Generate(ctx context.Context, _ *types.PairContext) (*types.GenerationResult, error) {
	g.calls++
	g.cancel()
	return nil, ctx.Err()
}

func TestRunCancelled(t *testing.T) {
	s := testStore(t, trioFixture)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gen := &cancellingGenerator{cancel: cancel}
	engine := New(s, gen, 1, nil)

	summary, err := engine.Run(ctx, types.MatchingConfig{Seed: "s"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, gen.calls, "no pair starts after cancellation")
	assert.Equal(t, 3, summary.Cancelled)
	assert.Zero(t, summary.Failed)

	results, err := s.MatchingResults(context.Background())
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRunLogsPairs(t *testing.T) {
	s := testStore(t, pairFixture)
	core, logs := observer.New(zapcore.InfoLevel)
	client := &fakeLLM{respond: func(int, llm.Request) (string, error) { return "[]", nil }}
	engine := New(s, newGenerator(client), 1, zap.New(core))

	_, err := engine.Run(context.Background(), types.MatchingConfig{Seed: "s"})
	require.NoError(t, err)

	evaluated := logs.FilterMessage("pair evaluated").All()
	require.Len(t, evaluated, 1)
	fields := evaluated[0].ContextMap()
	assert.Equal(t, "alice", fields["researcher_a"])
	assert.Equal(t, "bob", fields["researcher_b"])
	assert.Len(t, logs.FilterMessage("matching cycle finished").All(), 1)
}

func TestSeedDefaultsToCycleWeek(t *testing.T) {
	engine := New(nil, nil, 0, nil)
	engine.now = func() time.Time { return time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC) }

	assert.Equal(t, "2026-W42", engine.Seed(types.MatchingConfig{}))
	assert.Equal(t, "fixed", engine.Seed(types.MatchingConfig{Seed: "fixed"}))
	assert.Equal(t, DefaultWorkers, engine.workers)
}
