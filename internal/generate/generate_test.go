// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package generate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pdiddy/research-match/internal/llm"
	"github.com/pdiddy/research-match/internal/prompt"
	"github.com/pdiddy/research-match/pkg/types"
)

func TestMain(m *testing.M) {
	retrySleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	os.Exit(m.Run())
}

type reply struct {
	text string
	err  error
}

// scriptedClient returns the queued replies in order and records requests.
type scriptedClient struct {
	mu       sync.Mutex
	replies  []reply
	requests []llm.Request
}

func (s *scriptedClient) Complete(_ context.Context, req llm.Request) ([]llm.ContentBlock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req.Messages = append([]llm.Message(nil), req.Messages...)
	s.requests = append(s.requests, req)

	if len(s.replies) == 0 {
		return nil, errors.New("unexpected call")
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	if r.err != nil {
		return nil, r.err
	}
	return []llm.ContentBlock{{Type: "text", Text: r.text}}, nil
}

func script(replies ...reply) *scriptedClient {
	return &scriptedClient{replies: replies}
}

func proposalJSON(t *testing.T, title, question string) map[string]any {
	t.Helper()
	return map[string]any{
		"title":                       title,
		"collaboration_type":          "complementary techniques",
		"scientific_question":         question,
		"one_line_summary_a":          "summary a",
		"one_line_summary_b":          "summary b",
		"detailed_rationale":          "rationale",
		"lab_a_contributions":         "a brings",
		"lab_b_contributions":         "b brings",
		"lab_a_benefits":              "a gains",
		"lab_b_benefits":              "b gains",
		"proposed_first_experiment":   "experiment",
		"anchoring_publication_pmids": []string{"111"},
		"confidence_tier":             "moderate",
		"reasoning":                   "because",
	}
}

func arrayOf(t *testing.T, elems ...any) string {
	t.Helper()
	data, err := json.Marshal(elems)
	require.NoError(t, err)
	return string(data)
}

func pair() *types.PairContext {
	return &types.PairContext{
		Pair:        types.EligiblePair{ResearcherAID: "alice", ResearcherBID: "bob"},
		ResearcherA: types.ResearcherContext{ID: "alice", Name: "Alice"},
		ResearcherB: types.ResearcherContext{ID: "bob", Name: "Bob"},
	}
}

func newGenerator(client llm.Client, mutate ...func(*types.GenerationConfig)) *Generator {
	cfg := types.GenerationConfig{
		AIConfig: types.AIConfig{Provider: "anthropic", Model: "test-model", MaxRetries: 3, RetryBaseDelay: time.Millisecond},
	}
	for _, m := range mutate {
		m(&cfg)
	}
	return New(client, cfg, nil)
}

func TestNewParseRetry(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{in: 0, want: 2},
		{in: -3, want: 1},
		{in: 1, want: 1},
		{in: 2, want: 2},
		{in: 5, want: 2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, newParseRetry(tt.in).maxAttempts, "input %d", tt.in)
	}
}

func TestParseRetryAgain(t *testing.T) {
	p := newParseRetry(2)
	assert.True(t, p.again(1, prompt.ErrMalformedJSON))
	assert.True(t, p.again(1, prompt.ErrNotArray))
	assert.False(t, p.again(2, prompt.ErrMalformedJSON))
	assert.False(t, p.again(1, nil))
	assert.False(t, p.again(1, errors.New("other")))

	single := newParseRetry(1)
	assert.False(t, single.again(1, prompt.ErrMalformedJSON))
}

func TestGenerateFirstAttemptSuccess(t *testing.T) {
	client := script(reply{text: arrayOf(t, proposalJSON(t, "Tau imaging", "Does tau seed?"))})
	g := newGenerator(client)

	res, err := g.Generate(context.Background(), pair())
	require.NoError(t, err)

	require.Len(t, res.Proposals, 1)
	assert.Equal(t, "Tau imaging", res.Proposals[0].Title)
	assert.Equal(t, []string{"111"}, res.Proposals[0].AnchoringPMIDs)
	assert.Equal(t, 0, res.Discarded)
	assert.Equal(t, 0, res.Deduplicated)
	assert.Equal(t, 1, res.Attempts)
	assert.False(t, res.Retried)
	assert.Equal(t, 1, res.RawCount)
	assert.Equal(t, "test-model", res.Model)

	require.Len(t, client.requests, 1)
	req := client.requests[0]
	assert.Equal(t, prompt.SystemMessage(), req.System)
	assert.Equal(t, "test-model", req.Model)
	assert.Equal(t, defaultMaxTokens, req.MaxTokens)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, llm.RoleUser, req.Messages[0].Role)
	assert.Contains(t, req.Messages[0].Content, "Alice")
}

func TestGenerateRetriesMalformedOutput(t *testing.T) {
	client := script(
		reply{text: "Sure! Here are my ideas: ..."},
		reply{text: "```json\n" + arrayOf(t, proposalJSON(t, "Second try", "q")) + "\n```"},
	)
	g := newGenerator(client)

	res, err := g.Generate(context.Background(), pair())
	require.NoError(t, err)

	require.Len(t, res.Proposals, 1)
	assert.Equal(t, "Second try", res.Proposals[0].Title)
	assert.Equal(t, 2, res.Attempts)
	assert.True(t, res.Retried)

	require.Len(t, client.requests, 2)
	retry := client.requests[1].Messages
	require.Len(t, retry, 3)
	assert.Equal(t, llm.RoleAssistant, retry[1].Role)
	assert.Equal(t, "Sure! Here are my ideas: ...", retry[1].Content)
	assert.Equal(t, llm.RoleUser, retry[2].Role)
	assert.Equal(t, prompt.RetryInstruction, retry[2].Content)
}

func TestGenerateRetriesNonArray(t *testing.T) {
	client := script(
		reply{text: `{"proposals": []}`},
		reply{text: `[]`},
	)

	res, err := newGenerator(client).Generate(context.Background(), pair())
	require.NoError(t, err)
	assert.Empty(t, res.Proposals)
	assert.Equal(t, 2, res.Attempts)
	assert.True(t, res.Retried)
}

func TestGenerateGivesUpAfterSecondMalformed(t *testing.T) {
	client := script(reply{text: "nope"}, reply{text: "still nope"})

	res, err := newGenerator(client).Generate(context.Background(), pair())
	require.NoError(t, err)

	assert.NotNil(t, res.Proposals)
	assert.Empty(t, res.Proposals)
	assert.Equal(t, 2, res.Attempts)
	assert.True(t, res.Retried)
	assert.Equal(t, 0, res.RawCount)
	assert.Len(t, client.requests, 2)
}

func TestGenerateSingleAttempt(t *testing.T) {
	client := script(reply{text: "nope"})
	g := newGenerator(client, func(c *types.GenerationConfig) { c.MaxAttempts = 1 })

	res, err := g.Generate(context.Background(), pair())
	require.NoError(t, err)
	assert.Empty(t, res.Proposals)
	assert.Equal(t, 1, res.Attempts)
	assert.False(t, res.Retried)
	assert.Len(t, client.requests, 1)
}

func TestGenerateClampsMaxAttempts(t *testing.T) {
	client := script(reply{text: "x"}, reply{text: "y"}, reply{text: "z"})
	g := newGenerator(client, func(c *types.GenerationConfig) { c.MaxAttempts = 10 })

	res, err := g.Generate(context.Background(), pair())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)
	assert.Len(t, client.requests, 2)
}

func TestGenerateInvalidElementsNotRetried(t *testing.T) {
	bad := proposalJSON(t, "Bad", "q")
	delete(bad, "reasoning")
	bad["confidence_tier"] = "sure"

	client := script(reply{text: arrayOf(t, bad, proposalJSON(t, "Good", "q2"), nil)})

	res, err := newGenerator(client).Generate(context.Background(), pair())
	require.NoError(t, err)

	require.Len(t, res.Proposals, 1)
	assert.Equal(t, "Good", res.Proposals[0].Title)
	assert.Equal(t, 2, res.Discarded)
	assert.Equal(t, 3, res.RawCount)
	assert.Equal(t, 1, res.Attempts)
	require.Len(t, res.ValidationErrors, 2)
	assert.Len(t, res.ValidationErrors[0].Errors, 2)
	assert.Len(t, client.requests, 1)
}

func TestGenerateTruncatesAndDeduplicates(t *testing.T) {
	pc := pair()
	pc.ExistingProposals = []types.ExistingProposal{
		{Title: "Tau seeding kinetics in neurons", ScientificQuestion: "unrelated existing question"},
	}

	client := script(reply{text: arrayOf(t,
		proposalJSON(t, "Tau seeding kinetics in neurons", "new question"),
		proposalJSON(t, "Organoid atlas", "how do organoids mature"),
		proposalJSON(t, "Lipid proteomics", "what do lipids do"),
		proposalJSON(t, "Fourth idea", "dropped by truncation"),
	)})

	res, err := newGenerator(client).Generate(context.Background(), pc)
	require.NoError(t, err)

	assert.Equal(t, 3, res.RawCount)
	assert.Equal(t, 1, res.Deduplicated)
	require.Len(t, res.Proposals, 2)
	assert.Equal(t, "Organoid atlas", res.Proposals[0].Title)
	assert.Equal(t, "Lipid proteomics", res.Proposals[1].Title)
}

func TestGenerateTransientErrorsRetried(t *testing.T) {
	client := script(
		reply{err: &llm.APIError{Provider: "test", StatusCode: http.StatusServiceUnavailable}},
		reply{err: &llm.APIError{Provider: "test", StatusCode: http.StatusTooManyRequests}},
		reply{text: arrayOf(t, proposalJSON(t, "Eventually", "q"))},
	)

	res, err := newGenerator(client).Generate(context.Background(), pair())
	require.NoError(t, err)

	require.Len(t, res.Proposals, 1)
	assert.Equal(t, 1, res.Attempts, "transient retries do not count as parse attempts")
	assert.False(t, res.Retried)
	assert.Len(t, client.requests, 3)
}

func TestGenerateTransientExhaustedIsError(t *testing.T) {
	client := script(
		reply{err: &llm.APIError{Provider: "test", StatusCode: 500}},
		reply{err: &llm.APIError{Provider: "test", StatusCode: 502}},
		reply{err: &llm.APIError{Provider: "test", StatusCode: 503}},
	)

	_, err := newGenerator(client).Generate(context.Background(), pair())

	var apiErr *llm.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 503, apiErr.StatusCode)
	assert.Len(t, client.requests, 3)
}

func TestGenerateWorstCasePhysicalCalls(t *testing.T) {
	transient := func() reply { return reply{err: &llm.APIError{Provider: "test", StatusCode: 529}} }
	client := script(
		transient(), transient(), reply{text: "garbage"},
		transient(), transient(), reply{text: "[]"},
	)

	res, err := newGenerator(client).Generate(context.Background(), pair())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)
	assert.Len(t, client.requests, 6)
}

func TestGenerateFatalErrorNotRetried(t *testing.T) {
	client := script(reply{err: &llm.APIError{Provider: "test", StatusCode: http.StatusUnauthorized}})

	_, err := newGenerator(client).Generate(context.Background(), pair())
	require.Error(t, err)
	assert.Len(t, client.requests, 1)
}

func TestGenerateNoTextContentIsFatal(t *testing.T) {
	client := llm.ClientFunc(func(context.Context, llm.Request) ([]llm.ContentBlock, error) {
		return []llm.ContentBlock{{Type: "tool_use"}}, nil
	})

	_, err := newGenerator(client).Generate(context.Background(), pair())
	assert.ErrorIs(t, err, llm.ErrNoTextContent)
}

func TestGenerateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := llm.ClientFunc(func(ctx context.Context, _ llm.Request) ([]llm.ContentBlock, error) {
		return nil, ctx.Err()
	})

	_, err := newGenerator(client).Generate(ctx, pair())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenerateDefaultModel(t *testing.T) {
	g := New(script(), types.GenerationConfig{AIConfig: types.AIConfig{Provider: "gemini"}}, nil)
	assert.Equal(t, llm.DefaultGeminiModel, g.Model())
}

func TestGenerateLogsWithModelFields(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	client := script(reply{text: "[]"})

	g := New(client, types.GenerationConfig{AIConfig: types.AIConfig{Provider: "anthropic", Model: "m"}}, zap.New(core))
	_, err := g.Generate(context.Background(), pair())
	require.NoError(t, err)

	entries := observed.FilterMessage("generated proposals").All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "anthropic", ctx["llm_provider"])
	assert.Equal(t, "m", ctx["llm_model"])
	assert.Equal(t, "alice", ctx["researcher_a"])
}
