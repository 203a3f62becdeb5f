// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package generate drives the LLM for one researcher pair: render the
// prompt, call the model, parse the reply, retry once on a malformed reply,
// then validate and de-duplicate the proposals.
package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/research-match/internal/llm"
	"github.com/pdiddy/research-match/internal/logging"
	"github.com/pdiddy/research-match/internal/prompt"
	"github.com/pdiddy/research-match/pkg/types"
)

const (
	defaultMaxAttempts = 2
	defaultMaxTokens   = 4096
)

// retrySleep replaces the backoff wait between transient retries. Tests
// override it to avoid real sleeps.
var retrySleep func(ctx context.Context, d time.Duration) error

// parseRetry is the whole-response policy: a reply that is not a JSON array
// earns at most one more attempt.
type parseRetry struct {
	maxAttempts int
}

// newParseRetry clamps n to [1, 2]; zero selects the default of 2.
func newParseRetry(n int) parseRetry {
	switch {
	case n == 0:
		n = defaultMaxAttempts
	case n < 1:
		n = 1
	case n > 2:
		n = 2
	}
	return parseRetry{maxAttempts: n}
}

// again reports whether a parse failure on the given attempt is retried.
func (p parseRetry) again(attempt int, parseErr error) bool {
	if parseErr == nil {
		return false
	}
	if !errors.Is(parseErr, prompt.ErrMalformedJSON) && !errors.Is(parseErr, prompt.ErrNotArray) {
		return false
	}
	return attempt < p.maxAttempts
}

// Generator produces proposals for eligible pairs.
type Generator struct {
	client llm.Client
	cfg    types.GenerationConfig
	model  string
	policy parseRetry
	log    *zap.Logger
}

// New wraps client in the transient retry policy from cfg and returns a
// Generator. A nil logger disables logging.
func New(client llm.Client, cfg types.GenerationConfig, logger *zap.Logger) *Generator {
	model := cfg.Model
	if model == "" {
		model = llm.DefaultModel(cfg.Provider)
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}

	log := logging.WithCommonFields(logger, llm.NormalizeProvider(cfg.Provider), model)

	return &Generator{
		client: &llm.RetryingClient{
			Client: client,
			Retry: llm.Retry{
				MaxAttempts: cfg.MaxRetries,
				BaseDelay:   cfg.RetryBaseDelay,
				Sleep:       retrySleep,
			},
			Logger: log,
		},
		cfg:    cfg,
		model:  model,
		policy: newParseRetry(cfg.MaxAttempts),
		log:    log,
	}
}

// Model returns the model name recorded on results.
func (g *Generator) Model() string { return g.model }

// Generate runs the call, parse, retry, validate and dedup sequence for one
// pair. Malformed replies, invalid elements and duplicates are reported in
// the result. Only provider failures that survive the transient retry
// policy, a reply without text, or cancellation are returned as errors.
func (g *Generator) Generate(ctx context.Context, pc *types.PairContext) (*types.GenerationResult, error) {
	msgs, err := prompt.BuildMessages(pc)
	if err != nil {
		return nil, fmt.Errorf("building messages: %w", err)
	}

	log := g.log.With(logging.PairFields(pc.Pair.ResearcherAID, pc.Pair.ResearcherBID)...)

	conversation := []llm.Message{{Role: llm.RoleUser, Content: msgs.User}}
	result := &types.GenerationResult{Proposals: []types.ProposalOutput{}, Model: g.model}

	for attempt := 1; ; attempt++ {
		result.Attempts = attempt
		result.Retried = attempt > 1

		blocks, err := g.client.Complete(ctx, llm.Request{
			System:      msgs.System,
			Messages:    conversation,
			Model:       g.model,
			MaxTokens:   g.cfg.MaxTokens,
			Temperature: g.cfg.Temperature,
		})
		if err != nil {
			return nil, fmt.Errorf("attempt %d: %w", attempt, err)
		}

		raw, err := llm.TextOf(blocks)
		if err != nil {
			return nil, fmt.Errorf("attempt %d: %w", attempt, err)
		}

		elems, parseErr := prompt.ParseOutput(raw)
		if parseErr == nil {
			g.finish(result, elems, pc.ExistingProposals)
			log.Info("generated proposals",
				zap.Int("attempts", result.Attempts),
				zap.Int("raw", result.RawCount),
				zap.Int("kept", len(result.Proposals)),
				zap.Int("discarded", result.Discarded),
				zap.Int("deduplicated", result.Deduplicated))
			return result, nil
		}

		log.Warn("unparseable LLM output",
			zap.Int("attempt", attempt),
			zap.Error(parseErr),
			zap.String("output", logging.Truncate(raw, 200)))

		if !g.policy.again(attempt, parseErr) {
			return result, nil
		}

		previous := raw
		if strings.TrimSpace(previous) == "" {
			previous = "(empty response)"
		}
		conversation = append(conversation,
			llm.Message{Role: llm.RoleAssistant, Content: previous},
			llm.Message{Role: llm.RoleUser, Content: prompt.RetryInstruction},
		)
	}
}

// finish applies validation and de-duplication to a parsed reply.
func (g *Generator) finish(result *types.GenerationResult, elems []json.RawMessage, existing []types.ExistingProposal) {
	result.RawCount = len(elems)

	filtered := prompt.FilterValid(elems)
	result.Discarded = filtered.Discarded
	result.ValidationErrors = filtered.Errors

	for _, e := range filtered.Errors {
		g.log.Debug("discarded proposal", zap.Int("index", e.Index), zap.Strings("errors", e.Errors))
	}

	deduped := prompt.Deduplicate(filtered.Valid, existing, g.cfg.DedupThreshold)
	result.Deduplicated = len(deduped.Duplicates)
	result.Proposals = deduped.Unique
}
