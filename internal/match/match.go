// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package match runs a matching cycle: compute the eligible pairs from the
// stored pools, generate proposals for each pair concurrently, and persist
// the outcome of every evaluation.
package match

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/research-match/internal/logging"
	"github.com/pdiddy/research-match/internal/pool"
	"github.com/pdiddy/research-match/pkg/types"
)

// DefaultWorkers bounds concurrent pair evaluations when none is configured.
const DefaultWorkers = 4

// Store is the persistence the engine reads pools from and writes results to.
type Store interface {
	PoolEntries(ctx context.Context, forUserID string) ([]types.PoolEntry, error)
	Users(ctx context.Context) ([]types.UserState, error)
	MatchingResults(ctx context.Context) ([]types.MatchingResult, error)
	PairContext(ctx context.Context, pair types.EligiblePair) (*types.PairContext, error)
	StoreResult(ctx context.Context, pc *types.PairContext, res *types.GenerationResult) (types.StoredSummary, error)
}

// Generator produces proposals for one pair.
type Generator interface {
	Generate(ctx context.Context, pc *types.PairContext) (*types.GenerationResult, error)
}

// Failure records a pair whose evaluation returned an error. No matching
// result is written for it, so the next cycle evaluates it again.
type Failure struct {
	ResearcherAID string `json:"researcher_a_id" yaml:"researcher_a_id"`
	ResearcherBID string `json:"researcher_b_id" yaml:"researcher_b_id"`
	Error         string `json:"error" yaml:"error"`
}

// Summary reports the results of a matching cycle.
type Summary struct {
	Seed string `json:"seed" yaml:"seed"`

	// Pairs is the number of eligible pairs found.
	Pairs int `json:"pairs" yaml:"pairs"`

	Evaluated       int `json:"evaluated" yaml:"evaluated"`
	WithProposals   int `json:"with_proposals" yaml:"with_proposals"`
	NoProposal      int `json:"no_proposal" yaml:"no_proposal"`
	Stored          int `json:"stored" yaml:"stored"`
	Discarded       int `json:"discarded" yaml:"discarded"`
	Deduplicated    int `json:"deduplicated" yaml:"deduplicated"`
	Retried         int `json:"retried" yaml:"retried"`
	UnresolvedPMIDs int `json:"unresolved_pmids" yaml:"unresolved_pmids"`
	Failed          int `json:"failed" yaml:"failed"`
	Cancelled       int `json:"cancelled" yaml:"cancelled"`

	Failures []Failure `json:"failures,omitempty" yaml:"failures,omitempty"`
}

// Engine runs matching cycles.
type Engine struct {
	store   Store
	gen     Generator
	workers int
	log     *zap.Logger
	now     func() time.Time
}

// New returns an Engine. Workers below 1 select DefaultWorkers; a nil
// logger disables logging.
func New(store Store, gen Generator, workers int, logger *zap.Logger) *Engine {
	if workers < 1 {
		workers = DefaultWorkers
	}
	return &Engine{
		store:   store,
		gen:     gen,
		workers: workers,
		log:     logging.OrNop(logger),
		now:     time.Now,
	}
}

// Seed returns the sampling seed for cfg: the configured one, or the
// ISO-week seed of the current cycle.
func (e *Engine) Seed(cfg types.MatchingConfig) string {
	if cfg.Seed != "" {
		return cfg.Seed
	}
	return pool.CycleSeed(e.now())
}

// Eligible loads pools, users and prior results and returns the pairs that
// need evaluation this cycle.
func (e *Engine) Eligible(ctx context.Context, cfg types.MatchingConfig) ([]types.EligiblePair, error) {
	entries, err := e.store.PoolEntries(ctx, cfg.ForUserID)
	if err != nil {
		return nil, fmt.Errorf("loading pool entries: %w", err)
	}
	users, err := e.store.Users(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading users: %w", err)
	}
	prior, err := e.store.MatchingResults(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading matching results: %w", err)
	}

	return pool.ComputeEligiblePairs(entries, users, prior, pool.Options{
		ForUserID:  cfg.ForUserID,
		Cap:        cfg.Cap,
		Seed:       e.Seed(cfg),
		DisableCap: cfg.DisableCap,
	}), nil
}

// pairOutcome is what one worker produced for one pair.
type pairOutcome struct {
	result    *types.GenerationResult
	stored    types.StoredSummary
	err       error
	cancelled bool
}

// Run evaluates every eligible pair. A failing pair is recorded in the
// summary and never stops its siblings. Cancelling ctx stops new pairs from
// starting; Run then returns the partial summary with the context error.
func (e *Engine) Run(ctx context.Context, cfg types.MatchingConfig) (Summary, error) {
	summary := Summary{Seed: e.Seed(cfg)}

	pairs, err := e.Eligible(ctx, cfg)
	if err != nil {
		return summary, err
	}
	summary.Pairs = len(pairs)
	e.log.Info("matching cycle started",
		zap.Int("pairs", len(pairs)),
		zap.Int("workers", e.workers),
		zap.String("seed", summary.Seed),
	)

	outcomes := make([]pairOutcome, len(pairs))
	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, pair := range pairs {
		g.Go(func() error {
			if ctx.Err() != nil {
				outcomes[i] = pairOutcome{err: ctx.Err(), cancelled: true}
				return nil
			}
			outcomes[i] = e.evaluate(ctx, pair)
			return nil
		})
	}
	_ = g.Wait() // errors captured in pairOutcome.err

	for i, o := range outcomes {
		summary.add(pairs[i], o)
	}

	e.log.Info("matching cycle finished",
		zap.Int("evaluated", summary.Evaluated),
		zap.Int("stored", summary.Stored),
		zap.Int("no_proposal", summary.NoProposal),
		zap.Int("failed", summary.Failed),
		zap.Int("cancelled", summary.Cancelled),
	)

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

func (e *Engine) evaluate(ctx context.Context, pair types.EligiblePair) pairOutcome {
	log := e.log.With(logging.PairFields(pair.ResearcherAID, pair.ResearcherBID)...)

	pc, err := e.store.PairContext(ctx, pair)
	if err != nil {
		log.Error("loading pair context failed", zap.Error(err))
		return pairOutcome{err: fmt.Errorf("loading pair context: %w", err)}
	}

	res, err := e.gen.Generate(ctx, pc)
	if err != nil {
		log.Error("generation failed", zap.Error(err))
		return pairOutcome{err: fmt.Errorf("generating proposals: %w", err), cancelled: ctx.Err() != nil}
	}

	stored, err := e.store.StoreResult(ctx, pc, res)
	if err != nil {
		log.Error("storing result failed", zap.Error(err))
		return pairOutcome{result: res, err: fmt.Errorf("storing result: %w", err), cancelled: ctx.Err() != nil}
	}

	log.Info("pair evaluated",
		zap.Int("proposals", len(res.Proposals)),
		zap.Int("stored", stored.Stored),
		zap.Int("discarded", res.Discarded),
		zap.Int("deduplicated", res.Deduplicated),
		zap.Int("attempts", res.Attempts),
		zap.Int("unresolved_pmids", stored.UnresolvedPMIDs),
	)
	return pairOutcome{result: res, stored: stored}
}

func (s *Summary) add(pair types.EligiblePair, o pairOutcome) {
	switch {
	case o.cancelled:
		s.Cancelled++
		return
	case o.err != nil:
		s.Failed++
		s.Failures = append(s.Failures, Failure{
			ResearcherAID: pair.ResearcherAID,
			ResearcherBID: pair.ResearcherBID,
			Error:         o.err.Error(),
		})
		return
	}

	s.Evaluated++
	if len(o.result.Proposals) > 0 {
		s.WithProposals++
	} else {
		s.NoProposal++
	}
	s.Stored += o.stored.Stored
	s.UnresolvedPMIDs += o.stored.UnresolvedPMIDs
	s.Discarded += o.result.Discarded
	s.Deduplicated += o.result.Deduplicated
	if o.result.Retried {
		s.Retried++
	}
}
