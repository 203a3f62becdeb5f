// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pdiddy/research-match/pkg/types"
)

// PoolEntries returns the match-pool edges, optionally only those where
// forUserID is the selector or the target.
func (s *Store) PoolEntries(ctx context.Context, forUserID string) ([]types.PoolEntry, error) {
	query := `SELECT selector_id, target_id, source FROM pool_entries`
	var args []any
	if forUserID != "" {
		query += ` WHERE selector_id = ? OR target_id = ?`
		args = append(args, forUserID, forUserID)
	}
	query += ` ORDER BY selector_id, target_id, source`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying pool entries: %w", err)
	}
	defer rows.Close()

	var entries []types.PoolEntry
	for rows.Next() {
		var e types.PoolEntry
		var source string
		if err := rows.Scan(&e.SelectorID, &e.TargetID, &source); err != nil {
			return nil, fmt.Errorf("scanning pool entry: %w", err)
		}
		e.Source = types.PoolSource(source)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Users returns every user with the settings eligibility depends on. A user
// has a profile when a profiles row exists.
func (s *Store) Users(ctx context.Context) ([]types.UserState, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT u.id, u.allow_incoming_proposals, u.profile_version, p.user_id IS NOT NULL
		 FROM users u LEFT JOIN profiles p ON p.user_id = u.id
		 ORDER BY u.id`)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	var users []types.UserState
	for rows.Next() {
		var u types.UserState
		if err := rows.Scan(&u.ID, &u.AllowIncomingProposals, &u.ProfileVersion, &u.HasProfile); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// MatchingResults returns the full audit trail in insertion order.
func (s *Store) MatchingResults(ctx context.Context) ([]types.MatchingResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT researcher_a_id, researcher_b_id, profile_version_a, profile_version_b, outcome, evaluated_at
		 FROM matching_results ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying matching results: %w", err)
	}
	defer rows.Close()

	var results []types.MatchingResult
	for rows.Next() {
		var r types.MatchingResult
		var outcome, evaluatedAt string
		if err := rows.Scan(&r.ResearcherAID, &r.ResearcherBID, &r.ProfileVersionA, &r.ProfileVersionB, &outcome, &evaluatedAt); err != nil {
			return nil, fmt.Errorf("scanning matching result: %w", err)
		}
		r.Outcome = types.MatchOutcome(outcome)
		r.EvaluatedAt = parseTime(evaluatedAt)
		results = append(results, r)
	}
	return results, rows.Err()
}

// Researcher loads one researcher's profile fields and publications,
// most recent first. It returns ErrNotFound for an unknown id.
func (s *Store) Researcher(ctx context.Context, id string) (types.ResearcherContext, error) {
	rc := types.ResearcherContext{ID: id}

	var summary, techniques, models, diseases, targets, keywords, grants sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT u.name, u.institution, u.department,
			p.research_summary, p.techniques, p.experimental_models, p.disease_areas,
			p.key_targets, p.keywords, p.grant_titles
		 FROM users u LEFT JOIN profiles p ON p.user_id = u.id
		 WHERE u.id = ?`, id,
	).Scan(&rc.Name, &rc.Institution, &rc.Department,
		&summary, &techniques, &models, &diseases, &targets, &keywords, &grants)
	if errors.Is(err, sql.ErrNoRows) {
		return rc, fmt.Errorf("researcher %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return rc, fmt.Errorf("querying researcher %s: %w", id, err)
	}

	rc.ResearchSummary = summary.String
	rc.Techniques = decodeList(techniques)
	rc.ExperimentalModels = decodeList(models)
	rc.DiseaseAreas = decodeList(diseases)
	rc.KeyTargets = decodeList(targets)
	rc.Keywords = decodeList(keywords)
	rc.GrantTitles = decodeList(grants)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, pmid, title, abstract, journal, year, author_position
		 FROM publications WHERE user_id = ? ORDER BY year DESC, id`, id)
	if err != nil {
		return rc, fmt.Errorf("querying publications for %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var p types.Publication
		var position string
		if err := rows.Scan(&p.ID, &p.PMID, &p.Title, &p.Abstract, &p.Journal, &p.Year, &position); err != nil {
			return rc, fmt.Errorf("scanning publication: %w", err)
		}
		p.AuthorPosition = types.AuthorPosition(position)
		rc.Publications = append(rc.Publications, p)
	}
	return rc, rows.Err()
}

// PairContext assembles both researchers and the pair's existing proposals.
func (s *Store) PairContext(ctx context.Context, pair types.EligiblePair) (*types.PairContext, error) {
	a, err := s.Researcher(ctx, pair.ResearcherAID)
	if err != nil {
		return nil, err
	}
	b, err := s.Researcher(ctx, pair.ResearcherBID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT title, scientific_question FROM proposals
		 WHERE researcher_a_id = ? AND researcher_b_id = ? ORDER BY id`,
		pair.ResearcherAID, pair.ResearcherBID)
	if err != nil {
		return nil, fmt.Errorf("querying existing proposals: %w", err)
	}
	defer rows.Close()

	pc := &types.PairContext{Pair: pair, ResearcherA: a, ResearcherB: b}
	for rows.Next() {
		var e types.ExistingProposal
		if err := rows.Scan(&e.Title, &e.ScientificQuestion); err != nil {
			return nil, fmt.Errorf("scanning existing proposal: %w", err)
		}
		pc.ExistingProposals = append(pc.ExistingProposals, e)
	}
	return pc, rows.Err()
}
