// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pdiddy/research-match/pkg/types"
)

// StoreResult persists the generator's output for one pair together with
// its matching result, in a single transaction. An empty result records a
// no_proposal outcome only. Anchoring PMIDs are resolved against the two
// researchers' publications; unresolved ones are counted and skipped.
func (s *Store) StoreResult(ctx context.Context, pc *types.PairContext, res *types.GenerationResult) (types.StoredSummary, error) {
	if pc == nil || res == nil {
		return types.StoredSummary{}, fmt.Errorf("pair context and generation result are required")
	}
	pair := pc.Pair
	now := formatTime(s.now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.StoredSummary{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var summary types.StoredSummary
	outcome := types.OutcomeNoProposal

	if len(res.Proposals) > 0 {
		outcome = types.OutcomeProposalsGenerated

		pubIDs, err := pairPublicationIDs(ctx, tx, pair.ResearcherAID, pair.ResearcherBID)
		if err != nil {
			return types.StoredSummary{}, err
		}

		for _, p := range res.Proposals {
			unresolved, err := insertProposal(ctx, tx, pair, p, pubIDs, res.Model, now)
			if err != nil {
				return types.StoredSummary{}, err
			}
			summary.Stored++
			summary.UnresolvedPMIDs += unresolved
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO matching_results (researcher_a_id, researcher_b_id, profile_version_a, profile_version_b, outcome, evaluated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		pair.ResearcherAID, pair.ResearcherBID, pair.ProfileVersionA, pair.ProfileVersionB, string(outcome), now,
	)
	if err != nil {
		return types.StoredSummary{}, fmt.Errorf("inserting matching result: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return types.StoredSummary{}, fmt.Errorf("committing: %w", err)
	}
	return summary, nil
}

// pairPublicationIDs maps PMID to internal publication id for the two
// researchers only. When both own the same PMID the lower id wins.
func pairPublicationIDs(ctx context.Context, tx *sql.Tx, a, b string) (map[string]int64, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, pmid FROM publications WHERE user_id IN (?, ?) ORDER BY id`, a, b)
	if err != nil {
		return nil, fmt.Errorf("querying pair publications: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]int64)
	for rows.Next() {
		var id int64
		var pmid string
		if err := rows.Scan(&id, &pmid); err != nil {
			return nil, fmt.Errorf("scanning publication: %w", err)
		}
		if _, seen := ids[pmid]; !seen {
			ids[pmid] = id
		}
	}
	return ids, rows.Err()
}

func insertProposal(ctx context.Context, tx *sql.Tx, pair types.EligiblePair, p types.ProposalOutput, pubIDs map[string]int64, model, now string) (int, error) {
	result, err := tx.ExecContext(ctx,
		`INSERT INTO proposals (
			researcher_a_id, researcher_b_id, title, collaboration_type, scientific_question,
			one_line_summary_a, one_line_summary_b, detailed_rationale,
			lab_a_contributions, lab_b_contributions, lab_a_benefits, lab_b_benefits,
			proposed_first_experiment, anchoring_pmids, confidence_tier, reasoning,
			visibility_a, visibility_b, profile_version_a, profile_version_b, model, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pair.ResearcherAID, pair.ResearcherBID, p.Title, p.CollaborationType, p.ScientificQuestion,
		p.OneLineSummaryA, p.OneLineSummaryB, p.DetailedRationale,
		p.LabAContributions, p.LabBContributions, p.LabABenefits, p.LabBBenefits,
		p.ProposedFirstExperiment, encodeList(p.AnchoringPMIDs), string(p.ConfidenceTier), p.Reasoning,
		string(pair.VisibilityA), string(pair.VisibilityB), pair.ProfileVersionA, pair.ProfileVersionB, model, now,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting proposal %q: %w", p.Title, err)
	}
	proposalID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading proposal id: %w", err)
	}

	unresolved := 0
	for _, pmid := range p.AnchoringPMIDs {
		pubID, ok := pubIDs[pmid]
		if !ok {
			unresolved++
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO proposal_publications (proposal_id, publication_id) VALUES (?, ?)`,
			proposalID, pubID,
		); err != nil {
			return 0, fmt.Errorf("linking publication %s: %w", pmid, err)
		}
	}
	return unresolved, nil
}
