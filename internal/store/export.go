// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-match/pkg/types"
)

// Proposals returns every stored proposal in insertion order with its
// resolved publication ids.
func (s *Store) Proposals(ctx context.Context) ([]types.StoredProposal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, researcher_a_id, researcher_b_id, title, collaboration_type, scientific_question,
			one_line_summary_a, one_line_summary_b, detailed_rationale,
			lab_a_contributions, lab_b_contributions, lab_a_benefits, lab_b_benefits,
			proposed_first_experiment, anchoring_pmids, confidence_tier, reasoning,
			visibility_a, visibility_b, profile_version_a, profile_version_b, model, created_at
		 FROM proposals ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying proposals: %w", err)
	}
	defer rows.Close()

	var proposals []types.StoredProposal
	index := make(map[int64]int)
	for rows.Next() {
		var p types.StoredProposal
		var pmids sql.NullString
		var tier, visA, visB, createdAt string
		if err := rows.Scan(&p.ID, &p.ResearcherAID, &p.ResearcherBID, &p.Title, &p.CollaborationType, &p.ScientificQuestion,
			&p.OneLineSummaryA, &p.OneLineSummaryB, &p.DetailedRationale,
			&p.LabAContributions, &p.LabBContributions, &p.LabABenefits, &p.LabBBenefits,
			&p.ProposedFirstExperiment, &pmids, &tier, &p.Reasoning,
			&visA, &visB, &p.ProfileVersionA, &p.ProfileVersionB, &p.Model, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scanning proposal: %w", err)
		}
		p.AnchoringPMIDs = decodeList(pmids)
		p.ConfidenceTier = types.ConfidenceTier(tier)
		p.VisibilityA = types.Visibility(visA)
		p.VisibilityB = types.Visibility(visB)
		p.CreatedAt = parseTime(createdAt)

		index[p.ID] = len(proposals)
		proposals = append(proposals, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	links, err := s.db.QueryContext(ctx,
		`SELECT proposal_id, publication_id FROM proposal_publications ORDER BY proposal_id, publication_id`)
	if err != nil {
		return nil, fmt.Errorf("querying proposal publications: %w", err)
	}
	defer links.Close()

	for links.Next() {
		var proposalID, pubID int64
		if err := links.Scan(&proposalID, &pubID); err != nil {
			return nil, fmt.Errorf("scanning proposal publication: %w", err)
		}
		if i, ok := index[proposalID]; ok {
			proposals[i].AnchoringPublicationIDs = append(proposals[i].AnchoringPublicationIDs, pubID)
		}
	}
	return proposals, links.Err()
}

// ExportYAML writes all stored proposals to w as a YAML list.
func (s *Store) ExportYAML(ctx context.Context, w io.Writer) error {
	proposals, err := s.Proposals(ctx)
	if err != nil {
		return fmt.Errorf("querying for export: %w", err)
	}
	if proposals == nil {
		proposals = []types.StoredProposal{}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(proposals); err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return enc.Close()
}

// ExportJSON writes all stored proposals to w as an indented JSON array.
func (s *Store) ExportJSON(ctx context.Context, w io.Writer) error {
	proposals, err := s.Proposals(ctx)
	if err != nil {
		return fmt.Errorf("querying for export: %w", err)
	}
	if proposals == nil {
		proposals = []types.StoredProposal{}
	}

	data, err := json.MarshalIndent(proposals, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = w.Write(append(data, '\n'))
	return err
}
