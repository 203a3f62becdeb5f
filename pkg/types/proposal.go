// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// ConfidenceTier is the qualitative label the LLM assigns to a proposal.
type ConfidenceTier string

const (
	ConfidenceHigh        ConfidenceTier = "high"
	ConfidenceModerate    ConfidenceTier = "moderate"
	ConfidenceSpeculative ConfidenceTier = "speculative"
)

// Valid reports whether t is one of the three accepted tiers.
func (t ConfidenceTier) Valid() bool {
	switch t {
	case ConfidenceHigh, ConfidenceModerate, ConfidenceSpeculative:
		return true
	}
	return false
}

// ProposalOutput is one collaboration proposal as produced by the LLM.
type ProposalOutput struct {
	Title                   string         `json:"title" yaml:"title"`
	CollaborationType       string         `json:"collaboration_type" yaml:"collaboration_type"`
	ScientificQuestion      string         `json:"scientific_question" yaml:"scientific_question"`
	OneLineSummaryA         string         `json:"one_line_summary_a" yaml:"one_line_summary_a"`
	OneLineSummaryB         string         `json:"one_line_summary_b" yaml:"one_line_summary_b"`
	DetailedRationale       string         `json:"detailed_rationale" yaml:"detailed_rationale"`
	LabAContributions       string         `json:"lab_a_contributions" yaml:"lab_a_contributions"`
	LabBContributions       string         `json:"lab_b_contributions" yaml:"lab_b_contributions"`
	LabABenefits            string         `json:"lab_a_benefits" yaml:"lab_a_benefits"`
	LabBBenefits            string         `json:"lab_b_benefits" yaml:"lab_b_benefits"`
	ProposedFirstExperiment string         `json:"proposed_first_experiment" yaml:"proposed_first_experiment"`
	AnchoringPMIDs          []string       `json:"anchoring_publication_pmids" yaml:"anchoring_publication_pmids"`
	ConfidenceTier          ConfidenceTier `json:"confidence_tier" yaml:"confidence_tier"`
	Reasoning               string         `json:"reasoning" yaml:"reasoning"`
}

// StoredProposal is a persisted ProposalOutput. Visibility and profile
// versions are copied from the pair at generation time; anchoring PMIDs are
// resolved to internal publication ids owned by the two researchers.
type StoredProposal struct {
	ID int64 `json:"id" yaml:"id"`

	ResearcherAID string `json:"researcher_a_id" yaml:"researcher_a_id"`
	ResearcherBID string `json:"researcher_b_id" yaml:"researcher_b_id"`

	ProposalOutput `yaml:",inline"`

	AnchoringPublicationIDs []int64 `json:"anchoring_publication_ids" yaml:"anchoring_publication_ids"`

	VisibilityA     Visibility `json:"visibility_a" yaml:"visibility_a"`
	VisibilityB     Visibility `json:"visibility_b" yaml:"visibility_b"`
	ProfileVersionA int        `json:"profile_version_a" yaml:"profile_version_a"`
	ProfileVersionB int        `json:"profile_version_b" yaml:"profile_version_b"`

	Model     string    `json:"model" yaml:"model"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// ElementErrors lists the validation failures of one decoded element.
type ElementErrors struct {
	Index  int      `json:"index" yaml:"index"`
	Errors []string `json:"errors" yaml:"errors"`
}

// GenerationResult is the outcome of driving the LLM for one pair. Every
// recoverable failure is represented here as counts and flags.
type GenerationResult struct {
	Proposals    []ProposalOutput `json:"proposals" yaml:"proposals"`
	Discarded    int              `json:"discarded" yaml:"discarded"`
	Deduplicated int              `json:"deduplicated" yaml:"deduplicated"`
	Attempts     int              `json:"attempts" yaml:"attempts"`
	Retried      bool             `json:"retried" yaml:"retried"`

	// RawCount is the number of array elements parsed from the final
	// response, after truncation.
	RawCount int    `json:"raw_count" yaml:"raw_count"`
	Model    string `json:"model" yaml:"model"`

	// ValidationErrors is diagnostic only; invalid elements are never retried.
	ValidationErrors []ElementErrors `json:"validation_errors,omitempty" yaml:"validation_errors,omitempty"`
}

// StoredSummary reports what StoreResult persisted for one pair.
type StoredSummary struct {
	Stored          int `json:"stored" yaml:"stored"`
	UnresolvedPMIDs int `json:"unresolved_pmids" yaml:"unresolved_pmids"`
}
