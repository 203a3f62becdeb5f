// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// PoolSource records how a target researcher entered a selector's match pool.
type PoolSource string

const (
	SourceIndividual  PoolSource = "individual_select"
	SourceAffiliation PoolSource = "affiliation_select"
	SourceAllUsers    PoolSource = "all_users"
)

// IsBulk reports whether the source comes from a broad selection mechanism.
// Bulk entries are subject to capping; individual selections never are.
func (s PoolSource) IsBulk() bool {
	return s == SourceAffiliation || s == SourceAllUsers
}

// PoolEntry is a directed edge meaning "selector wants target considered".
type PoolEntry struct {
	SelectorID string     `json:"selector_id" yaml:"selector_id"`
	TargetID   string     `json:"target_id" yaml:"target_id"`
	Source     PoolSource `json:"source" yaml:"source"`
}

// UserState holds the per-user settings the eligibility computation reads.
type UserState struct {
	ID string `json:"id" yaml:"id"`

	// AllowIncomingProposals lets one-sided selections targeting this user
	// produce a pair.
	AllowIncomingProposals bool `json:"allow_incoming_proposals" yaml:"allow_incoming_proposals"`

	HasProfile bool `json:"has_profile" yaml:"has_profile"`

	// ProfileVersion is bumped whenever profile content changes.
	ProfileVersion int `json:"profile_version" yaml:"profile_version"`
}

// Visibility controls whether a generated proposal is shown to one side of a pair.
type Visibility string

const (
	VisibilityVisible              Visibility = "visible"
	VisibilityPendingOtherInterest Visibility = "pending_other_interest"
	VisibilityHidden               Visibility = "hidden"
)

// EligiblePair is an unordered researcher pair ready for evaluation.
// ResearcherAID is always the lexicographically smaller id, and every A/B
// field is oriented to that ordering.
type EligiblePair struct {
	ResearcherAID   string     `json:"researcher_a_id" yaml:"researcher_a_id"`
	ResearcherBID   string     `json:"researcher_b_id" yaml:"researcher_b_id"`
	VisibilityA     Visibility `json:"visibility_a" yaml:"visibility_a"`
	VisibilityB     Visibility `json:"visibility_b" yaml:"visibility_b"`
	ProfileVersionA int        `json:"profile_version_a" yaml:"profile_version_a"`
	ProfileVersionB int        `json:"profile_version_b" yaml:"profile_version_b"`
}

// MatchOutcome is the result recorded for an evaluated pair.
type MatchOutcome string

const (
	OutcomeProposalsGenerated MatchOutcome = "proposals_generated"
	OutcomeNoProposal         MatchOutcome = "no_proposal"
)

// MatchingResult is the append-only audit record of a pair evaluation. A
// result at the pair's current profile versions means the pair has already
// been evaluated.
type MatchingResult struct {
	ResearcherAID   string       `json:"researcher_a_id" yaml:"researcher_a_id"`
	ResearcherBID   string       `json:"researcher_b_id" yaml:"researcher_b_id"`
	ProfileVersionA int          `json:"profile_version_a" yaml:"profile_version_a"`
	ProfileVersionB int          `json:"profile_version_b" yaml:"profile_version_b"`
	Outcome         MatchOutcome `json:"outcome" yaml:"outcome"`
	EvaluatedAt     time.Time    `json:"evaluated_at" yaml:"evaluated_at"`
}
