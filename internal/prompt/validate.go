// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pdiddy/research-match/pkg/types"
)

// rawProposal mirrors types.ProposalOutput with every field left undecoded so
// a single unmarshal yields all fields for per-field checks.
type rawProposal struct {
	Title                   json.RawMessage `json:"title"`
	CollaborationType       json.RawMessage `json:"collaboration_type"`
	ScientificQuestion      json.RawMessage `json:"scientific_question"`
	OneLineSummaryA         json.RawMessage `json:"one_line_summary_a"`
	OneLineSummaryB         json.RawMessage `json:"one_line_summary_b"`
	DetailedRationale       json.RawMessage `json:"detailed_rationale"`
	LabAContributions       json.RawMessage `json:"lab_a_contributions"`
	LabBContributions       json.RawMessage `json:"lab_b_contributions"`
	LabABenefits            json.RawMessage `json:"lab_a_benefits"`
	LabBBenefits            json.RawMessage `json:"lab_b_benefits"`
	ProposedFirstExperiment json.RawMessage `json:"proposed_first_experiment"`
	AnchoringPMIDs          json.RawMessage `json:"anchoring_publication_pmids"`
	ConfidenceTier          json.RawMessage `json:"confidence_tier"`
	Reasoning               json.RawMessage `json:"reasoning"`
}

// Decoded is the outcome of validating one element: either a usable proposal
// (Errors empty) or the full list of field-level violations.
type Decoded struct {
	Proposal types.ProposalOutput
	Errors   []string
}

// Valid reports whether the element passed every check.
func (d Decoded) Valid() bool { return len(d.Errors) == 0 }

// Validate decodes one array element and checks it against the proposal
// schema. Every violation is reported; checking does not stop at the first.
func Validate(elem json.RawMessage) Decoded {
	trimmed := bytes.TrimSpace(elem)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Decoded{Errors: []string{"element is null"}}
	}
	if trimmed[0] != '{' {
		return Decoded{Errors: []string{"element is not an object"}}
	}

	var raw rawProposal
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return Decoded{Errors: []string{fmt.Sprintf("decoding element: %v", err)}}
	}

	var d Decoded
	p := &d.Proposal
	requiredString(&d, "title", raw.Title, &p.Title)
	requiredString(&d, "collaboration_type", raw.CollaborationType, &p.CollaborationType)
	requiredString(&d, "scientific_question", raw.ScientificQuestion, &p.ScientificQuestion)
	requiredString(&d, "one_line_summary_a", raw.OneLineSummaryA, &p.OneLineSummaryA)
	requiredString(&d, "one_line_summary_b", raw.OneLineSummaryB, &p.OneLineSummaryB)
	requiredString(&d, "detailed_rationale", raw.DetailedRationale, &p.DetailedRationale)
	requiredString(&d, "lab_a_contributions", raw.LabAContributions, &p.LabAContributions)
	requiredString(&d, "lab_b_contributions", raw.LabBContributions, &p.LabBContributions)
	requiredString(&d, "lab_a_benefits", raw.LabABenefits, &p.LabABenefits)
	requiredString(&d, "lab_b_benefits", raw.LabBBenefits, &p.LabBBenefits)
	requiredString(&d, "proposed_first_experiment", raw.ProposedFirstExperiment, &p.ProposedFirstExperiment)
	requiredString(&d, "reasoning", raw.Reasoning, &p.Reasoning)

	p.AnchoringPMIDs = anchoringIDs(&d, raw.AnchoringPMIDs)

	// Tiers match case-insensitively.
	var tier string
	if requiredString(&d, "confidence_tier", raw.ConfidenceTier, &tier) {
		p.ConfidenceTier = types.ConfidenceTier(strings.ToLower(tier))
		if !p.ConfidenceTier.Valid() {
			d.Errors = append(d.Errors, fmt.Sprintf("confidence_tier %q is not one of high, moderate, speculative", tier))
		}
	}

	return d
}

// requiredString decodes a non-empty string field into dst. It reports
// whether the field was usable and records a violation otherwise.
func requiredString(d *Decoded, name string, raw json.RawMessage, dst *string) bool {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		d.Errors = append(d.Errors, fmt.Sprintf("missing required field %s", name))
		return false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		d.Errors = append(d.Errors, fmt.Sprintf("field %s must be a string", name))
		return false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		d.Errors = append(d.Errors, fmt.Sprintf("field %s is empty", name))
		return false
	}
	*dst = s
	return true
}

// anchoringIDs decodes the anchoring identifier array. Numeric identifiers
// are accepted and kept in their literal form.
func anchoringIDs(d *Decoded, raw json.RawMessage) []string {
	var items []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil || items == nil {
		d.Errors = append(d.Errors, "field anchoring_publication_pmids must be an array")
		return nil
	}

	ids := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				ids = append(ids, s)
			}
			continue
		}
		var n json.Number
		if err := json.Unmarshal(item, &n); err == nil {
			ids = append(ids, n.String())
		}
	}
	return ids
}

// FilterResult partitions decoded elements into usable proposals and
// diagnostics for the discarded ones.
type FilterResult struct {
	Valid     []types.ProposalOutput
	Discarded int
	Errors    []types.ElementErrors
}

// FilterValid validates each element, keeping valid proposals in their
// original order.
func FilterValid(elems []json.RawMessage) FilterResult {
	res := FilterResult{Valid: []types.ProposalOutput{}}
	for i, elem := range elems {
		d := Validate(elem)
		if !d.Valid() {
			res.Discarded++
			res.Errors = append(res.Errors, types.ElementErrors{Index: i, Errors: d.Errors})
			continue
		}
		res.Valid = append(res.Valid, d.Proposal)
	}
	return res
}
