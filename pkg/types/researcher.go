// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// AuthorPosition is a researcher's position in a publication's author list.
type AuthorPosition string

const (
	PositionFirst  AuthorPosition = "first"
	PositionLast   AuthorPosition = "last"
	PositionMiddle AuthorPosition = "middle"
)

// Publication is a paper owned by one researcher.
type Publication struct {
	// ID is the internal publication identifier assigned by the store.
	ID int64 `json:"id,omitempty" yaml:"id,omitempty"`

	// PMID is the external PubMed identifier the LLM cites.
	PMID string `json:"pmid" yaml:"pmid"`

	Title    string `json:"title" yaml:"title"`
	Abstract string `json:"abstract,omitempty" yaml:"abstract,omitempty"`
	Journal  string `json:"journal,omitempty" yaml:"journal,omitempty"`
	Year     int    `json:"year,omitempty" yaml:"year,omitempty"`

	AuthorPosition AuthorPosition `json:"author_position" yaml:"author_position"`
}

// ResearcherContext is the prompt-ready view of one researcher.
type ResearcherContext struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Institution string `json:"institution,omitempty" yaml:"institution,omitempty"`
	Department  string `json:"department,omitempty" yaml:"department,omitempty"`

	ResearchSummary    string   `json:"research_summary,omitempty" yaml:"research_summary,omitempty"`
	Techniques         []string `json:"techniques,omitempty" yaml:"techniques,omitempty"`
	ExperimentalModels []string `json:"experimental_models,omitempty" yaml:"experimental_models,omitempty"`
	DiseaseAreas       []string `json:"disease_areas,omitempty" yaml:"disease_areas,omitempty"`
	KeyTargets         []string `json:"key_targets,omitempty" yaml:"key_targets,omitempty"`
	Keywords           []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	GrantTitles        []string `json:"grant_titles,omitempty" yaml:"grant_titles,omitempty"`

	Publications []Publication `json:"publications,omitempty" yaml:"publications,omitempty"`
}

// ExistingProposal is the part of an already stored proposal that new
// candidates are compared against.
type ExistingProposal struct {
	Title              string `json:"title" yaml:"title"`
	ScientificQuestion string `json:"scientific_question" yaml:"scientific_question"`
}

// PairContext bundles everything the prompt builder needs for one pair.
// ResearcherA corresponds to Pair.ResearcherAID.
type PairContext struct {
	Pair              EligiblePair       `json:"pair" yaml:"pair"`
	ResearcherA       ResearcherContext  `json:"researcher_a" yaml:"researcher_a"`
	ResearcherB       ResearcherContext  `json:"researcher_b" yaml:"researcher_b"`
	ExistingProposals []ExistingProposal `json:"existing_proposals,omitempty" yaml:"existing_proposals,omitempty"`
}
