// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package prompt renders the LLM messages for a researcher pair and turns the
// LLM's raw reply into validated, de-duplicated proposals.
package prompt

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/pdiddy/research-match/pkg/types"
)

//go:embed system_prompt.md
var systemPrompt string

// RetryInstruction is appended to the conversation when the first reply could
// not be parsed as a JSON array.
const RetryInstruction = `Your previous response could not be parsed. Respond again with ONLY a JSON array of proposal objects, exactly as specified: no prose, no markdown code fences, no comments, no trailing commas. If there is no credible collaboration, respond with [].`

// Messages holds the rendered system and user messages for one pair.
type Messages struct {
	System string
	User   string
}

// SystemMessage returns the static system message. It does not depend on the
// pair, so callers may cache it across evaluations.
func SystemMessage() string {
	return systemPrompt
}

var userTmpl = template.Must(template.New("user").Funcs(template.FuncMap{
	"join": func(items []string) string { return strings.Join(items, "; ") },
}).Parse(`Propose collaborations between the following two researchers.
{{range .Researchers}}
## {{.Label}}: {{.Name}}
{{- if .Institution}}
Institution: {{.Institution}}{{if .Department}} ({{.Department}}){{end}}
{{- end}}
{{- if .ResearchSummary}}

Research summary:
{{.ResearchSummary}}
{{- end}}
{{- if .Techniques}}
Techniques: {{join .Techniques}}
{{- end}}
{{- if .ExperimentalModels}}
Experimental models: {{join .ExperimentalModels}}
{{- end}}
{{- if .DiseaseAreas}}
Disease areas: {{join .DiseaseAreas}}
{{- end}}
{{- if .KeyTargets}}
Key targets: {{join .KeyTargets}}
{{- end}}
{{- if .Keywords}}
Keywords: {{join .Keywords}}
{{- end}}
{{- if .GrantTitles}}
Grants: {{join .GrantTitles}}
{{- end}}
{{- if .Titles}}

Publications (most recent first):
{{- range .Titles}}
- {{if .Year}}{{.Year}} {{end}}{{.Title}}{{if .PMID}} [PMID {{.PMID}}]{{end}}
{{- end}}
{{- end}}
{{- if .Abstracts}}

Selected abstracts:
{{- range .Abstracts}}

[PMID {{.PMID}}] {{.Title}}{{if .Journal}} ({{.Journal}}{{if .Year}}, {{.Year}}{{end}}){{end}}
{{.Abstract}}
{{- end}}
{{- end}}
{{end}}
{{- if .Existing}}
## Existing proposals for this pair
These collaborations have already been proposed. Do not restate them or propose close variants; only propose directions that are substantively different.
{{- range .Existing}}
- {{.Title}}: {{.ScientificQuestion}}
{{- end}}
{{end}}
Researcher A is {{.NameA}} and researcher B is {{.NameB}}. Use the "_a" fields for researcher A and the "_b" fields for researcher B.
`))

type researcherView struct {
	types.ResearcherContext
	Label     string
	Titles    []types.Publication
	Abstracts []types.Publication
}

func newResearcherView(label string, rc types.ResearcherContext) researcherView {
	return researcherView{
		ResearcherContext: rc,
		Label:             label,
		Titles:            byRecency(rc.Publications),
		Abstracts:         SelectPublications(rc.Publications, MatchingPublicationCap, true),
	}
}

// BuildMessages renders the system and user messages for a pair. Profile
// fields, publication lists and the existing-proposals block are omitted when
// their data is empty.
func BuildMessages(pc *types.PairContext) (Messages, error) {
	if pc == nil {
		return Messages{}, fmt.Errorf("pair context is required")
	}

	data := struct {
		Researchers  []researcherView
		Existing     []types.ExistingProposal
		NameA, NameB string
	}{
		Researchers: []researcherView{
			newResearcherView("Researcher A", pc.ResearcherA),
			newResearcherView("Researcher B", pc.ResearcherB),
		},
		Existing: pc.ExistingProposals,
		NameA:    displayName(pc.ResearcherA),
		NameB:    displayName(pc.ResearcherB),
	}

	var buf bytes.Buffer
	if err := userTmpl.Execute(&buf, data); err != nil {
		return Messages{}, fmt.Errorf("rendering user message: %w", err)
	}

	return Messages{System: SystemMessage(), User: buf.String()}, nil
}

func displayName(rc types.ResearcherContext) string {
	if rc.Name != "" {
		return rc.Name
	}
	return rc.ID
}

var synthesisTmpl = template.Must(template.New("synthesis").Parse(`Summarize the research program of {{.Name}}{{if .Institution}} ({{.Institution}}){{end}} from the publications below.
{{range .Pubs}}
[PMID {{.PMID}}] {{.Title}}{{if .Year}} ({{.Year}}){{end}}
{{.Abstract}}
{{end}}`))

// BuildSynthesisInput renders the publication digest used for profile
// synthesis: up to SynthesisPublicationCap abstracts, senior authorship first.
func BuildSynthesisInput(rc types.ResearcherContext) (string, error) {
	data := struct {
		Name        string
		Institution string
		Pubs        []types.Publication
	}{
		Name:        displayName(rc),
		Institution: rc.Institution,
		Pubs:        SelectPublications(rc.Publications, SynthesisPublicationCap, true),
	}

	var buf bytes.Buffer
	if err := synthesisTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering synthesis input: %w", err)
	}
	return buf.String(), nil
}
