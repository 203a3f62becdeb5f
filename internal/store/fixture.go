// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-match/pkg/types"
)

// Fixture is the YAML document loaded by Import: researchers with their
// profiles and publications, plus match-pool selections.
type Fixture struct {
	Users []FixtureUser     `yaml:"users"`
	Pool  []FixturePoolEdge `yaml:"pool"`
}

// FixtureUser is one researcher. A nil Profile means the researcher has no
// profile yet and is never eligible.
type FixtureUser struct {
	ID                     string              `yaml:"id"`
	Name                   string              `yaml:"name"`
	Institution            string              `yaml:"institution"`
	Department             string              `yaml:"department"`
	AllowIncomingProposals bool                `yaml:"allow_incoming_proposals"`
	ProfileVersion         int                 `yaml:"profile_version"`
	Profile                *FixtureProfile     `yaml:"profile"`
	Publications           []types.Publication `yaml:"publications"`
}

// FixtureProfile holds the synthesized profile text.
type FixtureProfile struct {
	ResearchSummary    string   `yaml:"research_summary"`
	Techniques         []string `yaml:"techniques"`
	ExperimentalModels []string `yaml:"experimental_models"`
	DiseaseAreas       []string `yaml:"disease_areas"`
	KeyTargets         []string `yaml:"key_targets"`
	Keywords           []string `yaml:"keywords"`
	GrantTitles        []string `yaml:"grant_titles"`
}

// FixturePoolEdge is one selection. Source defaults to individual_select.
type FixturePoolEdge struct {
	Selector string           `yaml:"selector"`
	Target   string           `yaml:"target"`
	Source   types.PoolSource `yaml:"source"`
}

// ImportSummary counts what Import wrote.
type ImportSummary struct {
	Users        int
	Profiles     int
	Publications int
	PoolEntries  int
}

// Import reads a YAML fixture and upserts it in one transaction. Users are
// replaced by id, publications by (user, PMID); pool edges are added.
func (s *Store) Import(ctx context.Context, r io.Reader) (ImportSummary, error) {
	var fx Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fx); err != nil && err != io.EOF {
		return ImportSummary{}, fmt.Errorf("parsing fixture: %w", err)
	}

	if err := fx.validate(); err != nil {
		return ImportSummary{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ImportSummary{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var summary ImportSummary
	for _, u := range fx.Users {
		if err := importUser(ctx, tx, u, &summary); err != nil {
			return ImportSummary{}, fmt.Errorf("importing user %s: %w", u.ID, err)
		}
	}

	for _, e := range fx.Pool {
		source := e.Source
		if source == "" {
			source = types.SourceIndividual
		}
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO pool_entries (selector_id, target_id, source) VALUES (?, ?, ?)`,
			e.Selector, e.Target, string(source))
		if err != nil {
			return ImportSummary{}, fmt.Errorf("inserting pool entry %s->%s: %w", e.Selector, e.Target, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			summary.PoolEntries++
		}
	}

	if err := tx.Commit(); err != nil {
		return ImportSummary{}, fmt.Errorf("committing: %w", err)
	}
	return summary, nil
}

func (fx *Fixture) validate() error {
	for i, u := range fx.Users {
		if u.ID == "" {
			return fmt.Errorf("user %d: id is required", i)
		}
		for _, p := range u.Publications {
			if p.PMID == "" {
				return fmt.Errorf("user %s: publication %q has no pmid", u.ID, p.Title)
			}
		}
	}
	for i, e := range fx.Pool {
		if e.Selector == "" || e.Target == "" {
			return fmt.Errorf("pool entry %d: selector and target are required", i)
		}
		switch e.Source {
		case "", types.SourceIndividual, types.SourceAffiliation, types.SourceAllUsers:
		default:
			return fmt.Errorf("pool entry %d: unknown source %q", i, e.Source)
		}
	}
	return nil
}

func importUser(ctx context.Context, tx *sql.Tx, u FixtureUser, summary *ImportSummary) error {
	version := u.ProfileVersion
	if u.Profile != nil && version == 0 {
		version = 1
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO users (id, name, institution, department, allow_incoming_proposals, profile_version)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, institution=excluded.institution, department=excluded.department,
			allow_incoming_proposals=excluded.allow_incoming_proposals,
			profile_version=excluded.profile_version`,
		u.ID, u.Name, u.Institution, u.Department, u.AllowIncomingProposals, version,
	)
	if err != nil {
		return fmt.Errorf("upserting user: %w", err)
	}
	summary.Users++

	if u.Profile == nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM profiles WHERE user_id = ?`, u.ID); err != nil {
			return fmt.Errorf("clearing profile: %w", err)
		}
	} else {
		p := u.Profile
		_, err := tx.ExecContext(ctx,
			`INSERT INTO profiles (user_id, research_summary, techniques, experimental_models, disease_areas, key_targets, keywords, grant_titles)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(user_id) DO UPDATE SET
				research_summary=excluded.research_summary, techniques=excluded.techniques,
				experimental_models=excluded.experimental_models, disease_areas=excluded.disease_areas,
				key_targets=excluded.key_targets, keywords=excluded.keywords, grant_titles=excluded.grant_titles`,
			u.ID, p.ResearchSummary, encodeList(p.Techniques), encodeList(p.ExperimentalModels),
			encodeList(p.DiseaseAreas), encodeList(p.KeyTargets), encodeList(p.Keywords), encodeList(p.GrantTitles),
		)
		if err != nil {
			return fmt.Errorf("upserting profile: %w", err)
		}
		summary.Profiles++
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO publications (user_id, pmid, title, abstract, journal, year, author_position)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, pmid) DO UPDATE SET
			title=excluded.title, abstract=excluded.abstract, journal=excluded.journal,
			year=excluded.year, author_position=excluded.author_position`)
	if err != nil {
		return fmt.Errorf("preparing publication insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range u.Publications {
		if _, err := stmt.ExecContext(ctx, u.ID, p.PMID, p.Title, p.Abstract, p.Journal, p.Year, string(p.AuthorPosition)); err != nil {
			return fmt.Errorf("inserting publication %s: %w", p.PMID, err)
		}
		summary.Publications++
	}
	return nil
}
