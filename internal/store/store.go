// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists researchers, match pools, proposals and the
// matching audit trail in SQLite, and assembles the per-pair context the
// generator needs.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/research-match/pkg/types"
)

// DefaultPath is the database location when none is configured.
const DefaultPath = "data/research-match.db"

// ErrNotFound is returned when a requested researcher does not exist.
var ErrNotFound = errors.New("not found")

// Store manages the matching database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at cfg.Path and ensures the schema.
func Open(cfg types.StoreConfig) (*Store, error) {
	path := cfg.Path
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			institution TEXT NOT NULL DEFAULT '',
			department TEXT NOT NULL DEFAULT '',
			allow_incoming_proposals INTEGER NOT NULL DEFAULT 0,
			profile_version INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS profiles (
			user_id TEXT PRIMARY KEY REFERENCES users(id),
			research_summary TEXT NOT NULL DEFAULT '',
			techniques TEXT,
			experimental_models TEXT,
			disease_areas TEXT,
			key_targets TEXT,
			keywords TEXT,
			grant_titles TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS publications (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL REFERENCES users(id),
			pmid TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			abstract TEXT NOT NULL DEFAULT '',
			journal TEXT NOT NULL DEFAULT '',
			year INTEGER NOT NULL DEFAULT 0,
			author_position TEXT NOT NULL DEFAULT '',
			UNIQUE(user_id, pmid)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_publications_pmid ON publications(pmid)`,
		`CREATE TABLE IF NOT EXISTS pool_entries (
			selector_id TEXT NOT NULL,
			target_id TEXT NOT NULL,
			source TEXT NOT NULL,
			PRIMARY KEY (selector_id, target_id, source)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pool_entries_target ON pool_entries(target_id)`,
		`CREATE TABLE IF NOT EXISTS proposals (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			researcher_a_id TEXT NOT NULL,
			researcher_b_id TEXT NOT NULL,
			title TEXT NOT NULL,
			collaboration_type TEXT NOT NULL,
			scientific_question TEXT NOT NULL,
			one_line_summary_a TEXT NOT NULL,
			one_line_summary_b TEXT NOT NULL,
			detailed_rationale TEXT NOT NULL,
			lab_a_contributions TEXT NOT NULL,
			lab_b_contributions TEXT NOT NULL,
			lab_a_benefits TEXT NOT NULL,
			lab_b_benefits TEXT NOT NULL,
			proposed_first_experiment TEXT NOT NULL,
			anchoring_pmids TEXT,
			confidence_tier TEXT NOT NULL,
			reasoning TEXT NOT NULL,
			visibility_a TEXT NOT NULL,
			visibility_b TEXT NOT NULL,
			profile_version_a INTEGER NOT NULL,
			profile_version_b INTEGER NOT NULL,
			model TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_proposals_pair ON proposals(researcher_a_id, researcher_b_id)`,
		`CREATE TABLE IF NOT EXISTS proposal_publications (
			proposal_id INTEGER NOT NULL REFERENCES proposals(id),
			publication_id INTEGER NOT NULL REFERENCES publications(id),
			PRIMARY KEY (proposal_id, publication_id)
		)`,
		`CREATE TABLE IF NOT EXISTS matching_results (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			researcher_a_id TEXT NOT NULL,
			researcher_b_id TEXT NOT NULL,
			profile_version_a INTEGER NOT NULL,
			profile_version_b INTEGER NOT NULL,
			outcome TEXT NOT NULL,
			evaluated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_matching_results_pair ON matching_results(researcher_a_id, researcher_b_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// encodeList stores a string list as a JSON array column.
func encodeList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	data, _ := json.Marshal(items)
	return string(data)
}

// decodeList reads a JSON array column. NULL and malformed values decode to nil.
func decodeList(col sql.NullString) []string {
	if !col.Valid || col.String == "" {
		return nil
	}
	var items []string
	if err := json.Unmarshal([]byte(col.String), &items); err != nil {
		return nil
	}
	if len(items) == 0 {
		return nil
	}
	return items
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
