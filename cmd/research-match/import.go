// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <fixture.yaml>",
	Short: "Load users, profiles, publications and pool entries from YAML",
	Long: `Import reads a YAML fixture with a users list and a pool list and upserts it
into the store in one transaction. Users are replaced by id and publications
by (user, PMID); pool entries are added. Changing a profile should bump its
profile_version so the affected pairs are evaluated again.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("opening fixture: %w", err)
	}
	defer f.Close()

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	summary, err := s.Import(cmd.Context(), f)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d user(s), %d profile(s), %d publication(s), %d new pool entr(ies)\n",
		summary.Users, summary.Profiles, summary.Publications, summary.PoolEntries)
	return nil
}

func init() {
	rootCmd.AddCommand(importCmd)
}
