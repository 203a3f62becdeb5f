// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-match/internal/match"
	"github.com/pdiddy/research-match/pkg/types"
)

var eligibleCmd = &cobra.Command{
	Use:   "eligible",
	Short: "List the pairs that need evaluation this cycle",
	Long: `Eligible caps every user's match pool, applies the mutual-selection and
incoming-proposal rules, and drops pairs already evaluated at their current
profile versions. Nothing is written and no LLM is called.`,
	RunE: runEligible,
}

func runEligible(cmd *cobra.Command, args []string) error {
	if err := bindFlags(cmd, matchingFlags); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	engine := match.New(s, nil, cfg.Generation.Workers, logger)
	pairs, err := engine.Eligible(cmd.Context(), cfg.Matching)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatPairs(cmd.OutOrStdout(), pairs, engine.Seed(cfg.Matching), jsonOutput)
}

func formatPairs(w io.Writer, pairs []types.EligiblePair, seed string, jsonOutput bool) error {
	if jsonOutput {
		if pairs == nil {
			pairs = []types.EligiblePair{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(pairs)
	}

	if len(pairs) == 0 {
		fmt.Fprintln(w, "No eligible pairs.")
		return nil
	}

	fmt.Fprintf(w, "%-20s  %-20s  %-24s  %-24s  %s\n", "Researcher A", "Researcher B", "Visibility A", "Visibility B", "Versions")
	fmt.Fprintln(w, strings.Repeat("-", 104))
	for _, p := range pairs {
		fmt.Fprintf(w, "%-20s  %-20s  %-24s  %-24s  %d/%d\n",
			p.ResearcherAID, p.ResearcherBID, p.VisibilityA, p.VisibilityB, p.ProfileVersionA, p.ProfileVersionB)
	}
	fmt.Fprintf(w, "\n%d pair(s), seed %s\n", len(pairs), seed)
	return nil
}

func init() {
	addMatchingFlags(eligibleCmd)
	eligibleCmd.Flags().Bool("json", false, "output as JSON")

	rootCmd.AddCommand(eligibleCmd)
}
