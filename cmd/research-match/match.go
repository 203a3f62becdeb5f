// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/research-match/internal/match"
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Run a matching cycle: generate and store proposals for eligible pairs",
	Long: `Match computes the eligible pairs, asks the configured LLM for up to three
collaboration proposals per pair, and stores the validated, de-duplicated
proposals together with an audit record of every evaluation.

A pair that fails is reported and left unrecorded so the next cycle retries
it. Interrupting the command stops new pairs from starting.`,
	RunE: runMatch,
}

func runMatch(cmd *cobra.Command, args []string) error {
	keys := map[string]string{
		"workers":  "generation.workers",
		"provider": "generation.provider",
		"model":    "generation.model",
	}
	for flag, key := range matchingFlags {
		keys[flag] = key
	}
	if err := bindFlags(cmd, keys); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	gen, err := newGenerator(ctx, cfg.Generation)
	if err != nil {
		return err
	}

	logger.Info("starting matching cycle", zap.String("version", version), zap.String("model", gen.Model()))

	start := time.Now()
	engine := match.New(s, gen, cfg.Generation.Workers, logger)
	summary, runErr := engine.Run(ctx, cfg.Matching)

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if err := formatSummary(cmd.OutOrStdout(), summary, time.Since(start), jsonOutput); err != nil {
		return err
	}

	if runErr != nil {
		return runErr
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d pair(s) failed", summary.Failed)
	}
	return nil
}

func formatSummary(w io.Writer, s match.Summary, elapsed time.Duration, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}

	fmt.Fprintf(w, "Matching cycle %s finished in %s\n", s.Seed, formatDuration(elapsed))
	fmt.Fprintf(w, "  eligible pairs:    %d\n", s.Pairs)
	fmt.Fprintf(w, "  evaluated:         %d (%d with proposals, %d without)\n", s.Evaluated, s.WithProposals, s.NoProposal)
	fmt.Fprintf(w, "  proposals stored:  %d\n", s.Stored)
	fmt.Fprintf(w, "  discarded:         %d\n", s.Discarded)
	fmt.Fprintf(w, "  deduplicated:      %d\n", s.Deduplicated)
	fmt.Fprintf(w, "  retried responses: %d\n", s.Retried)
	fmt.Fprintf(w, "  unresolved PMIDs:  %d\n", s.UnresolvedPMIDs)
	fmt.Fprintf(w, "  failed:            %d\n", s.Failed)
	if s.Cancelled > 0 {
		fmt.Fprintf(w, "  cancelled:         %d\n", s.Cancelled)
	}
	for _, f := range s.Failures {
		fmt.Fprintf(w, "    %s / %s: %s\n", f.ResearcherAID, f.ResearcherBID, f.Error)
	}
	return nil
}

func init() {
	addMatchingFlags(matchCmd)
	matchCmd.Flags().Int("workers", match.DefaultWorkers, "pairs evaluated concurrently")
	matchCmd.Flags().String("provider", "anthropic", "LLM provider: anthropic or gemini")
	matchCmd.Flags().String("model", "", "model identifier (default depends on provider)")
	matchCmd.Flags().Bool("json", false, "print the summary as JSON")

	rootCmd.AddCommand(matchCmd)
}
