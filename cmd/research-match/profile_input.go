// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-match/internal/prompt"
)

var profileInputCmd = &cobra.Command{
	Use:   "profile-input <user-id>",
	Short: "Print the publication digest used to synthesize a researcher profile",
	Long: fmt.Sprintf(`Profile-input prints the text handed to the profile synthesis step for one
stored researcher: up to %d publications with abstracts, ordered by author
position and then recency.`, prompt.SynthesisPublicationCap),
	Args: cobra.ExactArgs(1),
	RunE: runProfileInput,
}

func runProfileInput(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	rc, err := s.Researcher(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	text, err := prompt.BuildSynthesisInput(rc)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), text)
	return nil
}

func init() {
	rootCmd.AddCommand(profileInputCmd)
}
