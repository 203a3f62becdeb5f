// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the research-match CLI.
// It loads researcher fixtures, computes eligible pairs, runs matching
// cycles against an LLM and exports the stored proposals.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/research-match/internal/logging"
	"github.com/pdiddy/research-match/internal/secrets"
)

const app = "research-match"

// version is set at build time via ldflags.
var version = "dev"

var (
	// loadedSecrets holds API keys loaded from .secrets/ at startup.
	loadedSecrets secrets.Secrets

	// logger is built from the log.* settings before any command runs.
	logger = zap.NewNop()
)

// rootCmd is the base command for the research-match CLI.
var rootCmd = &cobra.Command{
	Use:   app,
	Short: "Generate collaboration proposals for pairs of researchers",
	Long: `research-match is the batch matching engine. It reads researchers, their
publications and their match pools from a SQLite store, works out which pairs
need evaluating this cycle, asks an LLM for collaboration proposals for each
pair and stores the validated results.

Load data with import, inspect the cycle with eligible, run it with match and
read the output with export.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logging.New(viper.GetBool("log.json"), viper.GetBool("log.debug"))
		if err != nil {
			return fmt.Errorf("creating logger: %w", err)
		}
		logger = l
		if used := viper.ConfigFileUsed(); used != "" {
			logger.Debug("using config file", zap.String("path", used))
		}

		s, err := secrets.Load(secrets.DefaultDir, logger)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			logger.Debug("loaded secrets", zap.Strings("keys", s.Keys()))
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./research-match.yaml or ~/.config/research-match/research-match.yaml)")
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (default: "+defaultStorePath+")")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json-log", "j", false, "json format for logging")

	viper.BindPFlag("store.path", rootCmd.PersistentFlags().Lookup("db"))
	viper.BindPFlag("log.debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("log.json", rootCmd.PersistentFlags().Lookup("json-log"))

	setDefaults()
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", app))
		}
	}

	viper.SetEnvPrefix("RESEARCH_MATCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "reading config: %v\n", err)
			os.Exit(1)
		}
	}
}

func main() {
	err := rootCmd.Execute()
	_ = logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}
