// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/research-match/internal/generate"
	"github.com/pdiddy/research-match/internal/llm"
	"github.com/pdiddy/research-match/internal/match"
	"github.com/pdiddy/research-match/internal/prompt"
	"github.com/pdiddy/research-match/internal/secrets"
	"github.com/pdiddy/research-match/internal/store"
	"github.com/pdiddy/research-match/pkg/types"
)

const defaultStorePath = store.DefaultPath

// setDefaults registers every config key so that viper.Unmarshal also sees
// values that only come from the environment.
func setDefaults() {
	viper.SetDefault("store.path", defaultStorePath)
	viper.SetDefault("log.json", false)
	viper.SetDefault("log.debug", false)

	viper.SetDefault("matching.cap", types.DefaultPoolCap)
	viper.SetDefault("matching.disable_cap", false)
	viper.SetDefault("matching.seed", "")
	viper.SetDefault("matching.for_user_id", "")

	viper.SetDefault("generation.provider", llm.ProviderAnthropic)
	viper.SetDefault("generation.model", "")
	viper.SetDefault("generation.api_key", "")
	viper.SetDefault("generation.max_tokens", 4096)
	viper.SetDefault("generation.temperature", 0.0)
	viper.SetDefault("generation.max_retries", llm.DefaultMaxAttempts)
	viper.SetDefault("generation.retry_base_delay", llm.DefaultBaseDelay)
	viper.SetDefault("generation.max_attempts", 2)
	viper.SetDefault("generation.dedup_threshold", prompt.DefaultDedupThreshold)
	viper.SetDefault("generation.workers", match.DefaultWorkers)
}

// bindFlags binds a command's flags to config keys. Binding happens when the
// command runs because several commands share the same keys.
func bindFlags(cmd *cobra.Command, keys map[string]string) error {
	for flag, key := range keys {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			return fmt.Errorf("unknown flag %q", flag)
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding flag %s: %w", flag, err)
		}
	}
	return nil
}

// matchingFlags maps the eligibility flags shared by eligible and match.
var matchingFlags = map[string]string{
	"user":        "matching.for_user_id",
	"cap":         "matching.cap",
	"seed":        "matching.seed",
	"disable-cap": "matching.disable_cap",
}

func addMatchingFlags(cmd *cobra.Command) {
	cmd.Flags().String("user", "", "only consider pairs involving this user id")
	cmd.Flags().Int("cap", types.DefaultPoolCap, "per-user candidate pool cap")
	cmd.Flags().String("seed", "", "sampling seed (default: current ISO week)")
	cmd.Flags().Bool("disable-cap", false, "skip pool capping (admin/debug)")
}

func loadConfig() (types.PipelineConfig, error) {
	var cfg types.PipelineConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

func openStore(cfg types.PipelineConfig) (*store.Store, error) {
	return store.Open(cfg.Store)
}

// apiKey resolves the provider key: config first, then .secrets/.
func apiKey(cfg types.AIConfig) string {
	key := secrets.AnthropicAPIKey
	if llm.NormalizeProvider(cfg.Provider) == llm.ProviderGemini {
		key = secrets.GeminiAPIKey
	}
	return loadedSecrets.Get(key, cfg.APIKey)
}

// newGenerator builds the LLM client for cfg and wraps it in a Generator.
func newGenerator(ctx context.Context, cfg types.GenerationConfig) (*generate.Generator, error) {
	cfg.APIKey = apiKey(cfg.AIConfig)
	client, err := llm.NewClient(ctx, cfg.AIConfig)
	if err != nil {
		return nil, fmt.Errorf("creating LLM client: %w", err)
	}
	return generate.New(client, cfg, logger), nil
}

func formatDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
