// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// DefaultPoolCap is the platform-wide per-user candidate cap.
const DefaultPoolCap = 200

// MatchingConfig holds settings for the eligibility stage.
type MatchingConfig struct {
	// Cap is the per-user candidate pool size (default 200).
	Cap int `json:"cap" yaml:"cap" mapstructure:"cap"`

	// DisableCap bypasses capping entirely. Admin/debug use only.
	DisableCap bool `json:"disable_cap" yaml:"disable_cap" mapstructure:"disable_cap"`

	// Seed drives bulk sampling. Empty means the current ISO-week seed.
	Seed string `json:"seed" yaml:"seed" mapstructure:"seed"`

	// ForUserID restricts evaluation to pairs touching one user.
	ForUserID string `json:"for_user_id,omitempty" yaml:"for_user_id,omitempty" mapstructure:"for_user_id"`
}

// AIConfig holds shared settings for calling a Generative AI API.
type AIConfig struct {
	// Provider selects the completion backend: "anthropic" or "gemini".
	Provider string `json:"provider" yaml:"provider" mapstructure:"provider"`

	// Model is the AI model identifier (e.g. "claude-sonnet-4-5-20250929").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `json:"temperature" yaml:"temperature" mapstructure:"temperature"`

	// MaxRetries is the total number of attempts per logical call on
	// transient API errors (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// RetryBaseDelay is the first backoff delay (default 1s).
	RetryBaseDelay time.Duration `json:"retry_base_delay" yaml:"retry_base_delay" mapstructure:"retry_base_delay"`
}

// GenerationConfig holds settings for the proposal generation stage.
type GenerationConfig struct {
	AIConfig `yaml:",inline" mapstructure:",squash"`

	// MaxAttempts bounds whole-response parse retries (1 or 2, default 2).
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts" mapstructure:"max_attempts"`

	// DedupThreshold is the Jaccard similarity at or above which a candidate
	// duplicates an existing proposal (default 0.5).
	DedupThreshold float64 `json:"dedup_threshold" yaml:"dedup_threshold" mapstructure:"dedup_threshold"`

	// Workers bounds how many pairs are evaluated concurrently (default 4).
	Workers int `json:"workers" yaml:"workers" mapstructure:"workers"`
}

// StoreConfig locates the SQLite database.
type StoreConfig struct {
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// LogConfig selects the log encoding and level.
type LogConfig struct {
	JSON  bool `json:"json" yaml:"json" mapstructure:"json"`
	Debug bool `json:"debug" yaml:"debug" mapstructure:"debug"`
}

// PipelineConfig groups all stage configurations.
type PipelineConfig struct {
	Matching   MatchingConfig   `json:"matching" yaml:"matching" mapstructure:"matching"`
	Generation GenerationConfig `json:"generation" yaml:"generation" mapstructure:"generation"`
	Store      StoreConfig      `json:"store" yaml:"store" mapstructure:"store"`
	Log        LogConfig        `json:"log" yaml:"log" mapstructure:"log"`
}
