// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pdiddy/research-match/pkg/types"
)

// Provider names accepted in configuration.
const (
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// claudeHTTPTimeout bounds a single Messages API call.
const claudeHTTPTimeout = 5 * time.Minute

// NormalizeProvider lowercases p and maps the empty string to Anthropic.
func NormalizeProvider(p string) string {
	p = strings.ToLower(strings.TrimSpace(p))
	if p == "" || p == "claude" {
		return ProviderAnthropic
	}
	return p
}

// DefaultModel returns the model used for provider when none is configured.
func DefaultModel(provider string) string {
	if NormalizeProvider(provider) == ProviderGemini {
		return DefaultGeminiModel
	}
	return DefaultClaudeModel
}

// NewClient builds the raw (non-retrying) client for cfg.Provider.
func NewClient(ctx context.Context, cfg types.AIConfig) (Client, error) {
	switch NormalizeProvider(cfg.Provider) {
	case ProviderAnthropic:
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, fmt.Errorf("anthropic api key is required")
		}
		return &ClaudeClient{APIKey: cfg.APIKey, Client: &http.Client{Timeout: claudeHTTPTimeout}}, nil
	case ProviderGemini:
		return NewGeminiClient(ctx, cfg.APIKey)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}
