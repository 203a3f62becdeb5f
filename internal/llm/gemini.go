// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-pro"

// contentGenerator is the subset of *genai.Models the Gemini client needs.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiClient calls the Gemini API through the GenAI SDK.
type GeminiClient struct {
	models contentGenerator
}

// NewGeminiClient creates a client for the Gemini API backend.
func NewGeminiClient(ctx context.Context, apiKey string) (*GeminiClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiClient{models: client.Models}, nil
}

// Complete maps the request onto a GenerateContent call. The system text
// becomes the system instruction and assistant turns become model turns.
func (g *GeminiClient) Complete(ctx context.Context, r Request) ([]ContentBlock, error) {
	if g == nil || g.models == nil {
		return nil, errors.New("gemini client is not initialized")
	}

	model := r.Model
	if model == "" {
		model = DefaultGeminiModel
	}

	cfg := &genai.GenerateContentConfig{Temperature: genai.Ptr(float32(r.Temperature))}
	if r.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(r.System, genai.RoleUser)
	}
	if r.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(r.MaxTokens)
	}

	contents := make([]*genai.Content, 0, len(r.Messages))
	for _, m := range r.Messages {
		var role genai.Role = genai.RoleUser
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	resp, err := g.models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return nil, &APIError{Provider: "Gemini", StatusCode: apiErr.Code, Body: apiErr.Message}
		}
		return nil, fmt.Errorf("generate content: %w", err)
	}

	var blocks []ContentBlock
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Text == "" || part.Thought {
				continue
			}
			blocks = append(blocks, ContentBlock{Type: "text", Text: part.Text})
		}
		// Only the first candidate is used.
		break
	}
	return blocks, nil
}
