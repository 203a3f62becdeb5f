// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm defines the text-completion interface the generator drives,
// its Claude and Gemini implementations, and the transient-error retry policy
// that wraps every call.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrNoTextContent is returned when a response carries no text block. It is
// fatal and never retried.
var ErrNoTextContent = errors.New("no text content in LLM response")

// Message is one turn of the conversation history.
type Message struct {
	Role    string
	Content string
}

// Request is a single completion call.
type Request struct {
	System      string
	Messages    []Message
	Model       string
	MaxTokens   int
	// Temperature is sent as given; zero means deterministic sampling.
	Temperature float64
}

// ContentBlock is one block of a completion response.
type ContentBlock struct {
	Type string
	Text string
}

// Client is any text-completion provider.
type Client interface {
	Complete(ctx context.Context, req Request) ([]ContentBlock, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, req Request) ([]ContentBlock, error)

// Complete calls f.
func (f ClientFunc) Complete(ctx context.Context, req Request) ([]ContentBlock, error) {
	return f(ctx, req)
}

// TextOf concatenates the text blocks of a response. It returns
// ErrNoTextContent when there are none.
func TextOf(blocks []ContentBlock) (string, error) {
	var parts []string
	for _, b := range blocks {
		if b.Type == "text" {
			parts = append(parts, b.Text)
		}
	}
	if len(parts) == 0 {
		return "", ErrNoTextContent
	}
	return strings.Join(parts, ""), nil
}

// APIError is a non-success response from a provider.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API returned %d: %s", e.Provider, e.StatusCode, e.Body)
}
