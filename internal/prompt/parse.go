// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package prompt

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// MaxProposals is the number of array elements kept from a reply.
const MaxProposals = 3

// Format errors returned by ParseOutput. Both trigger the single
// formatting retry in the generator.
var (
	ErrMalformedJSON = errors.New("malformed JSON in LLM output")
	ErrNotArray      = errors.New("LLM output is not a JSON array")
)

var (
	openingFence  = regexp.MustCompile("^```[A-Za-z0-9_-]*[ \t]*\r?\n?")
	closingFence  = regexp.MustCompile("\r?\n?```$")
	trailingComma = regexp.MustCompile(`,\s*([\]}])`)
)

// stripFences removes one leading and one trailing markdown code fence.
func stripFences(s string) string {
	s = openingFence.ReplaceAllString(s, "")
	s = closingFence.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// ParseOutput extracts the proposal array from a raw LLM reply. It tolerates
// surrounding whitespace, a single markdown fence and trailing commas before a
// closing bracket or brace. Arrays longer than MaxProposals are truncated.
//
// Trailing commas are only stripped when the text does not decode as is, so
// string values that happen to contain ", ]" or ", }" survive untouched.
func ParseOutput(raw string) ([]json.RawMessage, error) {
	text := stripFences(strings.TrimSpace(raw))

	var decoded any
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		text = trailingComma.ReplaceAllString(text, "$1")
		if err := json.Unmarshal([]byte(text), &decoded); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
		}
	}
	if _, ok := decoded.([]any); !ok {
		return nil, ErrNotArray
	}

	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(text), &elems); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}
	if len(elems) > MaxProposals {
		elems = elems[:MaxProposals]
	}
	return elems, nil
}
