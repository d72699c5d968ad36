// Package llm asks a language model for additional fuzzing payloads
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zigrin-security/cakefuzzer/pkg/types"
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Complete sends a prompt with an optional system message and returns the response
	Complete(ctx context.Context, system, prompt string) (string, error)

	// Name returns the provider name
	Name() string

	// Model returns the model being used
	Model() string
}

// Errors
var (
	ErrNoAPIKey      = errors.New("API key not configured")
	ErrInvalidConfig = errors.New("invalid provider configuration")
	ErrProviderError = errors.New("provider returned an error")
	ErrInvalidJSON   = errors.New("failed to parse response as JSON")
)

// NewProvider creates a provider based on configuration
func NewProvider(config types.ProviderConfig) (Provider, error) {
	switch config.Name {
	case "openai":
		return NewOpenAIProvider(config)
	case "":
		return nil, fmt.Errorf("%w: no provider configured", ErrInvalidConfig)
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrInvalidConfig, config.Name)
	}
}

// BaseProvider provides common functionality for providers
type BaseProvider struct {
	config types.ProviderConfig
}

// Name returns the provider name
func (p *BaseProvider) Name() string {
	return p.config.Name
}

// Model returns the configured model
func (p *BaseProvider) Model() string {
	return p.config.Model
}

// ParseJSONResponse extracts the first JSON value from model output, which
// is often wrapped in markdown or prose
func ParseJSONResponse(content string, result any) error {
	start := findJSONStart(content)
	end := findJSONEnd(content, start)

	raw := content
	if start != -1 && end != -1 {
		raw = content[start : end+1]
	}
	if err := json.Unmarshal([]byte(raw), result); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return nil
}

func findJSONStart(s string) int {
	for i, c := range s {
		if c == '{' || c == '[' {
			return i
		}
	}
	return -1
}

// findJSONEnd returns the index of the bracket closing the one at start
func findJSONEnd(s string, start int) int {
	if start == -1 || start >= len(s) {
		return -1
	}

	openChar := s[start]
	closeChar := byte('}')
	if openChar == '[' {
		closeChar = ']'
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]

		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == openChar:
			depth++
		case c == closeChar:
			depth--
			if depth == 0 {
				return i
			}
		}
	}

	return -1
}
