package llm

import (
	"context"
	"sync"

	"github.com/zigrin-security/cakefuzzer/pkg/types"
)

// MockProvider is a canned provider for tests and offline runs
type MockProvider struct {
	BaseProvider
	mu          sync.Mutex
	responses   map[string]string // prompt -> response mapping
	defaultResp string
	callCount   int
	lastSystem  string
	lastPrompt  string
	errorOnCall error
}

// MockProviderOption is a function that configures a MockProvider
type MockProviderOption func(*MockProvider)

// NewMockProvider creates a new mock provider
func NewMockProvider(opts ...MockProviderOption) *MockProvider {
	m := &MockProvider{
		BaseProvider: BaseProvider{
			config: types.ProviderConfig{
				Name:  "mock",
				Model: "mock-model",
			},
		},
		responses:   make(map[string]string),
		defaultResp: `{"payloads": []}`,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// WithResponse adds a specific response for a prompt
func WithResponse(prompt, response string) MockProviderOption {
	return func(m *MockProvider) {
		m.responses[prompt] = response
	}
}

// WithDefaultResponse sets the default response
func WithDefaultResponse(response string) MockProviderOption {
	return func(m *MockProvider) {
		m.defaultResp = response
	}
}

// WithError sets an error to return on calls
func WithError(err error) MockProviderOption {
	return func(m *MockProvider) {
		m.errorOnCall = err
	}
}

// Complete returns the canned response for prompt
func (m *MockProvider) Complete(ctx context.Context, system, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.callCount++
	m.lastSystem = system
	m.lastPrompt = prompt

	if m.errorOnCall != nil {
		return "", m.errorOnCall
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if resp, ok := m.responses[prompt]; ok {
		return resp, nil
	}
	return m.defaultResp, nil
}

// CallCount returns the number of times the provider was called
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// LastPrompt returns the last system message and prompt received
func (m *MockProvider) LastPrompt() (system, prompt string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSystem, m.lastPrompt
}

// Reset clears the recorded calls and any configured error
func (m *MockProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.lastSystem = ""
	m.lastPrompt = ""
	m.errorOnCall = nil
}
