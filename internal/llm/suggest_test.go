package llm

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/zigrin-security/cakefuzzer/pkg/types"
)

func TestParseJSONResponse(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
		wantErr bool
	}{
		{"plain", `{"payloads": ["a"]}`, []string{"a"}, false},
		{"markdown", "```json\n{\"payloads\": [\"a\", \"b}\"]}\n```", []string{"a", "b}"}, false},
		{"prose", `Here you go: {"payloads": ["\"quoted\""]} hope it helps`, []string{`"quoted"`}, false},
		{"invalid", "no json here", nil, true},
		{"truncated", `{"payloads": ["a"`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp suggestResponse
			err := ParseJSONResponse(tt.content, &resp)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidJSON) {
					t.Errorf("expected ErrInvalidJSON, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(resp.Payloads, tt.want) {
				t.Errorf("payloads = %v, expected %v", resp.Payloads, tt.want)
			}
		})
	}
}

func TestSuggestPayloads(t *testing.T) {
	m := NewMockProvider(WithDefaultResponse(
		`{"payloads": ["' OR 1=1 -- GUID", "", "1; DROP TABLE users", "' OR 1=1 -- GUID", "sleep(5)", "extra"]}`,
	))

	payloads, err := SuggestPayloads(context.Background(), m, SuggestRequest{
		Category: "sqli",
		Examples: []string{"' OR 1=1 -- GUID"},
		Count:    2,
		Phrase:   "GUID",
	})
	if err != nil {
		t.Fatalf("SuggestPayloads failed: %v", err)
	}

	want := []string{"1; DROP TABLE usersGUID", "sleep(5)GUID"}
	if !reflect.DeepEqual(payloads, want) {
		t.Errorf("payloads = %v, expected %v", payloads, want)
	}

	system, prompt := m.LastPrompt()
	if system == "" {
		t.Error("expected a system message")
	}
	for _, fragment := range []string{`"sqli"`, "' OR 1=1 -- GUID", "marker GUID"} {
		if !strings.Contains(prompt, fragment) {
			t.Errorf("prompt should contain %q:\n%s", fragment, prompt)
		}
	}
}

func TestSuggestPayloads_Errors(t *testing.T) {
	boom := errors.New("boom")
	if _, err := SuggestPayloads(context.Background(), NewMockProvider(WithError(boom)), SuggestRequest{}); !errors.Is(err, boom) {
		t.Errorf("expected provider error, got %v", err)
	}

	m := NewMockProvider(WithDefaultResponse("I cannot help with that"))
	if _, err := SuggestPayloads(context.Background(), m, SuggestRequest{}); !errors.Is(err, ErrInvalidJSON) {
		t.Errorf("expected ErrInvalidJSON, got %v", err)
	}
}

func TestNewProvider(t *testing.T) {
	if _, err := NewProvider(types.ProviderConfig{}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for empty name, got %v", err)
	}
	if _, err := NewProvider(types.ProviderConfig{Name: "unknown"}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
	if _, err := NewProvider(types.ProviderConfig{Name: "openai"}); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}

	p, err := NewProvider(types.ProviderConfig{Name: "openai", BaseURL: "http://localhost:1234/v1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Model() != "gpt-4o" {
		t.Errorf("Model() = %s, expected gpt-4o", p.Model())
	}
}
