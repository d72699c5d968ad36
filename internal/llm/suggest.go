package llm

import (
	"context"
	"fmt"
	"strings"
)

const suggestSystem = `You are assisting an authorized security test of a web application.
You propose input strings that exercise parameter handling for a given vulnerability class.`

// SuggestRequest describes the payloads to ask for
type SuggestRequest struct {
	Category string   // e.g. sqli, xss, path traversal
	Examples []string // payloads already in the pool
	Count    int
	// Phrase is the GUID marker every payload must carry, empty for none
	Phrase string
}

type suggestResponse struct {
	Payloads []string `json:"payloads"`
}

// SuggestPayloads asks p for new payloads. The result excludes the examples,
// holds no duplicates and has at most req.Count entries. Payloads missing the
// marker phrase get it appended so that they stay traceable.
func SuggestPayloads(ctx context.Context, p Provider, req SuggestRequest) ([]string, error) {
	if req.Count <= 0 {
		req.Count = 10
	}

	content, err := p.Complete(ctx, suggestSystem, buildSuggestPrompt(req))
	if err != nil {
		return nil, fmt.Errorf("requesting payloads from %s: %w", p.Name(), err)
	}

	var resp suggestResponse
	if err := ParseJSONResponse(content, &resp); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(req.Examples))
	for _, e := range req.Examples {
		seen[e] = true
	}

	var payloads []string
	for _, payload := range resp.Payloads {
		if strings.TrimSpace(payload) == "" {
			continue
		}
		if req.Phrase != "" && !strings.Contains(payload, req.Phrase) {
			payload += req.Phrase
		}
		if seen[payload] {
			continue
		}
		seen[payload] = true
		payloads = append(payloads, payload)
		if len(payloads) == req.Count {
			break
		}
	}
	return payloads, nil
}

func buildSuggestPrompt(req SuggestRequest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Propose %d distinct payloads for the category %q.\n", req.Count, req.Category)
	if len(req.Examples) > 0 {
		sb.WriteString("Payloads already used, do not repeat them:\n")
		for _, e := range req.Examples {
			fmt.Fprintf(&sb, "- %s\n", e)
		}
	}
	if req.Phrase != "" {
		fmt.Fprintf(&sb, "Every payload must contain the literal marker %s exactly once, where the injected code would print or store a value.\n", req.Phrase)
	}
	sb.WriteString(`Respond with valid JSON only, in the form {"payloads": ["..."]}.`)
	return sb.String()
}
