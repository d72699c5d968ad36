// Package guid issues payload GUIDs and expands the marker phrase inside payloads.
//
// A GUID is a 20 digit token that is easy to grep for in application output,
// so an injected value can be traced back to the execution that produced it.
package guid

import (
	"fmt"
	"math"
	"strings"

	"github.com/zigrin-security/cakefuzzer/internal/choice"
)

// TokenWidth is the length of every issued token
const TokenWidth = 20

// Registry generates tokens and keeps the ordered list of tokens issued during one execution
type Registry struct {
	phrase string
	src    choice.Source
	issued []string
}

// NewRegistry creates a registry expanding phrase. An empty phrase disables substitution.
func NewRegistry(phrase string, src choice.Source) *Registry {
	if src == nil {
		src = choice.NewSource(0)
	}
	return &Registry{
		phrase: phrase,
		src:    src,
		issued: make([]string, 0),
	}
}

// Phrase returns the marker phrase
func (r *Registry) Phrase() string {
	return r.phrase
}

// Substitute replaces every occurrence of the marker phrase with one freshly issued token.
// Payloads without the marker come back unchanged and issue nothing.
func (r *Registry) Substitute(payload string) string {
	if r.phrase == "" || !strings.Contains(payload, r.phrase) {
		return payload
	}
	return strings.ReplaceAll(payload, r.phrase, r.Generate())
}

// Generate issues a new token: the product of two independent draws, zero padded
func (r *Registry) Generate() string {
	a := int64(r.src.Intn(math.MaxInt32))
	b := int64(r.src.Intn(math.MaxInt32))
	token := fmt.Sprintf("%0*d", TokenWidth, a*b)
	r.issued = append(r.issued, token)
	return token
}

// Issued returns a copy of every token issued so far, oldest first
func (r *Registry) Issued() []string {
	out := make([]string, len(r.issued))
	copy(out, r.issued)
	return out
}

// Count returns the number of issued tokens
func (r *Registry) Count() int {
	return len(r.issued)
}
