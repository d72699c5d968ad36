// Package policy decides whether a key of an input group may receive a payload.
package policy

import (
	"slices"
	"strings"

	"github.com/zigrin-security/cakefuzzer/internal/choice"
)

// Mode selects how injection decisions are made
type Mode int

const (
	// Independent draws a fresh chance for every undecided key
	Independent Mode = iota
	// SingleTarget injects into at most one key per execution
	SingleTarget
)

// String returns the mode name
func (m Mode) String() string {
	switch m {
	case SingleTarget:
		return "single_target"
	default:
		return "independent"
	}
}

// DefaultAcceptedKeys are the unprefixed server metadata keys that stay fuzzable
// in the header scoped group
var DefaultAcceptedKeys = []string{"SERVER_PROTOCOL", "REQUEST_METHOD", "QUERY_STRING", "REQUEST_URI"}

// Latch records the single key chosen in SingleTarget mode.
// One latch is shared by every policy of an execution.
type Latch struct {
	taken bool
	group string
	key   string
}

// NewLatch returns an untaken latch
func NewLatch() *Latch {
	return &Latch{}
}

// Taken reports whether a key has already been chosen
func (l *Latch) Taken() bool {
	return l.taken
}

// Holder returns the collection and key that took the latch
func (l *Latch) Holder() (group, key string) {
	return l.group, l.key
}

func (l *Latch) take(group, key string) bool {
	if l.taken {
		return false
	}
	l.taken = true
	l.group = group
	l.key = key
	return true
}

// Scope describes the collection asking for a decision
type Scope struct {
	Name   string
	Prefix string
}

// Config holds the inputs of a Policy
type Config struct {
	Mode        Mode
	Probability int

	// SkipKeys are never injected
	SkipKeys []string

	// AcceptedKeys may bypass prefix scoping. Only set for the header group.
	AcceptedKeys []string

	// Targets maps a group to its single target key. A nil map means no target
	// was configured and the first eligible key of the execution wins.
	Targets map[string]string

	// Group is the input group this policy belongs to
	Group string

	Latch  *Latch
	Source choice.Source
}

// Policy is the pure decision logic consulted by collections on undecided keys
type Policy struct {
	mode        Mode
	probability int
	skip        map[string]struct{}
	accepted    []string
	targets     map[string]string
	group       string
	latch       *Latch
	src         choice.Source
}

// New creates a policy from config
func New(cfg Config) *Policy {
	skip := make(map[string]struct{}, len(cfg.SkipKeys))
	for _, k := range cfg.SkipKeys {
		skip[k] = struct{}{}
	}

	latch := cfg.Latch
	if latch == nil {
		latch = NewLatch()
	}

	src := cfg.Source
	if src == nil {
		src = choice.NewSource(0)
	}

	return &Policy{
		mode:        cfg.Mode,
		probability: cfg.Probability,
		skip:        skip,
		accepted:    cfg.AcceptedKeys,
		targets:     cfg.Targets,
		group:       cfg.Group,
		latch:       latch,
		src:         src,
	}
}

// Mode returns the decision mode
func (p *Policy) Mode() Mode {
	return p.mode
}

// Group returns the owning input group
func (p *Policy) Group() string {
	return p.group
}

// IsInjectable decides whether key may receive a payload.
// In SingleTarget mode a positive answer takes the execution's latch.
func (p *Policy) IsInjectable(key string, scope Scope) bool {
	if _, ok := p.skip[key]; ok {
		return false
	}

	if scope.Prefix != "" && !strings.HasPrefix(key, scope.Prefix) {
		if !slices.Contains(p.accepted, key) {
			return false
		}
	}

	if p.mode == SingleTarget {
		return p.single(key, scope)
	}

	return choice.Chance(p.src, p.probability)
}

func (p *Policy) single(key string, scope Scope) bool {
	if p.targets != nil {
		target, ok := p.targets[p.group]
		if !ok || target == "" || target != key {
			return false
		}
	}
	return p.latch.take(scope.Name, key)
}
