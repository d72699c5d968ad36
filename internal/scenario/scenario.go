package scenario

import (
	"encoding/json"
	"maps"
	"slices"

	"github.com/google/uuid"

	"github.com/zigrin-security/cakefuzzer/pkg/types"
)

// DefaultServerOriginals are the server values every scenario starts from
var DefaultServerOriginals = map[string]any{
	"HTTP_HOST":           "127.0.0.1",
	"HTTP_SEC_FETCH_SITE": "same-origin",
}

// DefaultServerSkipKeys change how a request is interpreted and are never fuzzed
var DefaultServerSkipKeys = []string{
	"HTTP_CONTENT_ENCODING",
	"HTTP_X_HTTP_METHOD_OVERRIDE",
	"HTTP_AUTHORIZATION",
}

// Scenario is one payload against one path
type Scenario struct {
	ID         string `json:"-"`
	Strategy   string `json:"strategy_name"`
	Path       string `json:"path"`
	Payload    string `json:"payload"`
	Iterations int    `json:"total_iterations"`

	strategy *Strategy
}

// Expand turns strategies into scenarios. Paths listed by a strategy take
// precedence over the discovered ones; iterations applies when the strategy
// sets none.
func Expand(strategies []*Strategy, paths []string, iterations int) []*Scenario {
	var scenarios []*Scenario
	for _, s := range strategies {
		targets := s.Paths
		if len(targets) == 0 {
			targets = paths
		}
		n := s.Iterations
		if n == 0 {
			n = iterations
		}

		for _, path := range targets {
			for _, payload := range s.Payloads {
				sc := &Scenario{
					Strategy:   s.Name,
					Path:       path,
					Payload:    payload,
					Iterations: n,
					strategy:   s,
				}
				sc.ID = sc.identify()
				scenarios = append(scenarios, sc)
			}
		}
	}
	return scenarios
}

// identify derives a stable ID from the scenario contents
func (s *Scenario) identify() string {
	data, _ := json.Marshal(s)
	return uuid.NewSHA1(uuid.NameSpaceURL, data).String()
}

// Name labels the scenario in reports
func (s *Scenario) Name() string {
	return s.Strategy + " " + s.Path
}

// Config builds the execution configuration of one iteration of the scenario
func (s *Scenario) Config(defaults types.ExecutionDefaults) *types.ExecutionConfig {
	st := s.strategy
	if st == nil {
		st = &Strategy{Name: s.Strategy}
	}

	cfg := &types.ExecutionConfig{
		Payloads:           []string{s.Payload},
		KnownKeywords:      slices.Clone(st.KnownKeywords),
		Path:               s.Path,
		Probability:        defaults.Probability,
		OneParamPerPayload: st.OneParamPerPayload,
		Injectable:         maps.Clone(st.Injectable),
		GlobalExclude:      slices.Clone(st.GlobalExclude),
		KindWeights:        maps.Clone(defaults.KindWeights),
		Fillers:            slices.Clone(defaults.Fillers),
		Accesses:           st.Accesses,
		Originals:          make(map[string]map[string]any),
		FuzzSkipKeys:       make(map[string][]string),
	}
	if st.Probability != nil {
		cfg.Probability = *st.Probability
	}

	phrase := defaults.GUIDPhrase
	if st.GUIDPhrase != nil {
		phrase = *st.GUIDPhrase
	}
	cfg.GUIDPhrase = &phrase

	pathProbability := defaults.PathProbability
	cfg.PathProbability = &pathProbability

	for group, values := range st.Originals {
		cfg.Originals[group] = maps.Clone(values)
	}
	server := cfg.Originals[types.GroupServer]
	if server == nil {
		server = make(map[string]any)
		cfg.Originals[types.GroupServer] = server
	}
	for k, v := range DefaultServerOriginals {
		if _, ok := server[k]; !ok {
			server[k] = v
		}
	}

	for group, keys := range st.FuzzSkipKeys {
		cfg.FuzzSkipKeys[group] = slices.Clone(keys)
	}
	for _, k := range DefaultServerSkipKeys {
		if !slices.Contains(cfg.FuzzSkipKeys[types.GroupServer], k) {
			cfg.FuzzSkipKeys[types.GroupServer] = append(cfg.FuzzSkipKeys[types.GroupServer], k)
		}
	}

	return cfg
}
