// Package types provides core data structures for CakeFuzzer
package types

import "fmt"

// Input groups exposed to the application during one execution
const (
	GroupQuery   = "query"
	GroupBody    = "body"
	GroupRequest = "request"
	GroupCookies = "cookies"
	GroupServer  = "server"
	GroupFiles   = "files"
)

// Groups lists every known input group in reporting order
var Groups = []string{GroupQuery, GroupBody, GroupRequest, GroupCookies, GroupFiles, GroupServer}

// HeaderPrefix scopes the server group to request headers
const HeaderPrefix = "HTTP_"

// Execution defaults
const (
	DefaultGUIDPhrase      = "§CAKEFUZZER_PAYLOAD_GUID§"
	DefaultProbability     = 50
	DefaultPathProbability = 50
)

// ExecutionConfig is everything one execution needs
type ExecutionConfig struct {
	Payloads      []string                  `json:"payloads" yaml:"payloads" mapstructure:"payloads"`
	KnownKeywords []string                  `json:"known_keywords,omitempty" yaml:"known_keywords,omitempty" mapstructure:"known_keywords"`
	Originals     map[string]map[string]any `json:"originals,omitempty" yaml:"originals,omitempty" mapstructure:"originals"`
	Path          string                    `json:"path" yaml:"path" mapstructure:"path"`

	// Probability is the per-key injection chance in independent mode
	Probability int `json:"probability" yaml:"probability" mapstructure:"probability"`

	// OneParamPerPayload switches to single-target mode
	OneParamPerPayload bool `json:"one_param_per_payload,omitempty" yaml:"one_param_per_payload,omitempty" mapstructure:"one_param_per_payload"`

	// Injectable pins the single target: group -> key
	Injectable map[string]string `json:"injectable,omitempty" yaml:"injectable,omitempty" mapstructure:"injectable"`

	GlobalExclude []string            `json:"global_exclude,omitempty" yaml:"global_exclude,omitempty" mapstructure:"global_exclude"`
	FuzzSkipKeys  map[string][]string `json:"fuzz_skip_keys,omitempty" yaml:"fuzz_skip_keys,omitempty" mapstructure:"fuzz_skip_keys"`

	// GUIDPhrase is nil when unset; an empty string disables GUIDs
	GUIDPhrase *string `json:"payload_guid_phrase,omitempty" yaml:"payload_guid_phrase,omitempty" mapstructure:"payload_guid_phrase"`

	PathProbability *int           `json:"path_probability,omitempty" yaml:"path_probability,omitempty" mapstructure:"path_probability"`
	KindWeights     map[string]int `json:"kind_weights,omitempty" yaml:"kind_weights,omitempty" mapstructure:"kind_weights"`
	Fillers         []string       `json:"fillers,omitempty" yaml:"fillers,omitempty" mapstructure:"fillers"`

	// MethodTable weights request methods when REQUEST_METHOD is not supplied
	MethodTable map[string]float64 `json:"method_table,omitempty" yaml:"method_table,omitempty" mapstructure:"method_table"`

	Seed int64 `json:"seed,omitempty" yaml:"seed,omitempty" mapstructure:"seed"`

	// Accesses is the script replayed by the CLI target
	Accesses []Access `json:"accesses,omitempty" yaml:"accesses,omitempty" mapstructure:"accesses"`
}

// Phrase returns the effective GUID marker phrase
func (c *ExecutionConfig) Phrase() string {
	if c.GUIDPhrase == nil {
		return DefaultGUIDPhrase
	}
	return *c.GUIDPhrase
}

// EffectivePathProbability returns the path injection chance
func (c *ExecutionConfig) EffectivePathProbability() int {
	if c.PathProbability == nil {
		return DefaultPathProbability
	}
	return *c.PathProbability
}

// Excluded reports whether a group is left uninstrumented
func (c *ExecutionConfig) Excluded(group string) bool {
	for _, g := range c.GlobalExclude {
		if g == group {
			return true
		}
	}
	return false
}

// Access operations
const (
	OpGet     = "get"
	OpExists  = "exists"
	OpSet     = "set"
	OpDelete  = "delete"
	OpCount   = "count"
	OpIterate = "iterate"

	// hooks standing in for array and hash helpers of the application
	OpKeys       = "keys"
	OpKeyExists  = "key_exists"
	OpMerge      = "merge"
	OpHashEquals = "hash_equals"
)

// KeyedOps lists the operations that address one key
var KeyedOps = []string{"", OpGet, OpExists, OpSet, OpDelete, OpKeyExists, OpHashEquals}

// Access is one scripted read or write against an input group
type Access struct {
	Group string   `json:"group" yaml:"group" mapstructure:"group"`
	Keys  []string `json:"keys,omitempty" yaml:"keys,omitempty" mapstructure:"keys"` // nested key path
	Op    string   `json:"op,omitempty" yaml:"op,omitempty" mapstructure:"op"`       // defaults to get
	Value any      `json:"value,omitempty" yaml:"value,omitempty" mapstructure:"value"` // set value, hash_equals operand, merge sources
}

// MergeSources returns the group names a merge access reads from
func (a Access) MergeSources() ([]string, error) {
	switch v := a.Value.(type) {
	case string:
		return []string{v}, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("merge source %v is not a group name", item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("merge needs a list of group names, got %T", a.Value)
	}
}
