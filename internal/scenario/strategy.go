// Package scenario loads attack strategy definitions and expands them into
// execution configurations
package scenario

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/zigrin-security/cakefuzzer/pkg/types"
)

// Strategy is one attack definition file. Every payload is run against every
// path as its own scenario.
type Strategy struct {
	Name     string   `yaml:"strategy_name" json:"strategy_name"`
	Payloads []string `yaml:"scenarios" json:"scenarios"`
	Paths    []string `yaml:"paths,omitempty" json:"paths,omitempty"`

	Iterations         int                       `yaml:"iterations,omitempty" json:"iterations,omitempty"`
	Probability        *int                      `yaml:"probability,omitempty" json:"probability,omitempty"`
	OneParamPerPayload bool                      `yaml:"one_param_per_payload,omitempty" json:"one_param_per_payload,omitempty"`
	Injectable         map[string]string         `yaml:"injectable,omitempty" json:"injectable,omitempty"`
	GUIDPhrase         *string                   `yaml:"payload_guid_phrase,omitempty" json:"payload_guid_phrase,omitempty"`
	KnownKeywords      []string                  `yaml:"known_keywords,omitempty" json:"known_keywords,omitempty"`
	Originals          map[string]map[string]any `yaml:"originals,omitempty" json:"originals,omitempty"`
	GlobalExclude      []string                  `yaml:"global_exclude,omitempty" json:"global_exclude,omitempty"`
	FuzzSkipKeys       map[string][]string       `yaml:"fuzz_skip_keys,omitempty" json:"fuzz_skip_keys,omitempty"`
	Accesses           []types.Access            `yaml:"accesses,omitempty" json:"accesses,omitempty"`

	// File is the definition the strategy was loaded from
	File string `yaml:"-" json:"-"`
}

// Validate checks the strategy for missing fields
func (s *Strategy) Validate() error {
	var errs types.ValidationErrors
	if s.Name == "" {
		errs = append(errs, types.ValidationError{Field: "strategy_name", Message: "is required"})
	}
	if len(s.Payloads) == 0 {
		errs = append(errs, types.ValidationError{Field: "scenarios", Message: "at least one payload is required"})
	}
	if s.Iterations < 0 {
		errs = append(errs, types.ValidationError{Field: "iterations", Message: "must not be negative"})
	}
	if s.Probability != nil && (*s.Probability < 0 || *s.Probability > 100) {
		errs = append(errs, types.ValidationError{Field: "probability", Message: "must be between 0 and 100"})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

var definitionPattern = "**/*.{yaml,yml,json}"

// Load reads every strategy definition below dir, in path order
func Load(dir string) ([]*Strategy, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("reading strategy directory: %w", err)
	}
	if !info.IsDir() {
		s, err := LoadFile(dir)
		if err != nil {
			return nil, err
		}
		return []*Strategy{s}, nil
	}

	matches, err := doublestar.FilepathGlob(filepath.Join(dir, definitionPattern))
	if err != nil {
		return nil, fmt.Errorf("expanding glob pattern: %w", err)
	}
	sort.Strings(matches)

	strategies := make([]*Strategy, 0, len(matches))
	for _, match := range matches {
		s, err := LoadFile(match)
		if err != nil {
			relPath, _ := filepath.Rel(dir, match)
			if relPath == "" {
				relPath = match
			}
			return nil, fmt.Errorf("loading %s: %w", relPath, err)
		}
		strategies = append(strategies, s)
	}
	return strategies, nil
}

// LoadFile reads one YAML or JSON strategy definition
func LoadFile(path string) (*Strategy, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", path)
		}
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("file is empty: %s", path)
	}

	var s Strategy
	if err := yaml.Unmarshal([]byte(ExpandEnvVars(string(data))), &s); err != nil {
		return nil, fmt.Errorf("parsing definition: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	s.File = path
	return &s, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnvVars expands ${VAR} and ${VAR:-default}. Other dollar signs are
// left alone so that payloads keep their shell syntax.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		submatch := envVarPattern.FindStringSubmatch(match)
		if val := os.Getenv(submatch[1]); val != "" {
			return val
		}
		return submatch[2]
	})
}
