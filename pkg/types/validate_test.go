package types

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func hasField(errs ValidationErrors, field string) bool {
	for _, e := range errs {
		if e.Field == field {
			return true
		}
	}
	return false
}

func TestValidateConfig_Defaults(t *testing.T) {
	if err := ValidateConfig(DefaultConfig()); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestValidateConfig_Invalid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Execution.Probability = 150
	cfg.Execution.PathProbability = -1
	cfg.Run.Iterations = 0
	cfg.Run.Concurrency = 1000
	cfg.Run.Timeout = time.Hour
	cfg.Run.Scenarios = filepath.Join(t.TempDir(), "missing")
	cfg.Provider.Name = "anthropic"
	cfg.Output.Format = "sarif"
	cfg.Logging.Level = "trace"

	errs := NewConfigValidator().Validate(cfg)
	for _, field := range []string{
		"execution.probability",
		"execution.path_probability",
		"run.iterations",
		"run.concurrency",
		"run.timeout",
		"run.scenarios",
		"provider.name",
		"provider.api_key",
		"output.format",
		"logging.level",
	} {
		if !hasField(errs, field) {
			t.Errorf("expected error for %s, got %v", field, errs)
		}
	}

	err := ValidateConfig(cfg)
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if !strings.Contains(err.Error(), "configuration validation failed") {
		t.Errorf("unexpected message: %s", err)
	}
}

func TestValidateConfig_ProviderBaseURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Provider.Name = "openai"
	cfg.Provider.BaseURL = "http://localhost:1234/v1"

	if err := ValidateConfig(cfg); err != nil {
		t.Errorf("local endpoint without API key should be valid: %v", err)
	}
}

func TestValidateExecutionConfig(t *testing.T) {
	pathProb := 120
	cfg := &ExecutionConfig{
		Probability:     -5,
		PathProbability: &pathProb,
		Originals:       map[string]map[string]any{"session": {"id": "1"}},
		Injectable:      map[string]string{"query": "id"},
		GlobalExclude:   []string{"files", "env"},
		MethodTable:     map[string]float64{"GET": 60, "POST": 30},
		Accesses: []Access{
			{Group: "query", Keys: []string{"id"}},
			{Group: "query", Op: "rename", Keys: []string{"id"}},
			{Group: "cookies", Op: OpSet},
			{Group: "server", Op: OpCount},
			{Group: "files", Op: OpMerge, Value: []any{"query", 3}},
			{Group: "query", Op: OpKeyExists},
			{Group: "query", Op: OpKeys},
			{Group: "request", Op: OpMerge, Value: []string{"query", "env"}},
		},
	}

	errs := NewConfigValidator().ValidateExecution(cfg)
	for _, field := range []string{
		"payloads",
		"probability",
		"path_probability",
		"originals",
		"global_exclude",
		"injectable",
		"method_table",
		"accesses[1].op",
		"accesses[2].keys",
		"accesses[4].group",
		"accesses[4].value",
		"accesses[5].keys",
		"accesses[7].value",
	} {
		if !hasField(errs, field) {
			t.Errorf("expected error for %s, got %v", field, errs)
		}
	}
	if hasField(errs, "accesses[0].op") || hasField(errs, "accesses[3].keys") || hasField(errs, "accesses[6].keys") {
		t.Errorf("valid accesses should not be reported: %v", errs)
	}
}

func TestValidateExecutionConfig_Valid(t *testing.T) {
	cfg := &ExecutionConfig{
		KnownKeywords:      []string{"admin"},
		Probability:        100,
		OneParamPerPayload: true,
		Injectable:         map[string]string{"query": "id"},
		MethodTable:        map[string]float64{"GET": 50, "POST": 50},
	}
	if err := ValidateExecutionConfig(cfg); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateInputFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "exec.json")
	if err := os.WriteFile(file, []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := ValidateInputFile(file); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateInputFile(dir); err == nil {
		t.Error("expected error for directory")
	}
	if err := ValidateInputFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestExecutionConfigDefaults(t *testing.T) {
	cfg := &ExecutionConfig{GlobalExclude: []string{GroupFiles}}
	if cfg.Phrase() != DefaultGUIDPhrase {
		t.Errorf("Phrase() = %q", cfg.Phrase())
	}
	if cfg.EffectivePathProbability() != DefaultPathProbability {
		t.Errorf("EffectivePathProbability() = %d", cfg.EffectivePathProbability())
	}

	empty, zero := "", 0
	cfg.GUIDPhrase = &empty
	cfg.PathProbability = &zero
	if cfg.Phrase() != "" || cfg.EffectivePathProbability() != 0 {
		t.Error("explicit values should override defaults")
	}

	if !cfg.Excluded(GroupFiles) || cfg.Excluded(GroupQuery) {
		t.Error("Excluded() mismatch")
	}
}

func TestNewRunSummary(t *testing.T) {
	summary := NewRunSummary([]ExecutionResult{
		{Scenario: "xss /a", Injected: 2, PayloadGUIDs: []string{"1", "2"}},
		{Scenario: "xss /a", Error: "boom"},
		{Scenario: "sqli /b", Injected: 1, PayloadGUIDs: []string{"3"}},
		{Injected: 1},
	})

	if summary.TotalExecutions != 4 {
		t.Errorf("TotalExecutions = %d", summary.TotalExecutions)
	}
	if summary.FailedExecutions != 1 {
		t.Errorf("FailedExecutions = %d", summary.FailedExecutions)
	}
	if summary.InjectedValues != 4 || summary.PayloadGUIDs != 3 {
		t.Errorf("unexpected counts: %+v", summary)
	}
	if summary.ByScenario["xss /a"] != 2 || summary.ByScenario["sqli /b"] != 1 || len(summary.ByScenario) != 2 {
		t.Errorf("ByScenario = %v", summary.ByScenario)
	}
}
