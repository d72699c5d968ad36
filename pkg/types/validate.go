package types

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/zigrin-security/cakefuzzer/internal/choice"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation error: %s: %s (value: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")
	for _, err := range e {
		sb.WriteString(fmt.Sprintf("  - %s: %s\n", err.Field, err.Message))
	}
	return sb.String()
}

// HasErrors returns true if there are any validation errors
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// ConfigValidator validates configuration settings
type ConfigValidator struct {
	errors ValidationErrors
}

// NewConfigValidator creates a new config validator
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{}
}

// Validate performs comprehensive validation of the config
func (v *ConfigValidator) Validate(config *Config) ValidationErrors {
	v.errors = nil

	v.validateExecutionDefaults(config.Execution)
	v.validateRunSettings(config.Run)
	v.validateProviderSettings(config.Provider)
	v.validateOutputSettings(config.Output)
	v.validateLoggingSettings(config.Logging)

	return v.errors
}

// ValidateExecution validates a single execution configuration
func (v *ConfigValidator) ValidateExecution(config *ExecutionConfig) ValidationErrors {
	v.errors = nil

	if len(config.Payloads) == 0 && len(config.KnownKeywords) == 0 {
		v.addError("payloads", "at least one payload is required", len(config.Payloads))
	}

	v.validateProbability("probability", config.Probability)
	if config.PathProbability != nil {
		v.validateProbability("path_probability", *config.PathProbability)
	}

	for group := range config.Originals {
		v.validateGroup("originals", group)
	}
	for group := range config.FuzzSkipKeys {
		v.validateGroup("fuzz_skip_keys", group)
	}
	for group := range config.Injectable {
		v.validateGroup("injectable", group)
	}
	for _, group := range config.GlobalExclude {
		v.validateGroup("global_exclude", group)
	}

	if len(config.Injectable) > 0 && !config.OneParamPerPayload {
		v.addError("injectable", "only meaningful with one_param_per_payload", config.Injectable)
	}

	if len(config.MethodTable) > 0 {
		if err := choice.ValidateTable(choice.TableFromMap(config.MethodTable)); err != nil {
			v.addError("method_table", err.Error(), config.MethodTable)
		}
	}

	for i, access := range config.Accesses {
		v.validateGroup(fmt.Sprintf("accesses[%d].group", i), access.Group)
		switch access.Op {
		case "", OpGet, OpExists, OpSet, OpDelete, OpCount, OpIterate, OpKeys, OpKeyExists, OpHashEquals:
		case OpMerge:
			v.validateMerge(i, access)
		default:
			v.addError(fmt.Sprintf("accesses[%d].op", i), "unknown operation", access.Op)
		}
		if slices.Contains(KeyedOps, access.Op) && len(access.Keys) == 0 {
			v.addError(fmt.Sprintf("accesses[%d].keys", i), "operation requires at least one key", access.Op)
		}
	}

	return v.errors
}

func (v *ConfigValidator) validateMerge(i int, access Access) {
	field := fmt.Sprintf("accesses[%d].value", i)
	if access.Group == GroupFiles {
		v.addError(fmt.Sprintf("accesses[%d].group", i), "files cannot be merged into", access.Group)
	}
	sources, err := access.MergeSources()
	if err != nil {
		v.addError(field, err.Error(), access.Value)
		return
	}
	if len(sources) == 0 {
		v.addError(field, "merge needs at least one source group", access.Value)
	}
	for _, g := range sources {
		v.validateGroup(field, g)
	}
}

func (v *ConfigValidator) addError(field, message string, value interface{}) {
	v.errors = append(v.errors, ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	})
}

func (v *ConfigValidator) validateProbability(field string, p int) {
	if p < 0 || p > 100 {
		v.addError(field, "must be between 0 and 100", p)
	}
}

func (v *ConfigValidator) validateGroup(field, group string) {
	for _, g := range Groups {
		if g == group {
			return
		}
	}
	v.addError(field, "unknown input group", group)
}

func (v *ConfigValidator) validateExecutionDefaults(e ExecutionDefaults) {
	v.validateProbability("execution.probability", e.Probability)
	v.validateProbability("execution.path_probability", e.PathProbability)
}

func (v *ConfigValidator) validateRunSettings(r RunSettings) {
	if r.Iterations < 1 {
		v.addError("run.iterations", "must be at least 1", r.Iterations)
	}

	if r.Concurrency < 1 {
		v.addError("run.concurrency", "must be at least 1", r.Concurrency)
	}
	if r.Concurrency > 256 {
		v.addError("run.concurrency", "should not exceed 256", r.Concurrency)
	}

	if r.RateLimit < 0 {
		v.addError("run.rate_limit", "cannot be negative", r.RateLimit)
	}

	if r.Timeout < 0 {
		v.addError("run.timeout", "cannot be negative", r.Timeout)
	}
	if r.Timeout > 10*time.Minute {
		v.addError("run.timeout", "timeout exceeds 10 minutes", r.Timeout)
	}

	if r.Scenarios != "" {
		if _, err := os.Stat(r.Scenarios); err != nil {
			v.addError("run.scenarios", "path does not exist", r.Scenarios)
		}
	}
}

func (v *ConfigValidator) validateProviderSettings(p ProviderConfig) {
	if p.Name != "" {
		if p.Name != "openai" {
			v.addError("provider.name", "unknown provider", p.Name)
		}
		if p.APIKey == "" && p.BaseURL == "" {
			v.addError("provider.api_key", "required unless base_url points to a local endpoint", "")
		}
	}

	if p.MaxTokens < 0 {
		v.addError("provider.max_tokens", "cannot be negative", p.MaxTokens)
	}

	if p.Temperature < 0 || p.Temperature > 2 {
		v.addError("provider.temperature", "should be between 0 and 2", p.Temperature)
	}
}

func (v *ConfigValidator) validateOutputSettings(o OutputSettings) {
	validFormats := map[string]bool{
		"json": true, "text": true, "txt": true,
		"markdown": true, "md": true,
	}

	if o.Format != "" && !validFormats[o.Format] {
		v.addError("output.format", "unknown format", o.Format)
	}
}

func (v *ConfigValidator) validateLoggingSettings(l LoggingSettings) {
	switch strings.ToLower(l.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		v.addError("logging.level", "unknown level", l.Level)
	}

	switch l.Format {
	case "", "text", "json":
	default:
		v.addError("logging.format", "unknown format", l.Format)
	}
}

// ValidateConfig is a convenience function to validate a config
func ValidateConfig(config *Config) error {
	validator := NewConfigValidator()
	errors := validator.Validate(config)
	if errors.HasErrors() {
		return errors
	}
	return nil
}

// ValidateExecutionConfig is a convenience function to validate an execution config
func ValidateExecutionConfig(config *ExecutionConfig) error {
	validator := NewConfigValidator()
	errors := validator.ValidateExecution(config)
	if errors.HasErrors() {
		return errors
	}
	return nil
}

// ValidateInputFile validates an input file exists and is readable
func ValidateInputFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("input file does not exist: %s", path)
	}
	if err != nil {
		return fmt.Errorf("cannot access input file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("input path is a directory, not a file: %s", path)
	}
	return nil
}
