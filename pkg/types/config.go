package types

import (
	"time"
)

// Config represents the application configuration
type Config struct {
	// LLM provider used for payload suggestions
	Provider ProviderConfig `yaml:"provider" mapstructure:"provider"`

	// Defaults applied to every execution
	Execution ExecutionDefaults `yaml:"execution" mapstructure:"execution"`

	// Batch run settings
	Run RunSettings `yaml:"run" mapstructure:"run"`

	// Output settings
	Output OutputSettings `yaml:"output" mapstructure:"output"`

	// Logging settings
	Logging LoggingSettings `yaml:"logging" mapstructure:"logging"`
}

// ProviderConfig holds LLM provider configuration
type ProviderConfig struct {
	Name        string  `yaml:"name" mapstructure:"name"` // openai, or empty to disable
	APIKey      string  `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"` // OpenAI-compatible endpoints
	Model       string  `yaml:"model" mapstructure:"model"`
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
}

// ExecutionDefaults holds values used when a scenario does not set them
type ExecutionDefaults struct {
	Probability     int            `yaml:"probability" mapstructure:"probability"`           // 0-100, independent mode
	PathProbability int            `yaml:"path_probability" mapstructure:"path_probability"` // 0-100
	GUIDPhrase      string         `yaml:"payload_guid_phrase" mapstructure:"payload_guid_phrase"`
	KindWeights     map[string]int `yaml:"kind_weights" mapstructure:"kind_weights"`
	Fillers         []string       `yaml:"fillers" mapstructure:"fillers"`
}

// RunSettings holds batch run configuration
type RunSettings struct {
	Iterations  int           `yaml:"iterations" mapstructure:"iterations"`
	Concurrency int           `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimit   float64       `yaml:"rate_limit" mapstructure:"rate_limit"` // executions per second, 0 = unlimited
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`       // wall-clock bound of one execution
	Scenarios   string        `yaml:"scenarios" mapstructure:"scenarios"`   // directory of strategy definitions
}

// OutputSettings holds output configuration
type OutputSettings struct {
	Format    string `yaml:"format" mapstructure:"format"` // json, text, markdown
	File      string `yaml:"file" mapstructure:"file"`
	AccessLog string `yaml:"access_log" mapstructure:"access_log"` // JSON array of every decision
	Verbose   bool   `yaml:"verbose" mapstructure:"verbose"`
	Color     bool   `yaml:"color" mapstructure:"color"`
}

// LoggingSettings holds structured logging configuration
type LoggingSettings struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // text, json
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderConfig{
			Model:       "gpt-4o",
			MaxTokens:   2048,
			Temperature: 0.7,
		},
		Execution: ExecutionDefaults{
			Probability:     DefaultProbability,
			PathProbability: DefaultPathProbability,
			GUIDPhrase:      DefaultGUIDPhrase,
		},
		Run: RunSettings{
			Iterations:  10,
			Concurrency: 4,
			RateLimit:   0,
			Timeout:     10 * time.Second,
		},
		Output: OutputSettings{
			Format: "json",
			Color:  true,
		},
		Logging: LoggingSettings{
			Level:  "info",
			Format: "text",
		},
	}
}
