package types

import (
	"time"
)

// ExecutionResult is what one execution hands to the reporting layer
type ExecutionResult struct {
	ExecutionID  string                    `json:"execution_id" yaml:"execution_id"`
	Scenario     string                    `json:"scenario,omitempty" yaml:"scenario,omitempty"`
	Iteration    int                       `json:"iteration,omitempty" yaml:"iteration,omitempty"`
	Method       string                    `json:"method" yaml:"method"`
	Path         string                    `json:"path" yaml:"path"`
	Groups       map[string]map[string]any `json:"groups" yaml:"groups"`
	PayloadGUIDs []string                  `json:"payload_guids" yaml:"payload_guids"`
	FilesRead    []string                  `json:"files_read,omitempty" yaml:"files_read,omitempty"`
	Decisions    int                       `json:"decisions" yaml:"decisions"`
	Injected     int                       `json:"injected" yaml:"injected"`
	ExecTime     float64                   `json:"exec_time" yaml:"exec_time"` // seconds
	Error        string                    `json:"error,omitempty" yaml:"error,omitempty"`
}

// RunResult contains the results of a batch of executions
type RunResult struct {
	RunID      string            `json:"run_id" yaml:"run_id"`
	StartTime  time.Time         `json:"start_time" yaml:"start_time"`
	EndTime    time.Time         `json:"end_time" yaml:"end_time"`
	Duration   time.Duration     `json:"duration" yaml:"duration"`
	Executions []ExecutionResult `json:"executions" yaml:"executions"`
	Summary    *RunSummary       `json:"summary" yaml:"summary"`
	Config     *RunConfig        `json:"config,omitempty" yaml:"config,omitempty"`
}

// RunSummary provides statistics about a run
type RunSummary struct {
	TotalExecutions  int            `json:"total_executions" yaml:"total_executions"`
	FailedExecutions int            `json:"failed_executions" yaml:"failed_executions"`
	InjectedValues   int            `json:"injected_values" yaml:"injected_values"`
	PayloadGUIDs     int            `json:"payload_guids" yaml:"payload_guids"`
	ByScenario       map[string]int `json:"by_scenario" yaml:"by_scenario"`
}

// RunConfig captures the configuration used for the run
type RunConfig struct {
	Scenarios   string  `json:"scenarios" yaml:"scenarios"`
	Iterations  int     `json:"iterations" yaml:"iterations"`
	Concurrency int     `json:"concurrency" yaml:"concurrency"`
	RateLimit   float64 `json:"rate_limit" yaml:"rate_limit"`
	Timeout     int     `json:"timeout" yaml:"timeout"`
	Provider    string  `json:"provider,omitempty" yaml:"provider,omitempty"`
}

// NewRunSummary creates a summary from execution results
func NewRunSummary(executions []ExecutionResult) *RunSummary {
	summary := &RunSummary{
		TotalExecutions: len(executions),
		ByScenario:      make(map[string]int),
	}

	for _, e := range executions {
		if e.Error != "" {
			summary.FailedExecutions++
		}
		summary.InjectedValues += e.Injected
		summary.PayloadGUIDs += len(e.PayloadGUIDs)
		if e.Scenario != "" {
			summary.ByScenario[e.Scenario]++
		}
	}

	return summary
}
