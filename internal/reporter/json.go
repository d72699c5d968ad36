package reporter

import (
	"encoding/json"
	"io"
	"time"

	"github.com/zigrin-security/cakefuzzer/pkg/types"
)

// JSONReporter generates JSON reports
type JSONReporter struct {
	options ReportOptions
}

// NewJSONReporter creates a new JSON reporter
func NewJSONReporter(options ReportOptions) *JSONReporter {
	return &JSONReporter{options: options}
}

// Format returns the format name
func (r *JSONReporter) Format() string {
	return "json"
}

// Extension returns the file extension
func (r *JSONReporter) Extension() string {
	return "json"
}

// Generate generates a JSON report
func (r *JSONReporter) Generate(result *types.RunResult) ([]byte, error) {
	return json.MarshalIndent(r.prepareOutput(result), "", "  ")
}

// Write writes the JSON report to a writer
func (r *JSONReporter) Write(result *types.RunResult, w io.Writer) error {
	data, err := r.Generate(result)
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// prepareOutput drops what the options exclude
func (r *JSONReporter) prepareOutput(result *types.RunResult) any {
	if r.options.IncludeGroups && r.options.IncludeConfig {
		return result
	}

	output := &JSONOutput{
		RunID:     result.RunID,
		StartTime: result.StartTime.Format(time.RFC3339),
		EndTime:   result.EndTime.Format(time.RFC3339),
		Duration:  result.Duration.String(),
		Summary:   result.Summary,
	}

	for _, e := range result.Executions {
		if !r.options.IncludeGroups {
			e.Groups = nil
		}
		output.Executions = append(output.Executions, e)
	}

	if r.options.IncludeConfig {
		output.Config = result.Config
	}

	return output
}

// JSONOutput is the filtered JSON output structure
type JSONOutput struct {
	RunID      string                  `json:"run_id"`
	StartTime  string                  `json:"start_time"`
	EndTime    string                  `json:"end_time"`
	Duration   string                  `json:"duration"`
	Summary    *types.RunSummary       `json:"summary"`
	Executions []types.ExecutionResult `json:"executions"`
	Config     *types.RunConfig        `json:"config,omitempty"`
}
