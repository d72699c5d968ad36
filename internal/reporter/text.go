package reporter

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/zigrin-security/cakefuzzer/pkg/types"
)

// TextReporter generates plain text reports for the terminal
type TextReporter struct {
	options ReportOptions

	bold    *color.Color
	failed  *color.Color
	payload *color.Color
	dim     *color.Color
}

// NewTextReporter creates a new text reporter
func NewTextReporter(options ReportOptions) *TextReporter {
	r := &TextReporter{
		options: options,
		bold:    color.New(color.Bold),
		failed:  color.New(color.FgRed),
		payload: color.New(color.FgYellow),
		dim:     color.New(color.FgHiBlack),
	}
	for _, c := range []*color.Color{r.bold, r.failed, r.payload, r.dim} {
		if options.NoColor {
			c.DisableColor()
		} else {
			c.EnableColor()
		}
	}
	return r
}

// Format returns the format name
func (r *TextReporter) Format() string {
	return "text"
}

// Extension returns the file extension
func (r *TextReporter) Extension() string {
	return "txt"
}

// Generate generates a text report
func (r *TextReporter) Generate(result *types.RunResult) ([]byte, error) {
	var buf strings.Builder
	if err := r.Write(result, &buf); err != nil {
		return nil, err
	}
	return []byte(buf.String()), nil
}

// Write writes the text report to a writer
func (r *TextReporter) Write(result *types.RunResult, w io.Writer) error {
	r.writeHeader(w, result)
	r.writeSummary(w, result)
	if r.options.Verbose {
		r.writeExecutions(w, result)
	} else {
		r.writeFailures(w, result)
	}
	r.writeFooter(w, result)
	return nil
}

func (r *TextReporter) writeHeader(w io.Writer, result *types.RunResult) {
	v := r.options.Version
	if v == "" {
		v = "unknown"
	}
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Starting CakeFuzzer %s\n", v)
	fmt.Fprintf(w, "Run %s started at %s\n", result.RunID, result.StartTime.Format("2006-01-02 15:04 MST"))
	if result.Config != nil && result.Config.Scenarios != "" {
		fmt.Fprintf(w, "Scenarios from %s, %d iterations each\n", result.Config.Scenarios, result.Config.Iterations)
	}
	fmt.Fprintf(w, "\n")
}

func (r *TextReporter) writeSummary(w io.Writer, result *types.RunResult) {
	s := result.Summary
	if s == nil {
		s = types.NewRunSummary(result.Executions)
	}

	r.bold.Fprintf(w, "RUN SUMMARY\n")
	fmt.Fprintf(w, "%-20s %d\n", "EXECUTIONS", s.TotalExecutions)
	if s.FailedExecutions > 0 {
		r.failed.Fprintf(w, "%-20s %d\n", "FAILED", s.FailedExecutions)
	} else {
		fmt.Fprintf(w, "%-20s %d\n", "FAILED", 0)
	}
	fmt.Fprintf(w, "%-20s %d\n", "INJECTED VALUES", s.InjectedValues)
	fmt.Fprintf(w, "%-20s %d\n", "PAYLOAD GUIDS", s.PayloadGUIDs)
	fmt.Fprintf(w, "\n")

	if len(s.ByScenario) == 0 {
		return
	}

	names := make([]string, 0, len(s.ByScenario))
	for name := range s.ByScenario {
		names = append(names, name)
	}
	sort.Strings(names)

	r.bold.Fprintf(w, "%-50s %s\n", "SCENARIO", "EXECUTIONS")
	for _, name := range names {
		fmt.Fprintf(w, "%-50s %d\n", TruncateString(name, 50), s.ByScenario[name])
	}
	fmt.Fprintf(w, "\n")
}

func (r *TextReporter) writeFailures(w io.Writer, result *types.RunResult) {
	var failed []types.ExecutionResult
	for _, e := range result.Executions {
		if e.Error != "" {
			failed = append(failed, e)
		}
	}
	if len(failed) == 0 {
		return
	}

	r.bold.Fprintf(w, "FAILED EXECUTIONS\n")
	fmt.Fprintf(w, "%s\n", strings.Repeat("-", 70))
	for _, e := range failed {
		r.writeExecution(w, e)
	}
}

func (r *TextReporter) writeExecutions(w io.Writer, result *types.RunResult) {
	r.bold.Fprintf(w, "EXECUTIONS\n")
	fmt.Fprintf(w, "%s\n", strings.Repeat("-", 70))
	for _, e := range result.Executions {
		r.writeExecution(w, e)
	}
}

func (r *TextReporter) writeExecution(w io.Writer, e types.ExecutionResult) {
	tag := "[OK]"
	if e.Error != "" {
		tag = r.failed.Sprint("[FAILED]")
	}

	fmt.Fprintf(w, "%s %s %s\n", tag, e.Method, r.payload.Sprint(e.Path))
	if e.Scenario != "" {
		fmt.Fprintf(w, "    Scenario:   %s #%d\n", e.Scenario, e.Iteration)
	}
	fmt.Fprintf(w, "    Execution:  %s\n", r.dim.Sprint(e.ExecutionID))
	fmt.Fprintf(w, "    Decisions:  %d (%d injected)\n", e.Decisions, e.Injected)
	if len(e.PayloadGUIDs) > 0 {
		fmt.Fprintf(w, "    GUIDs:      %s\n", strings.Join(e.PayloadGUIDs, ", "))
	}
	if e.Error != "" {
		fmt.Fprintf(w, "    Error:      %s\n", TruncateString(e.Error, 200))
	}

	if r.options.Verbose && r.options.IncludeGroups {
		for _, name := range types.Groups {
			values, ok := e.Groups[name]
			if !ok || len(values) == 0 {
				continue
			}
			fmt.Fprintf(w, "    %s:\n", name)
			keys := make([]string, 0, len(values))
			for k := range values {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(w, "      %s = %s\n", k, TruncateString(fmt.Sprint(values[k]), 100))
			}
		}
	}
	fmt.Fprintf(w, "\n")
}

func (r *TextReporter) writeFooter(w io.Writer, result *types.RunResult) {
	total := len(result.Executions)
	if result.Summary != nil {
		total = result.Summary.TotalExecutions
	}
	fmt.Fprintf(w, "%s\n", strings.Repeat("-", 70))
	fmt.Fprintf(w, "Run completed at %s\n", result.EndTime.Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(w, "CakeFuzzer done: %d executions in %s\n", total, formatDuration(result.Duration))
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		mins := int(d.Minutes())
		secs := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%02ds", mins, secs)
	}
	hours := int(d.Hours())
	mins := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%02dm", hours, mins)
}
