package reporter

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/zigrin-security/cakefuzzer/pkg/types"
)

// MarkdownReporter generates Markdown reports
type MarkdownReporter struct {
	options ReportOptions
}

// NewMarkdownReporter creates a new Markdown reporter
func NewMarkdownReporter(options ReportOptions) *MarkdownReporter {
	return &MarkdownReporter{options: options}
}

// Format returns the format name
func (r *MarkdownReporter) Format() string {
	return "markdown"
}

// Extension returns the file extension
func (r *MarkdownReporter) Extension() string {
	return "md"
}

// Generate generates a Markdown report
func (r *MarkdownReporter) Generate(result *types.RunResult) ([]byte, error) {
	var buf strings.Builder
	if err := r.Write(result, &buf); err != nil {
		return nil, err
	}
	return []byte(buf.String()), nil
}

// Write writes the Markdown report to a writer
func (r *MarkdownReporter) Write(result *types.RunResult, w io.Writer) error {
	title := r.options.Title
	if title == "" {
		title = DefaultOptions().Title
	}
	summary := result.Summary
	if summary == nil {
		summary = types.NewRunSummary(result.Executions)
	}

	fmt.Fprintf(w, "# %s\n\n", title)

	fmt.Fprintf(w, "## Summary\n\n")
	fmt.Fprintf(w, "| Metric | Value |\n")
	fmt.Fprintf(w, "|--------|-------|\n")
	fmt.Fprintf(w, "| Run ID | `%s` |\n", result.RunID)
	fmt.Fprintf(w, "| Start Time | %s |\n", result.StartTime.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "| End Time | %s |\n", result.EndTime.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "| Duration | %s |\n", result.Duration)
	fmt.Fprintf(w, "| Executions | %d |\n", summary.TotalExecutions)
	fmt.Fprintf(w, "| Failed | %d |\n", summary.FailedExecutions)
	fmt.Fprintf(w, "| Injected Values | %d |\n", summary.InjectedValues)
	fmt.Fprintf(w, "| Payload GUIDs | %d |\n", summary.PayloadGUIDs)
	fmt.Fprintf(w, "\n")

	if len(summary.ByScenario) > 0 {
		names := make([]string, 0, len(summary.ByScenario))
		for name := range summary.ByScenario {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Fprintf(w, "### Executions by Scenario\n\n")
		fmt.Fprintf(w, "| Scenario | Executions |\n")
		fmt.Fprintf(w, "|----------|------------|\n")
		for _, name := range names {
			fmt.Fprintf(w, "| %s | %d |\n", EscapeMarkdown(name), summary.ByScenario[name])
		}
		fmt.Fprintf(w, "\n")
	}

	if len(result.Executions) == 0 {
		fmt.Fprintf(w, "No executions were run.\n")
		return nil
	}

	fmt.Fprintf(w, "## Executions\n\n")
	fmt.Fprintf(w, "| Method | Path | Injected | GUIDs | Error |\n")
	fmt.Fprintf(w, "|--------|------|----------|-------|-------|\n")
	for _, e := range result.Executions {
		fmt.Fprintf(w, "| %s | `%s` | %d/%d | %s | %s |\n",
			e.Method,
			strings.ReplaceAll(e.Path, "`", "'"),
			e.Injected, e.Decisions,
			strings.Join(e.PayloadGUIDs, ", "),
			EscapeMarkdown(TruncateString(e.Error, 80)))
	}

	return nil
}
