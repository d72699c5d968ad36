// Package reporter provides output formatting for run results
package reporter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/zigrin-security/cakefuzzer/pkg/types"
)

// Reporter interface for generating reports
type Reporter interface {
	// Generate generates a report from run results
	Generate(result *types.RunResult) ([]byte, error)

	// Write writes the report to a writer
	Write(result *types.RunResult, w io.Writer) error

	// Format returns the report format name
	Format() string

	// Extension returns the file extension for this format
	Extension() string
}

// NewReporter creates a reporter based on format
func NewReporter(format string, options ReportOptions) (Reporter, error) {
	switch strings.ToLower(format) {
	case "json":
		return NewJSONReporter(options), nil
	case "text", "txt":
		return NewTextReporter(options), nil
	case "markdown", "md":
		return NewMarkdownReporter(options), nil
	default:
		return nil, fmt.Errorf("unsupported report format: %s", format)
	}
}

// ReportOptions contains options for report generation
type ReportOptions struct {
	IncludeGroups bool   // Include the group snapshots of every execution
	IncludeConfig bool   // Include run configuration
	Verbose       bool   // List every execution in text reports
	NoColor       bool   // Disable colors in text reports
	Title         string // Custom report title
	Version       string
}

// DefaultOptions returns default report options
func DefaultOptions() ReportOptions {
	return ReportOptions{
		IncludeGroups: true,
		IncludeConfig: true,
		Title:         "CakeFuzzer Run Report",
	}
}

// WriteToFile writes a report to a file
func WriteToFile(reporter Reporter, result *types.RunResult, filename string) error {
	dir := filepath.Dir(filename)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	return reporter.Write(result, file)
}

// TruncateString truncates a string to max length
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// EscapeMarkdown escapes Markdown special characters
func EscapeMarkdown(s string) string {
	chars := []string{"\\", "`", "*", "_", "{", "}", "[", "]", "(", ")", "#", "+", "-", ".", "!", "|", "<", ">"}
	for _, c := range chars {
		s = strings.ReplaceAll(s, c, "\\"+c)
	}
	return s
}
