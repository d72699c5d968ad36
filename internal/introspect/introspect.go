// Package introspect enumerates the routes of a target application
package introspect

import (
	"context"
	"errors"
	"regexp"
	"slices"
	"strings"

	"github.com/zigrin-security/cakefuzzer/internal/pathfuzz"
)

// Errors
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrParseFailed  = errors.New("failed to parse input")
)

// Route is one path the application serves
type Route struct {
	Method      string   `json:"method" yaml:"method"`
	Template    string   `json:"template" yaml:"template"` // as declared, e.g. /users/{id}
	Path        string   `json:"path" yaml:"path"`         // with fuzzing placeholders
	OperationID string   `json:"operation_id,omitempty" yaml:"operation_id,omitempty"`
	Query       []string `json:"query,omitempty" yaml:"query,omitempty"`
	Headers     []string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Cookies     []string `json:"cookies,omitempty" yaml:"cookies,omitempty"`
}

// ApplicationIntrospector lists the routes of an application. It is called
// once per run, independently of the fuzzing collections.
type ApplicationIntrospector interface {
	Routes(ctx context.Context) ([]Route, error)
}

// StaticIntrospector serves a fixed route list
type StaticIntrospector []Route

// Routes returns a copy of the list
func (s StaticIntrospector) Routes(ctx context.Context) ([]Route, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return slices.Clone(s), nil
}

var pathParam = regexp.MustCompile(`\{([^{}]+)\}`)

// ToTemplate turns {name} path parameters into fuzzing placeholders
func ToTemplate(path string) string {
	return pathParam.ReplaceAllStringFunc(NormalizePath(path), func(m string) string {
		return pathfuzz.Placeholder(m[1 : len(m)-1])
	})
}

// NormalizePath normalizes a URL path
func NormalizePath(path string) string {
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if path == "/" {
		return path
	}
	return strings.TrimSuffix(path, "/")
}

// Templates returns the unique fuzzing paths of routes in their first-seen order
func Templates(routes []Route) []string {
	seen := make(map[string]bool)
	var paths []string
	for _, r := range routes {
		if !seen[r.Path] {
			seen[r.Path] = true
			paths = append(paths, r.Path)
		}
	}
	return paths
}
