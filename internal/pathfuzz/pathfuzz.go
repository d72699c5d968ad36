// Package pathfuzz mutates URL path templates containing _CAKE_FUZZER_ placeholders.
package pathfuzz

import (
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/zigrin-security/cakefuzzer/internal/choice"
	"github.com/zigrin-security/cakefuzzer/internal/guid"
	"github.com/zigrin-security/cakefuzzer/internal/logging"
	"github.com/zigrin-security/cakefuzzer/pkg/types"
)

// PlaceholderPrefix starts every placeholder token
const PlaceholderPrefix = "_CAKE_FUZZER_"

// Pattern matches placeholder tokens
var Pattern = regexp.MustCompile(`(?i)` + PlaceholderPrefix + `[a-z0-9_]+`)

var nonWord = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// MaxFiller bounds the random integers used for non-injected placeholders
const MaxFiller = 100

// Placeholder builds a placeholder token for a parameter name
func Placeholder(name string) string {
	name = strings.Trim(nonWord.ReplaceAllString(name, "_"), "_")
	if name == "" {
		name = "PARAM"
	}
	return PlaceholderPrefix + strings.ToUpper(name)
}

// Placeholders returns every placeholder token in template, in order
func Placeholders(template string) []string {
	return Pattern.FindAllString(template, -1)
}

// Fuzzer replaces placeholders with one payload and neutral fillers
type Fuzzer struct {
	pool        []string
	guids       *guid.Registry
	src         choice.Source
	probability int
	fillers     []string
	logger      *slog.Logger
}

// Option configures a Fuzzer
type Option func(*Fuzzer)

// WithProbability sets the chance, 0 to 100, that one placeholder receives a payload
func WithProbability(p int) Option {
	return func(f *Fuzzer) {
		f.probability = p
	}
}

// WithFillers replaces random integer fillers with picks from fillers.
// An empty string stands for an absent value.
func WithFillers(fillers []string) Option {
	return func(f *Fuzzer) {
		f.fillers = fillers
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fuzzer) {
		f.logger = logger
	}
}

// New creates a path fuzzer drawing payloads from pool.
// The GUID registry should be the one used by the execution's collections.
func New(pool []string, guids *guid.Registry, src choice.Source, opts ...Option) *Fuzzer {
	f := &Fuzzer{
		pool:        pool,
		guids:       guids,
		src:         src,
		probability: types.DefaultPathProbability,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.src == nil {
		f.src = choice.NewSource(0)
	}
	if f.guids == nil {
		f.guids = guid.NewRegistry("", f.src)
	}
	if f.logger == nil {
		f.logger = logging.Nop()
	}
	return f
}

// FuzzPath fills every placeholder of template. With the configured probability one
// placeholder receives a payload; all others receive the same filler. When a GUID
// marker is configured the payload is URL encoded around the marker, and markers are
// expanded last so that their tokens are never encoded.
// A template without placeholders is returned unchanged.
func (f *Fuzzer) FuzzPath(template string) (string, error) {
	parts := Placeholders(template)
	if len(parts) == 0 {
		return template, nil
	}

	inject := ""
	if choice.Chance(f.src, f.probability) {
		inject, _ = choice.Pick(f.src, parts)
	}

	payload := ""
	if inject != "" {
		p, err := choice.Pick(f.src, f.pool)
		if err != nil {
			return "", &types.MisconfigurationError{Component: "path", Err: types.ErrNoPayloads}
		}
		payload = f.encode(p)
	}

	filler := f.filler()

	path := Pattern.ReplaceAllStringFunc(template, func(match string) string {
		if match == inject {
			return payload
		}
		return filler
	})

	path = f.guids.Substitute(path)

	f.logger.Debug("path fuzzed", "template", template, "path", path, "injected", inject)
	return path, nil
}

func (f *Fuzzer) encode(payload string) string {
	phrase := f.guids.Phrase()
	if phrase == "" {
		return payload
	}
	segments := strings.Split(payload, phrase)
	for i, s := range segments {
		segments[i] = url.QueryEscape(s)
	}
	return strings.Join(segments, phrase)
}

func (f *Fuzzer) filler() string {
	if len(f.fillers) > 0 {
		v, _ := choice.Pick(f.src, f.fillers)
		return v
	}
	return strconv.Itoa(f.src.Intn(MaxFiller + 1))
}
