// Package execution wires the injectable collections of a single fuzzing execution.
//
// A Context owns everything that must not outlive one execution: the random
// source, the GUID registry, the single target latch and the input groups.
// Build a new Context for every execution and drop it afterwards.
package execution

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/zigrin-security/cakefuzzer/internal/choice"
	"github.com/zigrin-security/cakefuzzer/internal/collection"
	"github.com/zigrin-security/cakefuzzer/internal/guid"
	"github.com/zigrin-security/cakefuzzer/internal/logging"
	"github.com/zigrin-security/cakefuzzer/internal/pathfuzz"
	"github.com/zigrin-security/cakefuzzer/internal/policy"
	"github.com/zigrin-security/cakefuzzer/pkg/types"
)

// Methods chosen from when the request method is not supplied
var Methods = []string{"GET", "POST"}

// AcceptTypes chosen from when the Accept header is not supplied
var AcceptTypes = []string{
	"application/json",
	"application/xml",
	"text/csv",
	"text/html",
	"text/plain",
}

// HashEqualsProbability is the chance that HashEquals reports a match
const HashEqualsProbability = 50

// AccessSink receives every decision made during an execution
type AccessSink interface {
	Record(executionID string, a collection.Access) error
}

// Context is the state of one execution
type Context struct {
	id        string
	scenario  string
	iteration int

	config *types.ExecutionConfig
	src    choice.Source
	guids  *guid.Registry
	latch  *policy.Latch
	pool   []string

	method string
	path   string
	groups map[string]collection.Accessor

	decisions int
	injected  int

	sink   AccessSink
	logger *slog.Logger

	start time.Time
	end   time.Time
}

// Option configures a Context
type Option func(*Context)

// WithSource overrides the random source seeded from the configuration
func WithSource(src choice.Source) Option {
	return func(c *Context) {
		c.src = src
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Context) {
		c.logger = logger
	}
}

// WithAccessSink forwards decisions to sink
func WithAccessSink(sink AccessSink) Option {
	return func(c *Context) {
		c.sink = sink
	}
}

// WithScenario labels the execution in its result
func WithScenario(name string, iteration int) Option {
	return func(c *Context) {
		c.scenario = name
		c.iteration = iteration
	}
}

// New validates cfg, fuzzes the path and builds the input groups
func New(cfg *types.ExecutionConfig, opts ...Option) (*Context, error) {
	if err := types.ValidateExecutionConfig(cfg); err != nil {
		return nil, err
	}

	c := &Context{
		id:     uuid.NewString(),
		config: cfg,
		latch:  policy.NewLatch(),
		groups: make(map[string]collection.Accessor, len(types.Groups)),
		start:  time.Now(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.src == nil {
		c.src = choice.NewSource(cfg.Seed)
	}
	if c.logger == nil {
		c.logger = logging.Nop()
	}
	c.logger = c.logger.With("execution", c.id)

	c.pool = union(cfg.Payloads, cfg.KnownKeywords)
	c.guids = guid.NewRegistry(cfg.Phrase(), c.src)

	fuzzer := pathfuzz.New(c.pool, c.guids, c.src,
		pathfuzz.WithProbability(cfg.EffectivePathProbability()),
		pathfuzz.WithFillers(cfg.Fillers),
		pathfuzz.WithLogger(c.logger),
	)
	path, err := fuzzer.FuzzPath(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to fuzz path: %w", err)
	}
	c.path = path

	originals := c.prepareOriginals()
	if err := c.prepareRequest(originals); err != nil {
		return nil, err
	}
	c.buildGroups(originals)

	c.logger.Debug("execution prepared", "method", c.method, "path", c.path, "payloads", len(c.pool))
	return c, nil
}

// ID returns the execution ID
func (c *Context) ID() string {
	return c.id
}

// Method returns the request method of this execution
func (c *Context) Method() string {
	return c.method
}

// Path returns the fuzzed path
func (c *Context) Path() string {
	return c.path
}

// Payloads returns the effective payload pool
func (c *Context) Payloads() []string {
	return slices.Clone(c.pool)
}

// Group returns the accessor of an input group
func (c *Context) Group(name string) (collection.Accessor, bool) {
	a, ok := c.groups[name]
	return a, ok
}

// GUIDs returns the payload GUIDs issued so far
func (c *Context) GUIDs() []string {
	return c.guids.Issued()
}

// Latch returns the single target latch shared by all groups
func (c *Context) Latch() *policy.Latch {
	return c.latch
}

// HashEquals stands in for constant time hash comparison in the application,
// reporting a match at random so both branches get exercised.
func (c *Context) HashEquals(string, string) bool {
	return choice.Chance(c.src, HashEqualsProbability)
}

// Observe counts decisions and forwards them to the access sink
func (c *Context) Observe(a collection.Access) {
	switch a.Outcome {
	case collection.OutcomeInjected:
		c.decisions++
		c.injected++
	case collection.OutcomeSkipped:
		c.decisions++
	}
	if c.sink != nil {
		if err := c.sink.Record(c.id, a); err != nil {
			c.logger.Warn("failed to record access", "error", err)
		}
	}
}

// Run lets target exercise the input groups and returns the result.
// A failing target still yields a result describing the partial execution.
func (c *Context) Run(ctx context.Context, target Target) (*types.ExecutionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	err := target.Run(ctx, c)
	result := c.Result()
	if err != nil {
		result.Error = err.Error()
		return result, fmt.Errorf("execution %s failed: %w", c.id, err)
	}
	return result, nil
}

// Result snapshots every group and stops the execution timer
func (c *Context) Result() *types.ExecutionResult {
	c.end = time.Now()

	groups := make(map[string]map[string]any, len(c.groups))
	for _, name := range types.Groups {
		if a, ok := c.groups[name]; ok {
			groups[name] = a.Snapshot()
		}
	}

	var filesRead []string
	if files, ok := c.groups[types.GroupFiles].(*collection.AccessLog); ok {
		filesRead = files.Accessed()
	}

	return &types.ExecutionResult{
		ExecutionID:  c.id,
		Scenario:     c.scenario,
		Iteration:    c.iteration,
		Method:       c.method,
		Path:         c.path,
		Groups:       groups,
		PayloadGUIDs: c.guids.Issued(),
		FilesRead:    filesRead,
		Decisions:    c.decisions,
		Injected:     c.injected,
		ExecTime:     c.end.Sub(c.start).Seconds(),
	}
}

func (c *Context) prepareOriginals() map[string]map[string]any {
	originals := make(map[string]map[string]any, len(types.Groups))
	for _, g := range types.Groups {
		originals[g] = make(map[string]any)
		maps.Copy(originals[g], c.config.Originals[g])
	}

	server := originals[types.GroupServer]
	if c.config.Path != "" {
		for _, k := range []string{"PATH_INFO", "REQUEST_URI", "QUERY_STRING"} {
			server[k] = c.path
		}
	}
	return originals
}

func (c *Context) prepareRequest(originals map[string]map[string]any) error {
	server := originals[types.GroupServer]

	method, _ := server["REQUEST_METHOD"].(string)
	if method == "" {
		var err error
		if len(c.config.MethodTable) > 0 {
			method, err = choice.PickFromTable(c.src, choice.TableFromMap(c.config.MethodTable))
		} else {
			method, err = choice.Pick(c.src, Methods)
		}
		if err != nil {
			return fmt.Errorf("failed to choose request method: %w", err)
		}
		server["REQUEST_METHOD"] = method
		if method == "POST" {
			originals[types.GroupBody]["_method"] = "POST"
		}
	}
	c.method = method

	if accept, _ := server["HTTP_ACCEPT"].(string); accept == "" {
		accept, _ = choice.Pick(c.src, AcceptTypes)
		server["HTTP_ACCEPT"] = accept
	}
	return nil
}

func (c *Context) buildGroups(originals map[string]map[string]any) {
	mode := policy.Independent
	if c.config.OneParamPerPayload {
		mode = policy.SingleTarget
	}

	var targets map[string]string
	if len(c.config.Injectable) > 0 {
		targets = c.config.Injectable
	}

	for _, g := range types.Groups {
		if g == types.GroupFiles {
			c.groups[g] = collection.NewAccessLog(g, c, c.logger)
			continue
		}

		if c.config.Excluded(g) || (g == types.GroupBody && c.method != "POST") {
			c.groups[g] = collection.MapFrom(originals[g])
			continue
		}

		pc := policy.Config{
			Mode:        mode,
			Probability: c.config.Probability,
			SkipKeys:    c.config.FuzzSkipKeys[g],
			Targets:     targets,
			Group:       g,
			Latch:       c.latch,
			Source:      c.src,
		}
		opts := []collection.Option{
			collection.WithOriginal(originals[g]),
			collection.WithPayloads(c.pool),
			collection.WithKindWeights(c.config.KindWeights),
			collection.WithGUIDs(c.guids),
			collection.WithSource(c.src),
			collection.WithObserver(c),
			collection.WithLogger(c.logger),
		}
		if g == types.GroupServer {
			pc.AcceptedKeys = policy.DefaultAcceptedKeys
			opts = append(opts,
				collection.WithPrefix(types.HeaderPrefix),
				collection.WithVisibleKeys(policy.DefaultAcceptedKeys...),
			)
		}

		c.groups[g] = collection.New(g, append(opts, collection.WithPolicy(policy.New(pc)))...)
	}
}

func union(lists ...[]string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, list := range lists {
		for _, s := range list {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}
