// Package collection implements the injectable input collections exposed to the
// application under test.
//
// A Collection looks like an ordinary key/value group (query parameters, cookies,
// headers) but decides on first access of every unknown key whether to return a
// fuzz payload. Decisions are remembered for the rest of the execution, and keys
// written by the application always take precedence over decided payloads.
package collection

import (
	"iter"
	"log/slog"
	"slices"
	"strings"

	"github.com/zigrin-security/cakefuzzer/internal/choice"
	"github.com/zigrin-security/cakefuzzer/internal/guid"
	"github.com/zigrin-security/cakefuzzer/internal/logging"
	"github.com/zigrin-security/cakefuzzer/internal/policy"
	"github.com/zigrin-security/cakefuzzer/pkg/types"
)

// Accessor is the surface application code uses to read and write an input group
type Accessor interface {
	Get(key string) (Value, error)
	Set(key string, v Value)
	Delete(key string)
	Exists(key string) (bool, error)
	All() iter.Seq2[string, any]
	Count() int
	Snapshot() map[string]any
}

var (
	_ Accessor = (*Collection)(nil)
	_ Accessor = (*Map)(nil)
	_ Accessor = (*AccessLog)(nil)
)

// Kind is the shape of a drawn payload
type Kind string

// Payload kinds
const (
	KindScalar Kind = "scalar"
	KindNested Kind = "nested"
	KindList   Kind = "list"
	KindPair   Kind = "pair"
)

// Kinds lists every payload kind in draw order
var Kinds = []Kind{KindScalar, KindNested, KindList, KindPair}

// DefaultKindWeights favours plain strings two to one
var DefaultKindWeights = map[string]int{
	string(KindScalar): 2,
	string(KindNested): 1,
	string(KindList):   1,
	string(KindPair):   1,
}

// Collection is an injectable input group
type Collection struct {
	name     string
	prefix   string
	visible  []string
	original *Map
	decided  *Map

	policy  *policy.Policy
	pool    []string
	weights []choice.Option[Kind]
	guids   *guid.Registry
	src     choice.Source

	observer Observer
	logger   *slog.Logger

	rawWeights map[string]int
}

// Option configures a Collection
type Option func(*Collection)

// WithPrefix scopes the collection to keys starting with prefix
func WithPrefix(prefix string) Option {
	return func(c *Collection) {
		c.prefix = prefix
	}
}

// WithVisibleKeys keeps unprefixed keys in the snapshot of a prefix scoped collection
func WithVisibleKeys(keys ...string) Option {
	return func(c *Collection) {
		c.visible = append(c.visible, keys...)
	}
}

// WithOriginal seeds the original values, ordered by key
func WithOriginal(values map[string]any) Option {
	return func(c *Collection) {
		for _, k := range sortedKeys(values) {
			c.original.Set(k, FromAny(values[k]))
		}
	}
}

// WithPayloads attaches the payload pool
func WithPayloads(payloads []string) Option {
	return func(c *Collection) {
		c.AddPayloads(payloads...)
	}
}

// WithPolicy sets the decision policy
func WithPolicy(p *policy.Policy) Option {
	return func(c *Collection) {
		c.policy = p
	}
}

// WithKindWeights overrides the payload kind weights
func WithKindWeights(weights map[string]int) Option {
	return func(c *Collection) {
		c.rawWeights = weights
	}
}

// WithGUIDs sets the registry that expands GUID markers in drawn payloads
func WithGUIDs(r *guid.Registry) Option {
	return func(c *Collection) {
		c.guids = r
	}
}

// WithSource sets the random source used for payload draws
func WithSource(src choice.Source) Option {
	return func(c *Collection) {
		c.src = src
	}
}

// WithObserver receives every decision the collection makes
func WithObserver(o Observer) Option {
	return func(c *Collection) {
		c.observer = o
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Collection) {
		c.logger = logger
	}
}

// New creates a collection. Without a policy every key is injectable with even odds.
func New(name string, opts ...Option) *Collection {
	c := &Collection{
		name:     name,
		original: NewMap(),
		decided:  NewMap(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = logging.Nop()
	}
	if c.src == nil {
		c.src = choice.NewSource(0)
	}
	if c.guids == nil {
		c.guids = guid.NewRegistry("", c.src)
	}
	if c.policy == nil {
		c.policy = policy.New(policy.Config{
			Mode:        policy.Independent,
			Probability: types.DefaultProbability,
			Group:       name,
			Source:      c.src,
		})
	}
	c.weights = resolveWeights(c.rawWeights, c.logger.With("collection", name))

	return c
}

// Name returns the collection name
func (c *Collection) Name() string {
	return c.name
}

// Prefix returns the key prefix, empty when unscoped
func (c *Collection) Prefix() string {
	return c.prefix
}

// SetPrefix changes the key prefix
func (c *Collection) SetPrefix(prefix string) {
	c.prefix = prefix
}

// Payloads returns a copy of the payload pool
func (c *Collection) Payloads() []string {
	return slices.Clone(c.pool)
}

// AddPayloads adds payloads not already in the pool, keeping first-seen order
func (c *Collection) AddPayloads(payloads ...string) {
	for _, p := range payloads {
		if !slices.Contains(c.pool, p) {
			c.pool = append(c.pool, p)
		}
	}
}

// Get returns the value of key, deciding on first access whether to inject a payload.
// The answer for a key does not change until the key is Set or Deleted.
func (c *Collection) Get(key string) (Value, error) {
	if v, ok := c.original.Lookup(key); ok {
		return v, nil
	}
	if v, ok := c.decided.Lookup(key); ok {
		return v, nil
	}

	if !c.policy.IsInjectable(key, policy.Scope{Name: c.name, Prefix: c.prefix}) {
		c.decided.Set(key, nil)
		c.notify(Access{Collection: c.name, Key: key, Outcome: OutcomeSkipped})
		return nil, nil
	}

	v, kind, err := c.draw(key)
	if err != nil {
		return nil, err
	}
	c.decided.Set(key, v)

	c.logger.Debug("payload injected", "collection", c.name, "key", key, "kind", kind)
	c.notify(Access{Collection: c.name, Key: key, Outcome: OutcomeInjected, Kind: kind, Value: Plain(v)})

	return v, nil
}

// Set writes v as an original value. Assigning a collection to itself stores a copy.
func (c *Collection) Set(key string, v Value) {
	if self, ok := v.(*Collection); ok && self == c {
		v = c.Clone()
	}
	c.original.Set(key, v)
}

// Delete hides key by storing a nil original value, so later reads do not draw a payload
func (c *Collection) Delete(key string) {
	c.original.Set(key, nil)
}

// Exists reports whether Get returns a value. It may trigger a decision.
func (c *Collection) Exists(key string) (bool, error) {
	v, err := c.Get(key)
	if err != nil {
		return false, err
	}
	return v != nil, nil
}

// Snapshot returns the plain view of the collection: decided values overlaid with
// original ones, without nil values, limited to the prefix when one is set.
func (c *Collection) Snapshot() map[string]any {
	return Plain(c).(map[string]any)
}

// Keys returns the snapshot keys in order
func (c *Collection) Keys() []string {
	visited := map[*Collection]bool{c: true}
	keys, _ := c.materialize(visited)
	return keys
}

// All iterates over the snapshot in key order
func (c *Collection) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		visited := map[*Collection]bool{c: true}
		keys, snap := c.materialize(visited)
		for _, k := range keys {
			if !yield(k, snap[k]) {
				return
			}
		}
	}
}

// Count returns the number of snapshot entries
func (c *Collection) Count() int {
	return len(c.Keys())
}

// RawKeys lists original keys followed by decided keys, without filtering
func (c *Collection) RawKeys() []string {
	keys := c.original.RawKeys()
	for _, k := range c.decided.RawKeys() {
		if !c.original.Has(k) {
			keys = append(keys, k)
		}
	}
	return keys
}

// Clone copies the collection state. Nested values are shared.
func (c *Collection) Clone() *Collection {
	out := *c
	out.visible = slices.Clone(c.visible)
	out.pool = slices.Clone(c.pool)
	out.original = c.original.Clone()
	out.decided = c.decided.Clone()
	return &out
}

func (c *Collection) materialize(visited map[*Collection]bool) ([]string, map[string]any) {
	merged := c.decided.Clone()
	for _, k := range c.original.RawKeys() {
		v, _ := c.original.Lookup(k)
		merged.Set(k, v)
	}

	keys := make([]string, 0, merged.Len())
	snap := make(map[string]any, merged.Len())
	for _, k := range merged.keys {
		if !c.inScope(k) {
			continue
		}
		v := plain(merged.values[k], visited)
		if v == nil {
			continue
		}
		keys = append(keys, k)
		snap[k] = v
	}
	return keys, snap
}

func (c *Collection) inScope(key string) bool {
	if c.prefix == "" || strings.HasPrefix(key, c.prefix) {
		return true
	}
	return slices.Contains(c.visible, key)
}

func (c *Collection) draw(key string) (Value, Kind, error) {
	if len(c.pool) == 0 {
		return nil, "", &types.MisconfigurationError{Component: c.name, Err: types.ErrNoPayloads}
	}

	kind := KindScalar
	if c.prefix == "" {
		if k, err := choice.Weighted(c.src, c.weights); err == nil {
			kind = k
		}
	}

	switch kind {
	case KindNested:
		return c.child(key), kind, nil
	case KindList:
		return List{c.scalar()}, kind, nil
	case KindPair:
		k := c.scalar()
		pair := NewMap()
		pair.Set(string(k), c.scalar())
		return pair, kind, nil
	default:
		return c.scalar(), KindScalar, nil
	}
}

func (c *Collection) scalar() Scalar {
	p, _ := choice.Pick(c.src, c.pool)
	return Scalar(c.guids.Substitute(p))
}

// child creates the nested collection returned by the nested payload kind.
// It shares pool, policy and registry with its parent but starts empty.
func (c *Collection) child(key string) *Collection {
	return c.derive(c.name + "[" + key + "]")
}

func (c *Collection) derive(name string) *Collection {
	return &Collection{
		name:     name,
		original: NewMap(),
		decided:  NewMap(),
		policy:   c.policy,
		pool:     c.pool,
		weights:  c.weights,
		guids:    c.guids,
		src:      c.src,
		observer: c.observer,
		logger:   c.logger,
	}
}

func (c *Collection) notify(a Access) {
	if c.observer != nil {
		c.observer.Observe(a)
	}
}

func resolveWeights(raw map[string]int, logger *slog.Logger) []choice.Option[Kind] {
	if len(raw) == 0 {
		return weightOptions(DefaultKindWeights)
	}

	total := 0
	for name, w := range raw {
		if !slices.Contains(Kinds, Kind(name)) || w < 0 {
			logger.Warn("invalid payload kind weights, using defaults", "kind", name, "weight", w)
			return weightOptions(DefaultKindWeights)
		}
		total += w
	}
	if total == 0 {
		logger.Warn("payload kind weights are all zero, using defaults")
		return weightOptions(DefaultKindWeights)
	}

	return weightOptions(raw)
}

func weightOptions(weights map[string]int) []choice.Option[Kind] {
	options := make([]choice.Option[Kind], 0, len(Kinds))
	for _, k := range Kinds {
		options = append(options, choice.Option[Kind]{Value: k, Weight: weights[string(k)]})
	}
	return options
}
