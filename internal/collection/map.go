package collection

import (
	"iter"
	"slices"
)

// Map is an insertion ordered key/value store.
// It backs the original and decided halves of a Collection, the pair payload kind,
// and input groups that are exposed without instrumentation.
type Map struct {
	keys   []string
	values map[string]Value
}

// NewMap creates an empty map
func NewMap() *Map {
	return &Map{values: make(map[string]Value)}
}

// MapFrom converts a plain map, ordering keys by name
func MapFrom(values map[string]any) *Map {
	m := NewMap()
	for _, k := range sortedKeys(values) {
		m.Set(k, FromAny(values[k]))
	}
	return m
}

// Lookup returns the stored value and whether the key is present, even when the value is nil
func (m *Map) Lookup(key string) (Value, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Has reports whether key is present
func (m *Map) Has(key string) bool {
	_, ok := m.values[key]
	return ok
}

// Get returns the value of key or nil
func (m *Map) Get(key string) (Value, error) {
	return m.values[key], nil
}

// Set stores v under key, keeping the position of an existing key
func (m *Map) Set(key string, v Value) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

// Delete removes key
func (m *Map) Delete(key string) {
	if _, ok := m.values[key]; !ok {
		return
	}
	delete(m.values, key)
	m.keys = slices.DeleteFunc(m.keys, func(k string) bool { return k == key })
}

// Exists reports whether key holds a non-nil value
func (m *Map) Exists(key string) (bool, error) {
	return m.values[key] != nil, nil
}

// RawKeys returns every stored key in insertion order, including nil valued ones
func (m *Map) RawKeys() []string {
	return slices.Clone(m.keys)
}

// Len returns the number of stored keys, including nil valued ones
func (m *Map) Len() int {
	return len(m.keys)
}

// Keys returns the keys of non-nil values in order
func (m *Map) Keys() []string {
	keys, _ := m.materialize(make(map[*Collection]bool))
	return keys
}

// All iterates over the snapshot in key order
func (m *Map) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		keys, snap := m.materialize(make(map[*Collection]bool))
		for _, k := range keys {
			if !yield(k, snap[k]) {
				return
			}
		}
	}
}

// Count returns the number of non-nil values
func (m *Map) Count() int {
	return len(m.Keys())
}

// Snapshot returns a plain copy without nil values
func (m *Map) Snapshot() map[string]any {
	_, snap := m.materialize(make(map[*Collection]bool))
	return snap
}

// Clone returns a shallow copy
func (m *Map) Clone() *Map {
	out := NewMap()
	for _, k := range m.keys {
		out.Set(k, m.values[k])
	}
	return out
}

func (m *Map) materialize(visited map[*Collection]bool) ([]string, map[string]any) {
	keys := make([]string, 0, len(m.keys))
	snap := make(map[string]any, len(m.keys))
	for _, k := range m.keys {
		v := plain(m.values[k], visited)
		if v == nil {
			continue
		}
		keys = append(keys, k)
		snap[k] = v
	}
	return keys, snap
}
