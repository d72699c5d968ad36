package collection

import (
	"fmt"
	"sort"
	"strconv"
)

// Value is what a collection hands back for a key: a Scalar, a List, a *Map,
// a nested *Collection, or nil when there is nothing to return.
type Value interface {
	value()
}

// Scalar is a plain string value
type Scalar string

// List is a sequence of values
type List []Value

func (Scalar) value()      {}
func (List) value()        {}
func (*Map) value()        {}
func (*Collection) value() {}

// String returns the scalar as a string
func (s Scalar) String() string {
	return string(s)
}

// FromAny converts decoded JSON or YAML data into a Value.
// Numbers and booleans become scalars; map keys are ordered by name.
func FromAny(v any) Value {
	switch t := v.(type) {
	case nil:
		return nil
	case Value:
		return t
	case string:
		return Scalar(t)
	case bool:
		return Scalar(strconv.FormatBool(t))
	case float64:
		return Scalar(strconv.FormatFloat(t, 'f', -1, 64))
	case int:
		return Scalar(strconv.Itoa(t))
	case int64:
		return Scalar(strconv.FormatInt(t, 10))
	case []string:
		list := make(List, len(t))
		for i, s := range t {
			list[i] = Scalar(s)
		}
		return list
	case []any:
		list := make(List, len(t))
		for i, item := range t {
			list[i] = FromAny(item)
		}
		return list
	case map[string]string:
		m := NewMap()
		for _, k := range sortedKeys(t) {
			m.Set(k, Scalar(t[k]))
		}
		return m
	case map[string]any:
		return MapFrom(t)
	default:
		return Scalar(fmt.Sprint(t))
	}
}

// Plain converts a Value into string, []any or map[string]any.
// Nested collections are resolved to their snapshots.
func Plain(v Value) any {
	return plain(v, make(map[*Collection]bool))
}

func plain(v Value, visited map[*Collection]bool) any {
	switch t := v.(type) {
	case nil:
		return nil
	case Scalar:
		return string(t)
	case List:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = plain(item, visited)
		}
		return out
	case *Map:
		_, snap := t.materialize(visited)
		return snap
	case *Collection:
		if visited[t] {
			return nil
		}
		visited[t] = true
		defer delete(visited, t)
		_, snap := t.materialize(visited)
		return snap
	default:
		return nil
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
