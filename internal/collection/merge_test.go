package collection

import (
	"reflect"
	"slices"
	"testing"

	"github.com/zigrin-security/cakefuzzer/internal/choice"
)

func TestMerge_CollectionsAndMaps(t *testing.T) {
	query := newTestCollection("query", choice.NewSequence(0, 0), 100,
		WithOriginal(map[string]any{"page": "1", "id": "5"}))
	query.Get("search") // decided: kind 0 -> scalar, pick 0

	body := New("body", WithPayloads([]string{"<script>", "{{7*7}}"}),
		WithOriginal(map[string]any{"id": "9"}))

	extra := NewMap()
	extra.Set("lang", Scalar("en"))

	merged := Merge("merged", query, body, extra)
	c, ok := merged.(*Collection)
	if !ok {
		t.Fatalf("expected a collection, got %T", merged)
	}
	if c.Name() != "merged" {
		t.Errorf("name = %s", c.Name())
	}

	expected := map[string]any{
		"page":   "1",
		"id":     "9",
		"search": testPool[0],
		"lang":   "en",
	}
	if snap := c.Snapshot(); !reflect.DeepEqual(snap, expected) {
		t.Errorf("Snapshot() = %v, expected %v", snap, expected)
	}

	if got := c.Payloads(); !slices.Equal(got, []string{"' OR 1=1", "<script>", "{{7*7}}"}) {
		t.Errorf("Payloads() = %v", got)
	}

	// merged values are originals: reading them never draws
	if v, _ := c.Get("search"); v != Scalar(testPool[0]) {
		t.Errorf("Get(search) = %#v", v)
	}
}

func TestMerge_WrittenAndDeletedKeysWin(t *testing.T) {
	c := newTestCollection("query", choice.NewSequence(0, 0), 100)
	c.Get("id")
	c.Set("id", Scalar("42"))

	d := newTestCollection("body", choice.NewSequence(0, 0), 100)
	d.Get("gone")
	d.Delete("gone")

	if snap := c.Snapshot(); !reflect.DeepEqual(snap, map[string]any{"id": "42"}) {
		t.Fatalf("source Snapshot() = %v", snap)
	}

	merged := Merge("m", c, d).(*Collection)
	expected := map[string]any{"id": "42"}
	if snap := merged.Snapshot(); !reflect.DeepEqual(snap, expected) {
		t.Errorf("Snapshot() = %v, expected %v", snap, expected)
	}
	if v, _ := merged.Get("gone"); v != nil {
		t.Errorf("deleted key should stay hidden, got %#v", v)
	}
}

func TestMerge_KeepsLastPrefix(t *testing.T) {
	a := New("a", WithPrefix("HTTP_"))
	b := New("b")
	c := New("c", WithPrefix("X_"))

	merged := Merge("m", a, b, c).(*Collection)
	if merged.Prefix() != "X_" {
		t.Errorf("Prefix() = %q, expected X_", merged.Prefix())
	}

	merged = Merge("m", a, b).(*Collection)
	if merged.Prefix() != "HTTP_" {
		t.Errorf("Prefix() = %q, expected HTTP_", merged.Prefix())
	}
}

func TestMerge_DoesNotShareState(t *testing.T) {
	a := New("a", WithOriginal(map[string]any{"k": "v"}), WithPayloads([]string{"p"}))
	merged := Merge("m", a).(*Collection)
	merged.Set("k", Scalar("changed"))
	merged.AddPayloads("q")

	if v, _ := a.Get("k"); v != Scalar("v") {
		t.Errorf("source collection modified: %#v", v)
	}
	if len(a.Payloads()) != 1 {
		t.Errorf("source pool modified: %v", a.Payloads())
	}
}

func TestMerge_PlainMaps(t *testing.T) {
	a := NewMap()
	a.Set("x", Scalar("1"))
	a.Set("y", Scalar("2"))
	b := NewMap()
	b.Set("y", Scalar("3"))

	merged := Merge("m", a, b)
	m, ok := merged.(*Map)
	if !ok {
		t.Fatalf("expected a plain map, got %T", merged)
	}
	if !slices.Equal(m.Keys(), []string{"x", "y"}) {
		t.Errorf("Keys() = %v", m.Keys())
	}
	if v, _ := m.Get("y"); v != Scalar("3") {
		t.Errorf("later part should win, got %#v", v)
	}
}

func TestRawKeysAndKeyExists(t *testing.T) {
	c := newTestCollection("query", choice.NewSequence(99), 50, WithOriginal(map[string]any{"a": "1"}))
	c.Get("b") // skipped

	if got := RawKeys(c); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("RawKeys() = %v", got)
	}
	if got := RawKeys(NewAccessLog("files", nil, nil)); got != nil {
		t.Errorf("access log should have no keys, got %v", got)
	}

	if ok, _ := KeyExists(c, "b"); ok {
		t.Error("skipped key should not exist")
	}

	m := NewMap()
	m.Set("nil", nil)
	if ok, _ := KeyExists(m, "nil"); !ok {
		t.Error("plain map keys exist even with nil values")
	}
}
