package pathfuzz

import (
	"errors"
	"testing"

	"github.com/zigrin-security/cakefuzzer/internal/choice"
	"github.com/zigrin-security/cakefuzzer/internal/guid"
	"github.com/zigrin-security/cakefuzzer/pkg/types"
)

const template = "/a/_CAKE_FUZZER_X/b/_CAKE_FUZZER_Y"

func TestFuzzPath_NoPlaceholders(t *testing.T) {
	src := choice.NewSequence(0)
	f := New([]string{"<x>"}, nil, src, WithProbability(100))

	got, err := f.FuzzPath("/users/list")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "/users/list" {
		t.Errorf("FuzzPath() = %q, expected unchanged", got)
	}
	if src.Calls() != 0 {
		t.Errorf("expected no draws, got %d", src.Calls())
	}
}

func TestFuzzPath_RemovesAllPlaceholdersAndIsIdempotent(t *testing.T) {
	for seed := int64(1); seed <= 50; seed++ {
		src := choice.NewSource(seed)
		reg := guid.NewRegistry(types.DefaultGUIDPhrase, src)
		f := New([]string{"' OR 1=1", "<script>", "x" + types.DefaultGUIDPhrase}, reg, src)

		first, err := f.FuzzPath(template)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if left := Placeholders(first); len(left) != 0 {
			t.Fatalf("seed %d: placeholders left in %q: %v", seed, first, left)
		}

		second, err := f.FuzzPath(first)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if second != first {
			t.Errorf("seed %d: second pass changed %q to %q", seed, first, second)
		}
	}
}

func TestFuzzPath_InjectsChosenPlaceholder(t *testing.T) {
	// placeholder pick 1 -> Y, payload pick 0, filler 7
	f := New([]string{"<x>"}, nil, choice.NewSequence(1, 0, 7), WithProbability(100))

	got, err := f.FuzzPath(template)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "/a/7/b/<x>" {
		t.Errorf("FuzzPath() = %q, expected /a/7/b/<x>", got)
	}
}

func TestFuzzPath_EncodesAroundMarker(t *testing.T) {
	const marker = "§G§"
	// placeholder pick, payload pick, filler, then two GUID draws 3*4
	src := choice.NewSequence(0, 0, 5, 3, 4)
	reg := guid.NewRegistry(marker, src)
	f := New([]string{"a b" + marker + "<c>"}, reg, src, WithProbability(100))

	got, err := f.FuzzPath("/x/_CAKE_FUZZER_ID")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := "/x/a+b00000000000000000012%3Cc%3E"
	if got != expected {
		t.Errorf("FuzzPath() = %q, expected %q", got, expected)
	}
	if reg.Count() != 1 {
		t.Errorf("expected one issued GUID, got %d", reg.Count())
	}
}

func TestFuzzPath_ProbabilityZeroUsesFillers(t *testing.T) {
	f := New(nil, nil, choice.NewSequence(42), WithProbability(0))

	got, err := f.FuzzPath(template)
	if err != nil {
		t.Fatalf("an empty pool is fine when nothing is injected: %v", err)
	}
	if got != "/a/42/b/42" {
		t.Errorf("FuzzPath() = %q, expected /a/42/b/42", got)
	}
}

func TestFuzzPath_FillerPool(t *testing.T) {
	f := New(nil, nil, choice.NewSequence(0), WithProbability(0), WithFillers([]string{""}))

	got, _ := f.FuzzPath(template)
	if got != "/a//b/" {
		t.Errorf("FuzzPath() = %q, expected absent value fillers", got)
	}
}

func TestFuzzPath_EmptyPool(t *testing.T) {
	f := New(nil, nil, choice.NewSequence(0), WithProbability(100))

	_, err := f.FuzzPath(template)
	if !errors.Is(err, types.ErrNoPayloads) {
		t.Errorf("expected ErrNoPayloads, got %v", err)
	}
}

func TestPlaceholders_CaseInsensitive(t *testing.T) {
	got := Placeholders("/posts/_cake_fuzzer_id/comments/_CAKE_FUZZER_Comment_Id")
	if len(got) != 2 || got[0] != "_cake_fuzzer_id" || got[1] != "_CAKE_FUZZER_Comment_Id" {
		t.Errorf("Placeholders() = %v", got)
	}
}

func TestPlaceholder(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"id", "_CAKE_FUZZER_ID"},
		{"user-id", "_CAKE_FUZZER_USER_ID"},
		{"{slug}", "_CAKE_FUZZER_SLUG"},
		{"", "_CAKE_FUZZER_PARAM"},
	}

	for _, tt := range tests {
		if got := Placeholder(tt.name); got != tt.want {
			t.Errorf("Placeholder(%q) = %q, expected %q", tt.name, got, tt.want)
		}
		if !Pattern.MatchString(Placeholder(tt.name)) {
			t.Errorf("Placeholder(%q) does not match the pattern", tt.name)
		}
	}
}
