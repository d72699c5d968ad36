package choice

import (
	"errors"
	"testing"
)

func TestValidateTable(t *testing.T) {
	tests := []struct {
		name    string
		table   Table
		wantErr bool
	}{
		{"valid", Table{{"GET", 70}, {"POST", 30}}, false},
		{"single full entry", Table{{"GET", 100}}, false},
		{"zero weight allowed", Table{{"GET", 100}, {"PUT", 0}}, false},
		{"sum too low", Table{{"GET", 50}, {"POST", 30}}, true},
		{"sum too high", Table{{"GET", 70}, {"POST", 70}}, true},
		{"fractional weight", Table{{"GET", 50.5}, {"POST", 49.5}}, true},
		{"negative weight", Table{{"GET", 110}, {"POST", -10}}, true},
		{"duplicate", Table{{"GET", 50}, {"GET", 50}}, true},
		{"missing name", Table{{"", 100}}, true},
		{"empty", Table{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTable(tt.table)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateTable() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var cfgErr *ConfigurationError
				if !errors.As(err, &cfgErr) {
					t.Errorf("expected *ConfigurationError, got %T", err)
				}
			}
		})
	}
}

func TestExpand(t *testing.T) {
	slots, err := Expand(Table{{"POST", 30}, {"GET", 70}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(slots) != TableSize {
		t.Fatalf("expected %d slots, got %d", TableSize, len(slots))
	}

	counts := map[string]int{}
	for _, s := range slots {
		counts[s]++
	}
	if counts["GET"] != 70 || counts["POST"] != 30 {
		t.Errorf("unexpected slot counts: %v", counts)
	}

	// entries are laid out by name
	if slots[0] != "GET" || slots[99] != "POST" {
		t.Errorf("unexpected layout: first=%s last=%s", slots[0], slots[99])
	}
}

func TestExpand_RejectsInvalid(t *testing.T) {
	if _, err := Expand(Table{{"GET", 99}}); err == nil {
		t.Error("expected error for table not summing to 100")
	}
}

func TestPickFromTable(t *testing.T) {
	table := TableFromMap(map[string]float64{"GET": 70, "POST": 30})

	got, err := PickFromTable(NewSequence(69), table)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "GET" {
		t.Errorf("slot 69 = %s, expected GET", got)
	}

	got, _ = PickFromTable(NewSequence(70), table)
	if got != "POST" {
		t.Errorf("slot 70 = %s, expected POST", got)
	}
}
