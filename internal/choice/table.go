package choice

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// TableSize is the number of slots a probability table expands to
const TableSize = 100

// Entry is one row of a probability table
type Entry struct {
	Name   string
	Weight float64
}

// Table maps option names to percentages that must add up to 100
type Table []Entry

// ConfigurationError reports a probability table that cannot be used
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "invalid probability table: " + e.Message
	}
	return fmt.Sprintf("invalid probability table: %s: %s", e.Field, e.Message)
}

// ValidateTable checks that every weight is a non-negative integer and that they sum to 100.
// Tables are never normalized.
func ValidateTable(table Table) error {
	if len(table) == 0 {
		return &ConfigurationError{Message: "table is empty"}
	}

	var sum float64
	seen := make(map[string]bool, len(table))
	for _, e := range table {
		if strings.TrimSpace(e.Name) == "" {
			return &ConfigurationError{Message: "entry without a name"}
		}
		if seen[e.Name] {
			return &ConfigurationError{Field: e.Name, Message: "duplicate entry"}
		}
		seen[e.Name] = true

		if e.Weight != math.Trunc(e.Weight) {
			return &ConfigurationError{Field: e.Name, Message: fmt.Sprintf("weight %v is not an integer", e.Weight)}
		}
		if e.Weight < 0 {
			return &ConfigurationError{Field: e.Name, Message: fmt.Sprintf("weight %v is negative", e.Weight)}
		}
		sum += e.Weight
	}

	if sum != TableSize {
		return &ConfigurationError{Message: fmt.Sprintf("weights sum to %v, expected %d", sum, TableSize)}
	}
	return nil
}

// Expand validates the table and returns a 100-slot array where each name
// occupies as many slots as its weight. Entries are laid out by name.
func Expand(table Table) ([]string, error) {
	if err := ValidateTable(table); err != nil {
		return nil, err
	}

	sorted := make(Table, len(table))
	copy(sorted, table)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	slots := make([]string, 0, TableSize)
	for _, e := range sorted {
		for i := 0; i < int(e.Weight); i++ {
			slots = append(slots, e.Name)
		}
	}
	return slots, nil
}

// PickFromTable expands the table and draws one slot
func PickFromTable(src Source, table Table) (string, error) {
	slots, err := Expand(table)
	if err != nil {
		return "", err
	}
	return Pick(src, slots)
}

// TableFromMap builds a Table from a name -> weight map
func TableFromMap(m map[string]float64) Table {
	table := make(Table, 0, len(m))
	for name, weight := range m {
		table = append(table, Entry{Name: name, Weight: weight})
	}
	return table
}
