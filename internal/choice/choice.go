// Package choice provides weighted and probabilistic selection over finite option sets.
//
// Every draw goes through a Source so that callers can supply a seeded or
// scripted sequence instead of a process-wide generator.
package choice

import (
	"errors"
	"math/rand"
	"time"
)

// ErrEmpty is returned when there is nothing to choose from
var ErrEmpty = errors.New("no options to choose from")

// Source yields random integers in [0, n)
type Source interface {
	Intn(n int) int
}

// NewSource returns a math/rand backed source. A zero seed is replaced by the current time.
func NewSource(seed int64) Source {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// Option is a value with a relative weight
type Option[T any] struct {
	Value  T
	Weight int
}

// Pick returns a uniformly chosen element of options
func Pick[T any](src Source, options []T) (T, error) {
	var zero T
	if len(options) == 0 {
		return zero, ErrEmpty
	}
	return options[src.Intn(len(options))], nil
}

// Chance draws an integer in [0, 100) and reports whether it is below probability
func Chance(src Source, probability int) bool {
	if probability <= 0 {
		return false
	}
	if probability >= 100 {
		return true
	}
	return src.Intn(100) < probability
}

// Weighted returns an option chosen with probability proportional to its weight.
// Options with a non-positive weight are never chosen.
func Weighted[T any](src Source, options []Option[T]) (T, error) {
	var zero T

	total := 0
	for _, o := range options {
		if o.Weight > 0 {
			total += o.Weight
		}
	}
	if total == 0 {
		return zero, ErrEmpty
	}

	r := src.Intn(total)
	for _, o := range options {
		if o.Weight <= 0 {
			continue
		}
		if r < o.Weight {
			return o.Value, nil
		}
		r -= o.Weight
	}

	// unreachable while Intn honours its bound
	return options[len(options)-1].Value, nil
}

// Sequence is a deterministic Source replaying fixed values, wrapping around at the end.
// Each value is reduced modulo the requested bound.
type Sequence struct {
	values []int
	pos    int
}

// NewSequence creates a Sequence over values
func NewSequence(values ...int) *Sequence {
	return &Sequence{values: values}
}

// Intn returns the next value modulo n
func (s *Sequence) Intn(n int) int {
	if n <= 0 || len(s.values) == 0 {
		return 0
	}
	v := s.values[s.pos%len(s.values)]
	s.pos++
	v %= n
	if v < 0 {
		v += n
	}
	return v
}

// Calls returns how many values were consumed
func (s *Sequence) Calls() int {
	return s.pos
}
