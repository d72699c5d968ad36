package collection

// Outcome of a key access
type Outcome string

// Access outcomes
const (
	OutcomeSkipped  Outcome = "skipped"
	OutcomeInjected Outcome = "injected"
	OutcomeAccessed Outcome = "accessed"
)

// Access records one decision made by a collection
type Access struct {
	Collection string  `json:"collection"`
	Key        string  `json:"key"`
	Outcome    Outcome `json:"outcome"`
	Kind       Kind    `json:"kind,omitempty"`
	Value      any     `json:"value,omitempty"`
}

// Observer is notified of every decision
type Observer interface {
	Observe(a Access)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(a Access)

// Observe calls f(a)
func (f ObserverFunc) Observe(a Access) {
	f(a)
}
