package collection

import (
	"iter"
	"log/slog"

	"github.com/zigrin-security/cakefuzzer/internal/logging"
)

// AccessLog is a group that only records which keys are read.
// It is used for uploaded files, which cannot be fuzzed with string payloads.
type AccessLog struct {
	name     string
	observer Observer
	logger   *slog.Logger
	accessed []string
}

// NewAccessLog creates an access logging group. Observer and logger may be nil.
func NewAccessLog(name string, observer Observer, logger *slog.Logger) *AccessLog {
	if logger == nil {
		logger = logging.Nop()
	}
	return &AccessLog{name: name, observer: observer, logger: logger}
}

// Name returns the group name
func (a *AccessLog) Name() string {
	return a.name
}

// Get records the access and returns nil
func (a *AccessLog) Get(key string) (Value, error) {
	a.accessed = append(a.accessed, key)
	a.logger.Debug("access", "collection", a.name, "key", key)
	if a.observer != nil {
		a.observer.Observe(Access{Collection: a.name, Key: key, Outcome: OutcomeAccessed})
	}
	return nil, nil
}

// Set is a no-op
func (a *AccessLog) Set(string, Value) {}

// Delete is a no-op
func (a *AccessLog) Delete(string) {}

// Exists always reports true so that application code goes on to read the key
func (a *AccessLog) Exists(string) (bool, error) {
	return true, nil
}

// All yields nothing
func (a *AccessLog) All() iter.Seq2[string, any] {
	return func(func(string, any) bool) {}
}

// Count is always zero
func (a *AccessLog) Count() int {
	return 0
}

// Snapshot is always empty
func (a *AccessLog) Snapshot() map[string]any {
	return map[string]any{}
}

// Accessed returns the keys read so far, in order
func (a *AccessLog) Accessed() []string {
	out := make([]string, len(a.accessed))
	copy(out, a.accessed)
	return out
}
