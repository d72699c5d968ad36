package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/zigrin-security/cakefuzzer/internal/collection"
)

// AccessLogger writes every collection decision to a JSON array file.
// It is safe for concurrent use by parallel executions.
type AccessLogger struct {
	mu      sync.Mutex
	w       io.Writer
	closer  io.Closer
	count   int
	enabled bool
}

// AccessEntry is one logged decision
type AccessEntry struct {
	Timestamp   time.Time `json:"timestamp"`
	Num         int       `json:"num"`
	ExecutionID string    `json:"execution_id"`
	collection.Access
}

// NewAccessLogger creates a logger writing to filePath. An empty path yields
// a disabled logger.
func NewAccessLogger(filePath string) (*AccessLogger, error) {
	if filePath == "" {
		return &AccessLogger{enabled: false}, nil
	}

	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create access log: %w", err)
	}
	l, err := NewAccessLoggerWriter(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	l.closer = file
	return l, nil
}

// NewAccessLoggerWriter creates a logger writing to w
func NewAccessLoggerWriter(w io.Writer) (*AccessLogger, error) {
	if _, err := io.WriteString(w, "[\n"); err != nil {
		return nil, fmt.Errorf("failed to write access log: %w", err)
	}
	return &AccessLogger{w: w, enabled: true}, nil
}

// Record appends one decision
func (l *AccessLogger) Record(executionID string, a collection.Access) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled {
		return nil
	}

	l.count++
	entry := AccessEntry{
		Timestamp:   time.Now(),
		Num:         l.count,
		ExecutionID: executionID,
		Access:      a,
	}

	data, err := json.MarshalIndent(entry, "  ", "  ")
	if err != nil {
		return err
	}

	if l.count > 1 {
		if _, err := io.WriteString(l.w, ",\n"); err != nil {
			return err
		}
	}
	_, err = l.w.Write(append([]byte("  "), data...))
	return err
}

// Close terminates the JSON array and closes the file
func (l *AccessLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled {
		return nil
	}

	l.enabled = false
	if _, err := io.WriteString(l.w, "\n]\n"); err != nil {
		return err
	}
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

// Count returns the number of logged entries
func (l *AccessLogger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}
