// Package auditlog implements the append-only, timestamp-prefixed
// audit trail of spec.md §6: one line per recorded event, referencing
// the acting user and operation info. Grounded on the original
// server's transaction_log.hpp, a "stateless wrapper... [that]
// performs append-only writes, so it is safe to use from multiple
// threads" — here that's a *os.File opened O_APPEND plus a mutex
// around each write.
package auditlog

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// Log is a thread-safe append-only writer.
type Log struct {
	mu   sync.Mutex
	file *os.File
}

// Open opens (creating if necessary) the audit log file at path for
// appending.
func Open(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log %q: %w", path, err)
	}
	return &Log{file: f}, nil
}

// Close closes the underlying file.
func (l *Log) Close() error {
	return l.file.Close()
}

// Logf writes one timestamp-prefixed line. Safe for concurrent use by
// the expiry task, the notifier task, and every connection's command
// task.
func (l *Log) Logf(format string, args ...any) {
	line := fmt.Sprintf("%s %s\n", time.Now().UTC().Format(time.RFC3339), fmt.Sprintf(format, args...))

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.file.WriteString(line); err != nil {
		fmt.Fprintf(os.Stderr, "auditlog: write failed: %v\n", err)
	}
}
