package auditlog

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestLog_AppendsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open log: %v", err)
	}
	l.Logf("alice deposited %d funds", 100)
	l.Logf("bob withdrew %d sword", 2)
	if err := l.Close(); err != nil {
		t.Fatalf("failed to close log: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), data)
	}
	if !strings.Contains(lines[0], "alice deposited 100 funds") {
		t.Errorf("unexpected first line: %q", lines[0])
	}
	if !strings.Contains(lines[1], "bob withdrew 2 sword") {
		t.Errorf("unexpected second line: %q", lines[1])
	}
}

func TestLog_ReopenAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	l, _ := Open(path)
	l.Logf("first")
	l.Close()

	l2, err := Open(path)
	if err != nil {
		t.Fatalf("failed to reopen log: %v", err)
	}
	l2.Logf("second")
	l2.Close()

	data, _ := os.ReadFile(path)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected append to preserve first line, got %d lines: %q", len(lines), data)
	}
}

func TestLog_ConcurrentWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	l, _ := Open(path)
	defer l.Close()

	var wg sync.WaitGroup
	const n = 50
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			l.Logf("event %d", i)
		}(i)
	}
	wg.Wait()

	data, _ := os.ReadFile(path)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != n {
		t.Errorf("expected %d lines, got %d", n, len(lines))
	}
}
