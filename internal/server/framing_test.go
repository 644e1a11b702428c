package server

import (
	"bufio"
	"strings"
	"testing"
)

func scanAll(t *testing.T, input string) []string {
	t.Helper()
	scanner := bufio.NewScanner(strings.NewReader(input))
	scanner.Buffer(make([]byte, maxCommandBytes), maxCommandBytes)
	scanner.Split(scanCommand)
	var out []string
	for scanner.Scan() {
		out = append(out, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan error: %v", err)
	}
	return out
}

func TestScanCommand_NewlineTerminated(t *testing.T) {
	got := scanAll(t, "ping\nwhoami\n")
	want := []string{"ping", "whoami"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("expected %q, got %q", want[i], got[i])
		}
	}
}

func TestScanCommand_UnterminatedFinalLine(t *testing.T) {
	got := scanAll(t, "ping\nwhoami")
	want := []string{"ping", "whoami"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestScanCommand_WholePayloadNoNewline(t *testing.T) {
	got := scanAll(t, "ping")
	if len(got) != 1 || got[0] != "ping" {
		t.Fatalf("expected [\"ping\"], got %v", got)
	}
}

func TestScanCommand_TrimsCarriageReturn(t *testing.T) {
	got := scanAll(t, "ping\r\n")
	if len(got) != 1 || got[0] != "ping" {
		t.Fatalf("expected [\"ping\"], got %v", got)
	}
}
