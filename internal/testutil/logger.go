// Package testutil provides shared test helpers.
package testutil

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

// NewTestLogger returns a logger that writes to t.Log().
// Logs only appear on test failure or when running with -v.
func NewTestLogger(t testing.TB) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

type testWriter struct {
	t testing.TB
}

func (w testWriter) Write(p []byte) (n int, err error) {
	w.t.Helper()
	w.t.Log(string(p))
	return len(p), nil
}

// WriteFile writes content to name inside a fresh temp dir and returns its path.
func WriteFile(t testing.TB, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

// TestFD is a small table with two overlapping key columns. Col0 alone is
// not unique; (Col0, Col1) is.
const TestFD = `Col0,Col1,B,C
1,1,10,5
1,2,20,25
2,1,30,30
2,2,40,35
3,1,50,45
3,3,60,60
`

// WriteTestFD writes TestFD to a temp file and returns its path.
func WriteTestFD(t testing.TB) string {
	t.Helper()
	return WriteFile(t, "TestFD.csv", TestFD)
}
