// Package testutil holds helpers shared by the package tests.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/crovest/command-center/internal/config"
	"github.com/crovest/command-center/internal/store"
)

// Epoch is the fixed instant returned by Clock.
var Epoch = time.Date(2025, time.February, 5, 10, 0, 0, 0, time.UTC)

// Clock returns a clock frozen at Epoch.
func Clock() func() time.Time {
	return func() time.Time { return Epoch }
}

// NewTestStore opens a migrated SQLite store in a temporary directory with
// its clock frozen at Epoch. The store is closed when the test completes.
func NewTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(context.Background(), store.Options{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	st.SetClock(Clock())
	t.Cleanup(func() { st.Close() })
	return st
}

// NewTestConfig returns the default config rooted in a temporary data dir.
func NewTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Server.DataDir = t.TempDir()
	return cfg
}

// WriteFile writes content to a file in the given directory.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	return path
}
