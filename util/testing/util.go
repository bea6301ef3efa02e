package testing_util

import (
	"os"
	"path/filepath"
	"testing"
)

// MkdirTemp creates a scratch directory that is removed when the test finishes.
func MkdirTemp(t testing.TB, prefix string) string {
	t.Helper()

	out, err := os.MkdirTemp(os.TempDir(), prefix)
	if err != nil {
		t.Fatalf("failed to create temporary directory: %v", err)
	}

	t.Cleanup(func() {
		_ = os.RemoveAll(out)
	})

	return out
}

// TempPath returns the path of a not yet existing file inside a fresh scratch directory.
func TempPath(t testing.TB, name string) string {
	t.Helper()
	return filepath.Join(MkdirTemp(t, "honeytable"), name)
}
