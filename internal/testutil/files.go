package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// WriteFileAt writes body to path, creating parent directories, and sets the
// file's modification time to modTime.
func WriteFileAt(t testing.TB, path, body string, modTime time.Time) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	Touch(t, path, modTime)
}

// Touch sets the modification time of path.
func Touch(t testing.TB, path string, modTime time.Time) {
	t.Helper()
	if err := os.Chtimes(path, modTime, modTime); err != nil {
		t.Fatalf("failed to set mtime of %s: %v", path, err)
	}
}

// HourAgo returns a time safely older than any artifact a test writes.
func HourAgo() time.Time {
	return time.Now().Add(-time.Hour)
}
