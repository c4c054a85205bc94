package testutil

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// WatchDir creates a temporary directory for a watch test and returns its
// fully resolved path. Event streams report resolved paths, so comparing
// against t.TempDir() directly fails where the temp root is a symlink.
func WatchDir(t *testing.T) string {
	t.Helper()

	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err, "failed to resolve temp dir")
	return dir
}

// WriteFile creates or truncates path with content, creating parent
// directories as needed.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755), "failed to create parent of %s", path)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600), "failed to write %s", path)
}

// Eventually polls cond until it returns true or timeout elapses.
func Eventually(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	if !cond() {
		t.Fatalf("condition not met within %v", timeout)
	}
}

// RandomString generates a random string of the specified length
func RandomString(length int) string {
	bytes := make([]byte, length/2+1)
	if _, err := rand.Read(bytes); err != nil {
		panic(err)
	}
	return hex.EncodeToString(bytes)[:length]
}

// QueueLabel returns a unique reverse-DNS queue label for a test.
func QueueLabel(prefix string) string {
	return "com.grovetools.test." + prefix + "." + RandomString(8)
}
