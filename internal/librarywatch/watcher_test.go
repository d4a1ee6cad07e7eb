package librarywatch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)
	return logger
}

func TestStartWatchesExistingSubdirectories(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	w := New(root, newTestLogger())
	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(root, "sub", "track.mp3"), []byte("data"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	// Give the watcher's goroutine a moment to observe the event; this is a
	// best-effort smoke test, not an assertion on log output.
	time.Sleep(50 * time.Millisecond)
}

func TestStopClosesWatcherWithoutPanic(t *testing.T) {
	root := t.TempDir()
	w := New(root, newTestLogger())
	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	w.Stop()
	w.Stop() // idempotent: closing an already-closed watcher must not panic
}
