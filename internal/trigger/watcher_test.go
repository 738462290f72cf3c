package trigger

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	stdsync "sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// syncCounter counts sync requests.
type syncCounter struct {
	mu    stdsync.Mutex
	count int
}

func (c *syncCounter) request() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.count++
}

func (c *syncCounter) get() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.count
}

func eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		if cond() {
			return
		}

		time.Sleep(10 * time.Millisecond)
	}

	t.Fatal(msg)
}

func TestDirWatcher_FileWriteTriggersSync(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	counter := &syncCounter{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := NewDirWatcher(dir, counter.request, testLogger())

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher a moment to install.
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, "places.sqlite"), []byte("data"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	eventually(t, 5*time.Second, func() bool { return counter.get() >= 1 }, "write never triggered a sync request")

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop on cancellation")
	}
}

func TestDirWatcher_RemoveTriggersSync(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "doomed.txt")

	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	counter := &syncCounter{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := NewDirWatcher(dir, counter.request, testLogger())
	go w.Run(ctx)

	time.Sleep(100 * time.Millisecond)

	if err := os.Remove(path); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	eventually(t, 5*time.Second, func() bool { return counter.get() >= 1 }, "removal never triggered a sync request")
}

func TestDirWatcher_MissingDirFails(t *testing.T) {
	t.Parallel()

	w := NewDirWatcher(filepath.Join(t.TempDir(), "nope"), func() {}, testLogger())

	if err := w.Run(context.Background()); err == nil {
		t.Fatal("watching a missing directory must fail")
	}
}
