package server

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

// startWatcher runs w.Start in the background and waits briefly so the
// initial directory registration has happened before the test mutates
// files.
func startWatcher(t *testing.T, w *Watcher) chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- w.Start() }()
	time.Sleep(200 * time.Millisecond)
	return done
}

func waitForCount(t *testing.T, count *atomic.Int32, want int32, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if count.Load() >= want {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("callback count = %d after %s; want >= %d", count.Load(), timeout, want)
}

func TestWatcher_FiresOnWrite(t *testing.T) {
	dir := t.TempDir()
	var count atomic.Int32
	w := NewWatcher([]string{dir}, 50*time.Millisecond, func() { count.Add(1) })
	done := startWatcher(t, w)

	if err := os.WriteFile(filepath.Join(dir, "a.jpg"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitForCount(t, &count, 1, 3*time.Second)

	w.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Stop did not unblock Start")
	}
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	var count atomic.Int32
	w := NewWatcher([]string{dir}, 200*time.Millisecond, func() { count.Add(1) })
	done := startWatcher(t, w)
	defer func() { w.Stop(); <-done }()

	// A burst of writes well inside the debounce window collapses into
	// far fewer callbacks than events.
	for i := 0; i < 5; i++ {
		name := filepath.Join(dir, "file"+string(rune('a'+i))+".jpg")
		if err := os.WriteFile(name, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	waitForCount(t, &count, 1, 3*time.Second)
	time.Sleep(400 * time.Millisecond)
	if got := count.Load(); got > 2 {
		t.Errorf("callback fired %d times for one burst; want debounced", got)
	}
}

func TestWatcher_IgnoresChmod(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.jpg")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	var count atomic.Int32
	w := NewWatcher([]string{dir}, 50*time.Millisecond, func() { count.Add(1) })
	done := startWatcher(t, w)
	defer func() { w.Stop(); <-done }()

	if err := os.Chmod(path, 0o600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(500 * time.Millisecond)
	if got := count.Load(); got != 0 {
		t.Errorf("callback fired %d times for a chmod-only event", got)
	}
}

func TestWatcher_WatchesCreatedSubdirectories(t *testing.T) {
	dir := t.TempDir()
	var count atomic.Int32
	w := NewWatcher([]string{dir}, 50*time.Millisecond, func() { count.Add(1) })
	done := startWatcher(t, w)
	defer func() { w.Stop(); <-done }()

	sub := filepath.Join(dir, "2026", "new-collection")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	waitForCount(t, &count, 1, 3*time.Second)

	// A file inside the newly created directory is also seen.
	time.Sleep(200 * time.Millisecond)
	before := count.Load()
	if err := os.WriteFile(filepath.Join(sub, "a.jpg"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitForCount(t, &count, before+1, 3*time.Second)
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w := NewWatcher([]string{t.TempDir()}, 50*time.Millisecond, func() {})
	done := startWatcher(t, w)

	w.Stop()
	w.Stop()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Stop did not unblock Start")
	}
}
