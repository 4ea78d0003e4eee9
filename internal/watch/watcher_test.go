package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestWatcherRequiresFiles(t *testing.T) {
	if _, err := NewWatcher(nil, Config{}); err == nil {
		t.Error("expected an error for an empty file list")
	}
}

func TestWatcherFiresOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flow.yaml")
	if err := os.WriteFile(path, []byte("command: echo\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var (
		mu    sync.Mutex
		fired []string
	)
	w, err := NewWatcher([]string{path}, Config{
		DebounceInterval: 100 * time.Millisecond,
		OnChange: func(p string) {
			mu.Lock()
			fired = append(fired, p)
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	// Rapid successive writes should coalesce into one callback.
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(path, []byte("command: echo\n# rev\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		mu.Lock()
		n := len(fired)
		mu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("watcher never fired")
		}
		time.Sleep(20 * time.Millisecond)
	}

	// Let any stragglers arrive, then check coalescing.
	time.Sleep(300 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if len(fired) != 1 {
		t.Errorf("got %d callbacks, want 1 coalesced", len(fired))
	}
	abs, _ := filepath.Abs(path)
	if fired[0] != abs {
		t.Errorf("callback path = %q, want %q", fired[0], abs)
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	watched := filepath.Join(dir, "watched.yaml")
	other := filepath.Join(dir, "other.yaml")
	for _, p := range []string{watched, other} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	var (
		mu    sync.Mutex
		fired int
	)
	w, err := NewWatcher([]string{watched}, Config{
		DebounceInterval: 50 * time.Millisecond,
		OnChange: func(string) {
			mu.Lock()
			fired++
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(other, []byte("changed"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(400 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if fired != 0 {
		t.Errorf("sibling file change fired %d callbacks", fired)
	}
}

func TestStopIsIdempotentBeforeStart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flow.yaml")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher([]string{path}, Config{})
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("Stop before Start failed: %v", err)
	}
}
