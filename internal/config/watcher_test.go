package config

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestWatcher_NotifiesOnMatchingChanges(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(filepath.Join(dir, "**", "*.yaml"), nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	w.SetDebounce(20 * time.Millisecond)

	var calls atomic.Int32
	w.OnChange(func() { calls.Add(1) })

	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	if calls.Load() != 0 {
		t.Fatalf("non-matching file should not notify, got %d", calls.Load())
	}

	if err := os.WriteFile(filepath.Join(dir, "api.yaml"), []byte("slos: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, func() bool { return calls.Load() >= 1 }) {
		t.Fatal("expected a change notification")
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w, err := NewWatcher(filepath.Join(t.TempDir(), "*.yaml"), nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

func TestWatcher_SetDebounceWhileRunning(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(filepath.Join(dir, "*.yaml"), nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	var calls atomic.Int32
	w.OnChange(func() { calls.Add(1) })

	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w.SetDebounce(time.Duration(10+i) * time.Millisecond)
		}(i)
	}

	if err := os.WriteFile(filepath.Join(dir, "api.yaml"), []byte("slos: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	wg.Wait()
	w.SetDebounce(20 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(dir, "api.yaml"), []byte("slos: []\n\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if !waitFor(t, func() bool { return calls.Load() >= 1 }) {
		t.Fatal("expected a change notification after updating the debounce")
	}
}
