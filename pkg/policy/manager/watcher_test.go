package manager

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncerCoalescesPerKey(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	defer d.Stop()

	var a, b atomic.Int32
	for i := 0; i < 5; i++ {
		d.Trigger("a.yaml", func() { a.Add(1) })
	}
	d.Trigger("b.yaml", func() { b.Add(1) })

	time.Sleep(100 * time.Millisecond)

	if got := a.Load(); got != 1 {
		t.Errorf("a.yaml fired %d times, want 1", got)
	}
	if got := b.Load(); got != 1 {
		t.Errorf("b.yaml fired %d times, want 1", got)
	}
	if d.Pending() != 0 {
		t.Errorf("Pending() = %d after firing", d.Pending())
	}
}

func TestDebouncerStop(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)

	var fired atomic.Bool
	d.Trigger("a.yaml", func() { fired.Store(true) })
	d.Stop()
	d.Trigger("a.yaml", func() { fired.Store(true) })

	time.Sleep(60 * time.Millisecond)
	if fired.Load() {
		t.Error("callback fired after Stop()")
	}
}

func TestFileWatcherReportsPackFiles(t *testing.T) {
	dir := t.TempDir()
	l := NewLoader(LoaderConfig{})

	fw, err := NewFileWatcher(FileWatcherConfig{
		Path:             dir,
		DebounceInterval: 20 * time.Millisecond,
		Accept:           l.Accepts,
		SkipHidden:       true,
	}, nil)
	if err != nil {
		t.Fatalf("NewFileWatcher() error = %v", err)
	}

	var (
		mu   sync.Mutex
		seen []string
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_ = fw.Watch(ctx, func(path string) {
			mu.Lock()
			seen = append(seen, filepath.Base(path))
			mu.Unlock()
		})
	}()
	time.Sleep(50 * time.Millisecond)

	writePack(t, dir, "acme.yaml", hipaaPackYAML)
	writePack(t, dir, "README.md", "ignored")
	writePack(t, dir, ".draft.yaml", hipaaPackYAML)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(seen)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(60 * time.Millisecond)

	if err := fw.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 || seen[0] != "acme.yaml" {
		t.Errorf("reported %v, want [acme.yaml]", seen)
	}
}

func TestNewFileWatcherRequiresPath(t *testing.T) {
	if _, err := NewFileWatcher(FileWatcherConfig{}, nil); err == nil {
		t.Error("NewFileWatcher() without a path should fail")
	}
}
