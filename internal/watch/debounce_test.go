package watch

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestDebouncerCoalescesLastEventWins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var got []Change
	d := NewDebouncer(func(c Change) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, c)
	})
	d.window = 50 * time.Millisecond

	d.Add(RawEvent{Path: path, Type: RawCreate, Timestamp: time.Now()})
	time.Sleep(5 * time.Millisecond)
	os.WriteFile(path, []byte("v2"), 0o644)
	d.Add(RawEvent{Path: path, Type: RawWrite, Timestamp: time.Now()})

	time.Sleep(150 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("expected exactly one coalesced change, got %d: %+v", len(got), got)
	}
	if got[0].Type != RawWrite {
		t.Errorf("expected last event (modified) to win, got %s", got[0].Type)
	}
}

func TestDebouncerDeleteShortCircuits(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	os.WriteFile(path, []byte("v1"), 0o644)

	var mu sync.Mutex
	var got []Change
	d := NewDebouncer(func(c Change) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, c)
	})
	d.window = 30 * time.Millisecond

	d.Add(RawEvent{Path: path, Type: RawRemove, Timestamp: time.Now()})
	d.Add(RawEvent{Path: path, Type: RawWrite, Timestamp: time.Now()})

	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0].Type != RawRemove {
		t.Fatalf("expected delete to short-circuit a later modified, got %+v", got)
	}
}

func TestDebouncerDropsUnchangedModified(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	os.WriteFile(path, []byte("v1"), 0o644)

	var mu sync.Mutex
	var got []Change
	d := NewDebouncer(func(c Change) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, c)
	})
	d.window = 20 * time.Millisecond

	// Prime the stat cache.
	d.Add(RawEvent{Path: path, Type: RawWrite, Timestamp: time.Now()})
	time.Sleep(60 * time.Millisecond)

	// Same size/mtime: the "touch" case should be dropped before the window.
	d.Add(RawEvent{Path: path, Type: RawWrite, Timestamp: time.Now()})
	time.Sleep(60 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("expected second identical-stat modified event to be dropped, got %d events", len(got))
	}
}

func TestNeedsPollingNonLinuxOrNonMnt(t *testing.T) {
	if NeedsPolling("/tmp/somewhere") {
		t.Error("a plain /tmp path should not require polling")
	}
}
