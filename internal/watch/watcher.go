// Package watch implements C2 (Watcher) and C3 (Debouncer): a deduplicated
// stream of (path, raw event type) pairs for paths that pass the
// PatternMatcher, produced by either a native filesystem-notification
// backend or a polling fallback.
//
// Grounded on the teacher's internal/agents/watch/agent.go (fsnotify setup,
// recursive directory watching, per-category debounce delay) and on
// saworbit/diffkeeper's addWatchRecursive (walking to attach watches to
// every subdirectory before files land in them, notably on platforms that
// only deliver a top-level CREATE for a deep mkdir).
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/josephgoksu/obbywatch/internal/patterns"
)

// RawEventType is the filesystem-level operation the Watcher observed,
// before the Debouncer folds it into the coarser set used downstream.
type RawEventType string

const (
	RawCreate RawEventType = "created"
	RawWrite  RawEventType = "modified"
	RawRemove RawEventType = "deleted"
	RawRename RawEventType = "moved"
)

// RawEvent is what the Watcher backend hands to the Debouncer.
type RawEvent struct {
	Path      string
	Type      RawEventType
	Timestamp time.Time
}

// Backend is the filesystem-notification source. Two implementations:
// nativeBackend (fsnotify) and pollBackend (periodic stat scan), selected
// at startup by inspecting the root path (spec.md §4.2).
type Backend interface {
	Start(ctx context.Context, out chan<- RawEvent) error
	Close() error
}

// NeedsPolling reports whether root sits on a filesystem where native
// notifications are unreliable — the canonical case being a Windows drive
// mounted into WSL. We detect this the same way the "inspect path
// properties" guidance in spec.md §4.2 implies: by checking for the
// conventional WSL drive-mount prefix, without requiring CGO or syscalls
// unavailable cross-platform.
func NeedsPolling(root string) bool {
	if runtime.GOOS != "linux" {
		return false
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	return strings.HasPrefix(abs, "/mnt/") && isWSL()
}

func isWSL() bool {
	data, err := os.ReadFile("/proc/version")
	if err != nil {
		return false
	}
	s := strings.ToLower(string(data))
	return strings.Contains(s, "microsoft") || strings.Contains(s, "wsl")
}

// Watcher monitors a directory tree for filesystem events, filters them
// through a PatternMatcher, and forwards the survivors to a Debouncer.
type Watcher struct {
	root      string
	matcher   *patterns.Matcher
	backend   Backend
	debouncer *Debouncer
	log       *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Watcher. It refuses to start (returns an error from
// Start, not here) if the matcher is in strict mode with no watch
// patterns — see spec.md §9's "Strict mode" glossary entry.
func New(root string, matcher *patterns.Matcher, onChange func(Change)) *Watcher {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		root:    root,
		matcher: matcher,
		ctx:     ctx,
		cancel:  cancel,
		log:     slog.With("component", "watcher"),
	}
	w.debouncer = NewDebouncer(onChange)
	return w
}

// Start selects a backend and begins the event loop. Returns an error
// immediately if the matcher's watch list is empty (strict mode).
func (w *Watcher) Start() error {
	if w.matcher.StrictModeEmpty() {
		return fmt.Errorf("watch: no watch patterns configured, refusing to start (strict mode)")
	}

	if NeedsPolling(w.root) {
		w.log.Info("using polling backend", "root", w.root, "reason", "foreign filesystem")
		w.backend = newPollBackend(w.root, w.matcher, time.Second)
	} else {
		nb, err := newNativeBackend(w.root, w.matcher)
		if err != nil {
			return fmt.Errorf("watch: create native backend: %w", err)
		}
		w.backend = nb
	}

	raw := make(chan RawEvent, 256)
	if err := w.backend.Start(w.ctx, raw); err != nil {
		return fmt.Errorf("watch: start backend: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case ev, ok := <-raw:
				if !ok {
					return
				}
				w.debouncer.Add(ev)
			case <-w.ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop halts the backend and the debouncer, waiting for in-flight work to
// drain.
func (w *Watcher) Stop() {
	w.cancel()
	if w.backend != nil {
		_ = w.backend.Close()
	}
	w.debouncer.Stop()
	w.wg.Wait()
}

// nativeBackend wraps fsnotify, adding watches recursively and re-adding
// newly created subdirectories as they appear.
type nativeBackend struct {
	root    string
	matcher *patterns.Matcher
	fsw     *fsnotify.Watcher
	log     *slog.Logger
}

func newNativeBackend(root string, matcher *patterns.Matcher) (*nativeBackend, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	nb := &nativeBackend{root: root, matcher: matcher, fsw: fsw, log: slog.With("component", "watcher.native")}
	if err := nb.addRecursive(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return nb, nil
}

// addRecursive walks the tree and attaches a watch to every directory not
// excluded by the matcher's ignore rules, mirroring diffkeeper's
// addWatchRecursive.
func (nb *nativeBackend) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && nb.matcher.ShouldIgnore(path) {
			return filepath.SkipDir
		}
		if addErr := nb.fsw.Add(path); addErr != nil {
			nb.log.Warn("failed to add watch", "path", path, "error", addErr)
		}
		return nil
	})
}

func (nb *nativeBackend) Start(ctx context.Context, out chan<- RawEvent) error {
	go func() {
		for {
			select {
			case event, ok := <-nb.fsw.Events:
				if !ok {
					return
				}
				if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() && event.Op&fsnotify.Create != 0 {
					_ = nb.fsw.Add(event.Name)
				}
				if !nb.matcher.Allows(event.Name) {
					continue
				}
				raw, ok := classify(event)
				if !ok {
					continue
				}
				select {
				case out <- RawEvent{Path: event.Name, Type: raw, Timestamp: time.Now()}:
				case <-ctx.Done():
					return
				}
			case err, ok := <-nb.fsw.Errors:
				if !ok {
					return
				}
				nb.log.Warn("watch error", "error", err)
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

func (nb *nativeBackend) Close() error {
	return nb.fsw.Close()
}

func classify(event fsnotify.Event) (RawEventType, bool) {
	switch {
	case event.Op&fsnotify.Create != 0:
		return RawCreate, true
	case event.Op&fsnotify.Write != 0:
		return RawWrite, true
	case event.Op&fsnotify.Remove != 0:
		return RawRemove, true
	case event.Op&fsnotify.Rename != 0:
		return RawRename, true
	default:
		return "", false
	}
}

// pollBackend periodically walks the tree comparing (size, mtime) against
// a cache, synthesizing created/modified/deleted events for a 1-second
// scan interval — the fallback path spec.md §4.2 mandates for unreliable
// mounts.
type pollBackend struct {
	root     string
	matcher  *patterns.Matcher
	interval time.Duration
	state    map[string]fileStat
	mu       sync.Mutex
	stop     chan struct{}
}

type fileStat struct {
	size    int64
	modTime time.Time
}

func newPollBackend(root string, matcher *patterns.Matcher, interval time.Duration) *pollBackend {
	return &pollBackend{
		root:     root,
		matcher:  matcher,
		interval: interval,
		state:    make(map[string]fileStat),
		stop:     make(chan struct{}),
	}
}

func (pb *pollBackend) Start(ctx context.Context, out chan<- RawEvent) error {
	go func() {
		ticker := time.NewTicker(pb.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				pb.scan(out)
			case <-pb.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

func (pb *pollBackend) scan(out chan<- RawEvent) {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	seen := make(map[string]bool, len(pb.state))
	_ = filepath.WalkDir(pb.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != pb.root && pb.matcher.ShouldIgnore(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if !pb.matcher.Allows(path) {
			return nil
		}
		info, statErr := d.Info()
		if statErr != nil {
			return nil
		}
		seen[path] = true
		cur := fileStat{size: info.Size(), modTime: info.ModTime()}
		prev, existed := pb.state[path]
		pb.state[path] = cur
		now := time.Now()
		if !existed {
			out <- RawEvent{Path: path, Type: RawCreate, Timestamp: now}
		} else if prev.size != cur.size || !prev.modTime.Equal(cur.modTime) {
			out <- RawEvent{Path: path, Type: RawWrite, Timestamp: now}
		}
		return nil
	})

	for path := range pb.state {
		if !seen[path] {
			delete(pb.state, path)
			out <- RawEvent{Path: path, Type: RawRemove, Timestamp: time.Now()}
		}
	}
}

func (pb *pollBackend) Close() error {
	close(pb.stop)
	return nil
}
