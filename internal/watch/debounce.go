package watch

import (
	"os"
	"sync"
	"time"
)

// Change is the debounced, coalesced event the ContentTracker receives.
// The Debouncer never sets OldPath (RawEvent carries no source path), so a
// move reaches the ContentTracker without its pre-move path.
type Change struct {
	Path      string
	OldPath   string
	Type      RawEventType
	Timestamp time.Time
}

// pathWindow tracks one path's pending debounce state.
type pathWindow struct {
	timer   *time.Timer
	latest  RawEvent
	deleted bool // a delete short-circuits: no later "modified" can resurrect it within the window
}

// Debouncer coalesces rapid raw events per path within a 500ms window,
// keeping only the last event, per spec.md §4.2. It also pre-validates
// "modified" events against a (size, mtime) cache so no-op writes never
// reach the ContentTracker. Events for different paths are delivered
// concurrently; events for the same path are strictly ordered by emission
// time because each path has its own single-flight timer.
type Debouncer struct {
	window time.Duration

	mu       sync.Mutex
	pending  map[string]*pathWindow
	statCache map[string]fileStat

	onChange func(Change)
	stopped  bool
}

// NewDebouncer constructs a Debouncer with the spec-mandated 500ms window.
func NewDebouncer(onChange func(Change)) *Debouncer {
	return &Debouncer{
		window:    500 * time.Millisecond,
		pending:   make(map[string]*pathWindow),
		statCache: make(map[string]fileStat),
		onChange:  onChange,
	}
}

// Add queues a raw event, resetting that path's window timer.
func (d *Debouncer) Add(ev RawEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if ev.Type == RawWrite && !d.contentMayHaveChanged(ev.Path) {
		return
	}

	pw, ok := d.pending[ev.Path]
	if !ok {
		pw = &pathWindow{}
		d.pending[ev.Path] = pw
	}

	if pw.deleted && ev.Type == RawWrite {
		// A delete short-circuits: no later "modified" can resurrect the
		// path within the same window.
		return
	}

	if ev.Type == RawRemove {
		pw.deleted = true
		delete(d.statCache, ev.Path)
	}

	pw.latest = ev
	if pw.timer != nil {
		pw.timer.Stop()
	}
	path := ev.Path
	pw.timer = time.AfterFunc(d.window, func() { d.flush(path) })
}

// contentMayHaveChanged applies the pre-validation cache check from
// spec.md §4.2: for "modified" events, compare (size, mtime) against the
// cache; if both are unchanged, the event never reaches the debounce
// window at all.
func (d *Debouncer) contentMayHaveChanged(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		// Can't stat it — let it through so the ContentTracker can decide.
		return true
	}
	cur := fileStat{size: info.Size(), modTime: info.ModTime()}
	prev, existed := d.statCache[path]
	d.statCache[path] = cur
	if !existed {
		return true
	}
	return cur.size != prev.size || !cur.modTime.Equal(prev.modTime)
}

func (d *Debouncer) flush(path string) {
	d.mu.Lock()
	pw, ok := d.pending[path]
	if !ok {
		d.mu.Unlock()
		return
	}
	delete(d.pending, path)
	latest := pw.latest
	d.mu.Unlock()

	if d.onChange != nil {
		d.onChange(Change{
			Path:      latest.Path,
			Type:      latest.Type,
			Timestamp: latest.Timestamp,
		})
	}
}

// Stop cancels all pending timers. No further events are delivered.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	for _, pw := range d.pending {
		if pw.timer != nil {
			pw.timer.Stop()
		}
	}
	d.pending = make(map[string]*pathWindow)
}
