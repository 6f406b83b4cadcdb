// Package patterns implements the watch/ignore rule grammar the C2 Watcher
// and C4 ContentTracker consult before doing any work on a path.
//
// Grounded on mutagen-io/mutagen's ignore-pattern parser
// (pkg/synchronization/core/ignore/mutagen/ignore.go), which layers glob
// matching (github.com/bmatcuk/doublestar/v4) over a line-oriented rule
// file. obbywatch's grammar is simpler (no negation), but reuses the same
// "directory pattern vs. leaf pattern" split and the same glob engine.
package patterns

import (
	"bufio"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// rule is one parsed line from a watch or ignore file.
type rule struct {
	raw           string
	pattern       string
	directoryOnly bool // pattern ended in "/" — matches the dir and everything beneath it
}

// parseLine converts one non-comment, non-blank line into a rule. A
// trailing "/" marks a directory pattern, per spec.md §4.1.
func parseLine(line string) (rule, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return rule{}, false
	}
	dirOnly := strings.HasSuffix(line, "/")
	pattern := strings.TrimSuffix(line, "/")
	pattern = filepath.ToSlash(pattern)
	return rule{raw: line, pattern: pattern, directoryOnly: dirOnly}, true
}

// matches reports whether rel (a slash-separated, root-relative path)
// satisfies this rule. Directory patterns match the directory itself and
// anything beneath it; file patterns match the basename or the full
// relative path.
func (r rule) matches(rel, base string) bool {
	if r.directoryOnly {
		if rel == r.pattern {
			return true
		}
		if ok, _ := doublestar.Match(r.pattern, rel); ok {
			return true
		}
		if strings.HasPrefix(rel, r.pattern+"/") {
			return true
		}
		// A single-segment directory pattern matches that directory at any
		// depth, as in .gitignore.
		if !strings.Contains(r.pattern, "/") {
			for _, part := range strings.Split(rel, "/") {
				if ok, _ := doublestar.Match(r.pattern, part); ok {
					return true
				}
			}
		}
		return false
	}

	if ok, _ := doublestar.Match(r.pattern, rel); ok {
		return true
	}
	if ok, _ := doublestar.Match(r.pattern, base); ok {
		return true
	}
	// A bare directory-component pattern (no slash, no glob metachar) also
	// excludes any path that passes through a directory with that name —
	// this lets ".obbyignore" entries like "node_modules" behave the way
	// users expect from .gitignore without requiring a trailing slash.
	if !strings.ContainsAny(r.pattern, "*?[") && !strings.Contains(r.pattern, "/") {
		for _, part := range strings.Split(rel, "/") {
			if part == r.pattern {
				return true
			}
		}
	}
	return false
}

// ruleSet is a parsed, reload-tracked rule file.
type ruleSet struct {
	path    string
	mu      sync.RWMutex
	rules   []rule
	modTime time.Time
	loaded  bool
}

func newRuleSet(path string) *ruleSet {
	return &ruleSet{path: path}
}

// refresh reparses the file if its mtime has changed since the last load.
// Unreadable files are treated as an empty list and logged; malformed
// lines are simply skipped (spec.md §4.1 failure semantics).
func (rs *ruleSet) refresh() {
	info, err := os.Stat(rs.path)
	if err != nil {
		rs.mu.Lock()
		if rs.loaded && len(rs.rules) > 0 {
			slog.Warn("rule file unreadable, treating as empty", "path", rs.path, "error", err)
		}
		rs.rules = nil
		rs.loaded = true
		rs.modTime = time.Time{}
		rs.mu.Unlock()
		return
	}

	rs.mu.RLock()
	unchanged := rs.loaded && info.ModTime().Equal(rs.modTime)
	rs.mu.RUnlock()
	if unchanged {
		return
	}

	f, err := os.Open(rs.path)
	if err != nil {
		slog.Warn("rule file open failed, treating as empty", "path", rs.path, "error", err)
		rs.mu.Lock()
		rs.rules = nil
		rs.loaded = true
		rs.mu.Unlock()
		return
	}
	defer f.Close()

	var parsed []rule
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if r, ok := parseLine(scanner.Text()); ok {
			parsed = append(parsed, r)
		}
	}

	rs.mu.Lock()
	rs.rules = parsed
	rs.modTime = info.ModTime()
	rs.loaded = true
	rs.mu.Unlock()
}

func (rs *ruleSet) matchAny(rel, base string) bool {
	rs.refresh()
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	for _, r := range rs.rules {
		if r.matches(rel, base) {
			return true
		}
	}
	return false
}

func (rs *ruleSet) isEmpty() bool {
	rs.refresh()
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return len(rs.rules) == 0
}

// Matcher evaluates the watch list and ignore list against candidate paths.
// It hot-reloads either file whenever its mtime changes, so rule edits take
// effect on the very next check — never stale for more than one debounce
// interval, per spec.md §4.1.
type Matcher struct {
	root    string
	watch   *ruleSet
	ignore  *ruleSet
}

// New constructs a Matcher rooted at root, reading watchFile and
// ignoreFile (paths may be relative to root or absolute).
func New(root, watchFile, ignoreFile string) *Matcher {
	return &Matcher{
		root:   root,
		watch:  newRuleSet(watchFile),
		ignore: newRuleSet(ignoreFile),
	}
}

func (m *Matcher) relAndBase(path string) (rel, base string) {
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(m.root, path)
	}
	r, err := filepath.Rel(m.root, abs)
	if err != nil {
		r = path
	}
	return filepath.ToSlash(r), filepath.Base(abs)
}

// StrictModeEmpty reports whether the watch list is empty — i.e. strict
// mode is in effect and the Watcher must refuse to start (spec.md §4.1).
func (m *Matcher) StrictModeEmpty() bool {
	return m.watch.isEmpty()
}

// ShouldWatch reports whether path matches a watch pattern.
func (m *Matcher) ShouldWatch(path string) bool {
	rel, base := m.relAndBase(path)
	return m.watch.matchAny(rel, base)
}

// ShouldIgnore reports whether path matches an ignore pattern.
func (m *Matcher) ShouldIgnore(path string) bool {
	rel, base := m.relAndBase(path)
	return m.ignore.matchAny(rel, base)
}

// Allows is the combined decision the rest of the pipeline consults: the
// path must be watched and must not be ignored.
func (m *Matcher) Allows(path string) bool {
	return m.ShouldWatch(path) && !m.ShouldIgnore(path)
}
