package patterns

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeRules(t *testing.T, path string, lines ...string) {
	t.Helper()
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write rules: %v", err)
	}
}

func TestStrictModeEmptyWatchList(t *testing.T) {
	root := t.TempDir()
	watchFile := filepath.Join(root, ".obbywatch")
	ignoreFile := filepath.Join(root, ".obbyignore")
	writeRules(t, watchFile) // empty

	m := New(root, watchFile, ignoreFile)
	if !m.StrictModeEmpty() {
		t.Error("expected strict mode with empty watch file")
	}
	if m.ShouldWatch("notes/a.md") {
		t.Error("empty watch list should not match anything")
	}
}

func TestWatchAndIgnorePatterns(t *testing.T) {
	root := t.TempDir()
	watchFile := filepath.Join(root, ".obbywatch")
	ignoreFile := filepath.Join(root, ".obbyignore")
	writeRules(t, watchFile, "# comment", "", "notes/", "*.go")
	writeRules(t, ignoreFile, "*.tmp", "node_modules/")

	m := New(root, watchFile, ignoreFile)

	if !m.ShouldWatch("notes/a.md") {
		t.Error("expected notes/a.md to be watched (directory pattern)")
	}
	if !m.ShouldWatch("main.go") {
		t.Error("expected main.go to be watched (glob pattern)")
	}
	if m.ShouldWatch("README.md") {
		t.Error("README.md should not match any watch pattern")
	}

	if !m.ShouldIgnore("notes/scratch.tmp") {
		t.Error("expected *.tmp to be ignored regardless of directory")
	}
	if !m.ShouldIgnore("notes/node_modules/pkg/index.js") {
		t.Error("expected node_modules/ to ignore everything beneath it")
	}
	if m.ShouldIgnore("notes/a.md") {
		t.Error("notes/a.md should not be ignored")
	}

	if !m.Allows("notes/a.md") {
		t.Error("notes/a.md should be allowed: watched and not ignored")
	}
	if m.Allows("notes/scratch.tmp") {
		t.Error("notes/scratch.tmp is watched but ignored, should not be allowed")
	}
}

func TestHotReloadOnMtimeChange(t *testing.T) {
	root := t.TempDir()
	watchFile := filepath.Join(root, ".obbywatch")
	ignoreFile := filepath.Join(root, ".obbyignore")
	writeRules(t, watchFile, "*.md")
	writeRules(t, ignoreFile)

	m := New(root, watchFile, ignoreFile)
	if m.ShouldWatch("main.go") {
		t.Error("main.go should not initially be watched")
	}

	// Ensure a distinct mtime, then rewrite with an additional pattern.
	time.Sleep(10 * time.Millisecond)
	writeRules(t, watchFile, "*.md", "*.go")

	if !m.ShouldWatch("main.go") {
		t.Error("expected hot-reloaded watch file to pick up *.go")
	}
}

func TestUnreadableFileTreatedAsEmpty(t *testing.T) {
	root := t.TempDir()
	watchFile := filepath.Join(root, ".obbywatch")
	ignoreFile := filepath.Join(root, "does-not-exist-ignore")
	writeRules(t, watchFile, "*.md")

	m := New(root, watchFile, ignoreFile)
	if m.ShouldIgnore("notes/a.md") {
		t.Error("missing ignore file should behave as empty list, not error")
	}
}
