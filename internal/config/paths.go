// Package config resolves the on-disk layout obbywatch persists to and
// holds the project context detected at CLI startup.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/josephgoksu/obbywatch/internal/project"
	"github.com/spf13/viper"
)

// Errors for fail-fast behavior.
var (
	ErrProjectContextNotSet = errors.New("project context not initialized: call SetProjectContext during CLI init")
	ErrDetectionFailed      = errors.New("project detection failed")
)

// projectContext holds the detected project context. Set during CLI
// initialization and used by every path helper below.
var (
	projectContext   *project.Context
	projectContextMu sync.RWMutex
)

// SetProjectContext sets the detected project context. Must be called
// during CLI initialization before any command that needs project context.
func SetProjectContext(ctx *project.Context) {
	if ctx == nil {
		panic("SetProjectContext called with nil context")
	}
	projectContextMu.Lock()
	defer projectContextMu.Unlock()
	projectContext = ctx
}

// ClearProjectContext resets the project context. Only use in tests.
func ClearProjectContext() {
	projectContextMu.Lock()
	defer projectContextMu.Unlock()
	projectContext = nil
}

// GetProjectContext returns the detected project context, or nil if unset.
func GetProjectContext() *project.Context {
	projectContextMu.RLock()
	defer projectContextMu.RUnlock()
	return projectContext
}

// DetectAndSetProjectContext detects the project root from the working
// directory and sets it. Returns an error if detection fails outright —
// no silent fallbacks.
func DetectAndSetProjectContext() (*project.Context, error) {
	if ctx := GetProjectContext(); ctx != nil {
		return ctx, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}

	ctx, err := project.Detect(cwd)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDetectionFailed, err)
	}

	SetProjectContext(ctx)
	return ctx, nil
}

// GetProjectRoot returns the detected project root path.
func GetProjectRoot() (string, error) {
	ctx := GetProjectContext()
	if ctx == nil {
		return "", ErrProjectContextNotSet
	}
	if ctx.RootPath == "" {
		return "", fmt.Errorf("project context has empty RootPath")
	}
	return ctx.RootPath, nil
}

// Layout describes the persisted-state filesystem layout for one project
// root, per spec.md §6.
type Layout struct {
	Root          string // project root, holds .obbywatch and .obbyignore
	DatabasePath  string // database/obby.db
	NotesDir      string // notes/
	DailyNotesDir string // notes/daily/
	SummariesDir  string // output directory for individual summary markdown files
	CrashLogDir   string // database/crash_logs
	WatchFile     string // .obbywatch rule file (watch patterns)
	IgnoreFile    string // .obbyignore rule file
}

// ResolveLayout builds the Layout rooted at root, honoring Viper overrides
// for each path (flags/config file/env always win over the convention).
func ResolveLayout(root string) Layout {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = filepath.Join(root, "database", "obby.db")
	}
	notesDir := viper.GetString("notes.dir")
	if notesDir == "" {
		notesDir = filepath.Join(root, "notes")
	}
	dailyDir := viper.GetString("notes.dailyDir")
	if dailyDir == "" {
		dailyDir = filepath.Join(notesDir, "daily")
	}
	summariesDir := viper.GetString("notes.summariesDir")
	if summariesDir == "" {
		summariesDir = filepath.Join(notesDir, "summaries")
	}

	return Layout{
		Root:          root,
		DatabasePath:  dbPath,
		NotesDir:      notesDir,
		DailyNotesDir: dailyDir,
		SummariesDir:  summariesDir,
		CrashLogDir:   filepath.Join(filepath.Dir(dbPath), "crash_logs"),
		WatchFile:     filepath.Join(root, ".obbywatch"),
		IgnoreFile:    filepath.Join(root, ".obbyignore"),
	}
}

// EnsureDirs creates every directory the Layout references.
func (l Layout) EnsureDirs() error {
	dirs := []string{
		filepath.Dir(l.DatabasePath),
		l.NotesDir,
		l.DailyNotesDir,
		l.SummariesDir,
		l.CrashLogDir,
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", d, err)
		}
	}
	return nil
}
