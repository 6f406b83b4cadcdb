// Package livingnote implements C8: the atomic append-only rolling summary
// file the BatchSummarizer writes to after each successful batch.
package livingnote

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Mode selects how the living note file is addressed.
type Mode string

const (
	ModeSingle Mode = "single"
	ModeDaily  Mode = "daily"
)

// Batch is everything the BatchSummarizer has on hand for one write.
type Batch struct {
	Title             string // from Summarizer.GenerateSessionTitle
	MetricsBlock      string // deterministic metrics text
	OutcomeBullets    string // the LLM's (or fallback) outcome bullets, pre-formatted
	ProposedQuestions string // optional, already "- " prefixed lines or empty
	Sources           string // "### Sources" body (file list), guaranteed non-empty when files were considered
}

// Service writes and reads the living note file(s) under a configured root.
type Service struct {
	root string // NotesDir from config.Layout
	mode Mode
	log  *slog.Logger

	// excluded holds paths (relative to the watched tree) the living note
	// service owns, so BatchSummarizer and ContentTracker can skip feeding
	// the note's own writes back into itself.
	excluded map[string]bool
}

// New builds a Service rooted at notesDir, in the given mode.
func New(notesDir string, mode Mode) *Service {
	return &Service{
		root:     notesDir,
		mode:     mode,
		log:      slog.With("component", "livingnote"),
		excluded: make(map[string]bool),
	}
}

// ExclusionPaths returns every path the living note currently owns, for
// BatchSummarizer's diffs_since filter. ContentTracker does not consult it.
func (s *Service) ExclusionPaths() []string {
	out := make([]string, 0, len(s.excluded))
	for p := range s.excluded {
		out = append(out, p)
	}
	return out
}

// targetPath resolves the note file path for "now" given the service mode.
func (s *Service) targetPath(now time.Time) string {
	if s.mode == ModeDaily {
		return filepath.Join(s.root, now.Format("2006-01-02")+".md")
	}
	return filepath.Join(s.root, "living-note.md")
}

// CurrentPath exposes targetPath for callers (the HTTP API) that need to
// locate the note file without writing to it.
func (s *Service) CurrentPath(now time.Time) string {
	return s.targetPath(now)
}

// Mode reports the service's current addressing mode.
func (s *Service) Mode() Mode {
	return s.mode
}

// SetMode switches the addressing mode ("single" or "daily") for
// subsequent Append calls, leaving any already-written files untouched.
func (s *Service) SetMode(m Mode) {
	s.mode = m
}

// Read returns the current note file's content, or "" if it has not been
// written yet.
func (s *Service) Read(now time.Time) (string, error) {
	content, err := os.ReadFile(s.targetPath(now))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("livingnote: read: %w", err)
	}
	return string(content), nil
}

// Clear truncates the current note file back to its boilerplate header.
func (s *Service) Clear(now time.Time) error {
	target := s.targetPath(now)
	if _, err := os.Stat(target); os.IsNotExist(err) {
		return nil
	}
	return atomicWrite(target, []byte(boilerplateHeader))
}

const boilerplateHeader = "# Living Note\n\nAutomatically maintained summary of recent activity.\n"

// Append writes b as a new session block at the top of the living note,
// following spec.md §4.8's write protocol: read-or-create, compose,
// temp-write, fsync, atomic rename, then a short sleep so the debouncer
// coalesces this write into exactly one observed modification.
func (s *Service) Append(now time.Time, b Batch) (string, error) {
	target := s.targetPath(now)
	s.excluded[relOrSelf(s.root, target)] = true

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("livingnote: mkdir: %w", err)
	}

	existing, err := os.ReadFile(target)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("livingnote: read existing: %w", err)
		}
		existing = []byte(boilerplateHeader)
	}

	block := s.formatSessionBlock(now, b)
	newContent := block + "\n---\n\n" + string(existing)

	if err := atomicWrite(target, []byte(newContent)); err != nil {
		return "", err
	}

	// Give the Watcher's debouncer a chance to observe exactly one
	// modification instead of racing the next tick's diff scan.
	time.Sleep(100 * time.Millisecond)

	return target, nil
}

func (s *Service) formatSessionBlock(now time.Time, b Batch) string {
	var sb strings.Builder
	title := b.Title
	if title == "" {
		title = "Activity Update"
	}
	fmt.Fprintf(&sb, "## %s\n", title)
	fmt.Fprintf(&sb, "_%s_\n\n", now.Format("Mon Jan 2, 2006 3:04 PM"))

	if b.MetricsBlock != "" {
		sb.WriteString(b.MetricsBlock)
		sb.WriteString("\n\n")
	}
	sb.WriteString(b.OutcomeBullets)
	sb.WriteString("\n")

	if b.ProposedQuestions != "" {
		sb.WriteString("\n### Proposed Questions for AI Agent\n")
		sb.WriteString(b.ProposedQuestions)
		sb.WriteString("\n")
	}

	sb.WriteString("\n### Sources\n")
	if b.Sources != "" {
		sb.WriteString(b.Sources)
	} else {
		sb.WriteString("- no files considered")
	}
	sb.WriteString("\n")

	return sb.String()
}

// WriteIndividualSummary performs the dual write spec.md §4.8 step 7
// describes: a standalone markdown file per batch, under outputDir. The
// caller is expected to write the corresponding SemanticEntry row after
// this returns, and to call DeleteIndividualSummary as a compensating
// action if that write fails.
func (s *Service) WriteIndividualSummary(outputDir string, now time.Time, b Batch) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("livingnote: mkdir summaries dir: %w", err)
	}
	name := fmt.Sprintf("%s-%s.md", now.Format("2006-01-02T15-04-05"), slug(b.Title))
	path := filepath.Join(outputDir, name)

	content := s.formatSessionBlock(now, b)
	if err := atomicWrite(path, []byte(content)); err != nil {
		return "", err
	}
	return path, nil
}

// DeleteIndividualSummary removes a previously written individual summary
// file. Used to compensate for a failed SemanticEntry write.
func (s *Service) DeleteIndividualSummary(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.log.Error("failed to remove individual summary after write failure", "path", path, "error", err)
		return err
	}
	return nil
}

func atomicWrite(path string, content []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".livingnote-*.tmp")
	if err != nil {
		return fmt.Errorf("livingnote: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("livingnote: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("livingnote: fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("livingnote: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("livingnote: rename into place: %w", err)
	}
	return nil
}

func relOrSelf(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return rel
}

func slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "summary"
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteRune('-')
		}
	}
	out := b.String()
	if out == "" {
		return "summary"
	}
	return out
}
