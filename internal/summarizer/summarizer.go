// Package summarizer implements C7: the scheduled batch job that turns
// accumulated diffs into a living-note update plus a SemanticIndex entry.
package summarizer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/josephgoksu/obbywatch/internal/livingnote"
	"github.com/josephgoksu/obbywatch/internal/llm"
	"github.com/josephgoksu/obbywatch/internal/semanticindex"
	"github.com/josephgoksu/obbywatch/internal/store"
)

const (
	configLastUpdateKey = "living_note_last_update"
	configFingerprint   = "batch_summarizer_last_fingerprint"
	defaultWindow       = -4 * time.Hour
	defaultTick         = 300 * time.Second
	defaultBatchCap     = 50
	maxDiffExcerpt      = 2000
)

const systemPrompt = "emit 1-3 concise outcome bullets; then a `### Sources` section listing files " +
	"with one-sentence rationales; if trivial, exactly `- no meaningful changes`."

// Result reports what one Run did, for logging and the HTTP status surface.
type Result struct {
	Updated bool
	Reason  string
}

// BatchSummarizer owns the single-flight scheduler loop.
type BatchSummarizer struct {
	store      *store.Store
	summarizer llm.Summarizer
	index      *semanticindex.Index
	note       *livingnote.Service
	summariesDir string

	tick     time.Duration
	batchCap int

	mu      sync.Mutex
	running bool
}

// New builds a BatchSummarizer. summariesDir is where individual-summary
// markdown files are dual-written (spec.md §4.8 step 7).
func New(st *store.Store, s llm.Summarizer, idx *semanticindex.Index, note *livingnote.Service, summariesDir string) *BatchSummarizer {
	return &BatchSummarizer{
		store:        st,
		summarizer:   s,
		index:        idx,
		note:         note,
		summariesDir: summariesDir,
		tick:         defaultTick,
		batchCap:     defaultBatchCap,
	}
}

// Tick returns the configured scheduler interval.
func (b *BatchSummarizer) Tick() time.Duration { return b.tick }

// SetTick overrides the scheduler interval. Must be called before Run.
func (b *BatchSummarizer) SetTick(d time.Duration) {
	if d > 0 {
		b.tick = d
	}
}

// SetBatchCap overrides how many diffs a single pass folds into one
// summary before deferring the rest to the next tick.
func (b *BatchSummarizer) SetBatchCap(n int) {
	if n > 0 {
		b.batchCap = n
	}
}

// Run starts the cooperative ticker loop; it returns when ctx is cancelled.
func (b *BatchSummarizer) Run(ctx context.Context) {
	ticker := time.NewTicker(b.tick)
	defer ticker.Stop()
	log := slog.With("component", "summarizer")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := b.RunOnce(ctx, false)
			if err != nil {
				log.Error("batch run failed", "error", err)
				continue
			}
			if res.Updated {
				log.Info("living note updated", "reason", res.Reason)
			}
		}
	}
}

// RunOnce executes a single batch pass. force skips the empty-diff short
// circuit (step 3) but not the dedup fingerprint check (step 6), matching
// the teacher's manual-trigger convention of forcing a check without
// bypassing idempotency.
func (b *BatchSummarizer) RunOnce(ctx context.Context, force bool) (Result, error) {
	if !b.mu.TryLock() {
		return Result{Updated: false, Reason: "already_running"}, nil
	}
	defer b.mu.Unlock()

	windowStart, err := b.windowStart()
	if err != nil {
		return Result{}, err
	}

	diffs, err := b.store.DiffsSince(windowStart)
	if err != nil {
		return Result{}, fmt.Errorf("summarizer: diffs since: %w", err)
	}
	diffs = excludeLivingNote(diffs, b.note.ExclusionPaths())

	if len(diffs) == 0 && !force {
		return Result{Updated: false}, nil
	}

	if len(diffs) > b.batchCap {
		diffs = diffs[:b.batchCap]
	}

	groups := groupByFile(diffs)
	fingerprint := computeFingerprint(groups)

	prev, ok, err := b.store.GetConfig(configFingerprint)
	if err != nil {
		return Result{}, err
	}
	if ok && prev == fingerprint {
		return Result{Updated: false, Reason: "dedup"}, nil
	}

	payload := formatPayload(groups)
	response := b.summarizer.SummarizeDiffs(ctx, payload, "concise", 150, 600)
	fellBack := strings.HasPrefix(response, "Error")
	if fellBack {
		response = fallbackSummary(groups)
	}

	extracted := semanticindex.Extract(response)
	sources := ensureSources(response, groups)
	title := b.summarizer.GenerateSessionTitle(ctx, payload)
	if strings.HasPrefix(title, "Error") {
		title = "Activity Update"
	}
	questions := ""
	if !fellBack {
		q := b.summarizer.GenerateProposedQuestions(ctx, payload)
		if !strings.HasPrefix(q, "Error") {
			questions = q
		}
	}

	now := time.Now().UTC()
	batch := livingnote.Batch{
		Title:             title,
		MetricsBlock:      metricsBlock(groups),
		OutcomeBullets:    extracted.Summary,
		ProposedQuestions: questions,
		Sources:           sources,
	}

	if _, err := b.note.Append(now, batch); err != nil {
		return Result{}, fmt.Errorf("summarizer: append living note: %w", err)
	}

	mdPath, err := b.note.WriteIndividualSummary(b.summariesDir, now, batch)
	if err != nil {
		return Result{}, fmt.Errorf("summarizer: write individual summary: %w", err)
	}

	_, err = b.index.Record(semanticindex.Entry{
		Timestamp:        now,
		Type:             "batch_summary",
		MarkdownFilePath: mdPath,
		SourceType:       "batch_summarizer",
		Extracted:        extracted,
	})
	if err != nil {
		if delErr := b.note.DeleteIndividualSummary(mdPath); delErr != nil {
			slog.Error("failed to compensate after semantic entry write failure", "error", delErr)
		}
		return Result{}, fmt.Errorf("summarizer: record semantic entry: %w", err)
	}

	if len(diffs) > 0 {
		latest := diffs[len(diffs)-1].Timestamp
		if err := b.store.SetConfig(configLastUpdateKey, latest.UTC().Format(time.RFC3339Nano), ""); err != nil {
			return Result{}, err
		}
	}
	if err := b.store.SetConfig(configFingerprint, fingerprint, ""); err != nil {
		return Result{}, err
	}

	return Result{Updated: true}, nil
}

func (b *BatchSummarizer) windowStart() (time.Time, error) {
	v, ok, err := b.store.GetConfig(configLastUpdateKey)
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		return time.Now().UTC().Add(defaultWindow), nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Now().UTC().Add(defaultWindow), nil
	}
	return t, nil
}

func excludeLivingNote(diffs []store.ContentDiff, excluded []string) []store.ContentDiff {
	if len(excluded) == 0 {
		return diffs
	}
	skip := make(map[string]bool, len(excluded))
	for _, p := range excluded {
		skip[p] = true
	}
	out := diffs[:0:0]
	for _, d := range diffs {
		if skip[d.FilePath] {
			continue
		}
		out = append(out, d)
	}
	return out
}

// fileGroup is the per-file micro-summary input spec.md §4.6 step 5 names.
type fileGroup struct {
	Path          string
	ChangesCount  int
	LinesAdded    int
	LinesRemoved  int
	CombinedDiff  string
}

func groupByFile(diffs []store.ContentDiff) []fileGroup {
	byPath := make(map[string]*fileGroup)
	var order []string
	for _, d := range diffs {
		g, ok := byPath[d.FilePath]
		if !ok {
			g = &fileGroup{Path: d.FilePath}
			byPath[d.FilePath] = g
			order = append(order, d.FilePath)
		}
		g.ChangesCount++
		g.LinesAdded += d.LinesAdded
		g.LinesRemoved += d.LinesRemoved
		if len(g.CombinedDiff) < maxDiffExcerpt {
			remaining := maxDiffExcerpt - len(g.CombinedDiff)
			excerpt := d.DiffContent
			if len(excerpt) > remaining {
				excerpt = excerpt[:remaining]
			}
			if g.CombinedDiff != "" {
				g.CombinedDiff += "\n"
			}
			g.CombinedDiff += excerpt
		}
	}
	sort.Strings(order)
	out := make([]fileGroup, 0, len(order))
	for _, p := range order {
		out = append(out, *byPath[p])
	}
	return out
}

func computeFingerprint(groups []fileGroup) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d", len(groups))
	total := 0
	var combined strings.Builder
	for _, g := range groups {
		total += g.ChangesCount
		combined.WriteString(g.CombinedDiff)
	}
	fmt.Fprintf(h, "\x00%d\x00", total)
	h.Write([]byte(combined.String()))
	return hex.EncodeToString(h.Sum(nil))
}

func formatPayload(groups []fileGroup) string {
	var sb strings.Builder
	sb.WriteString(systemPrompt)
	sb.WriteString("\n\nFiles considered:\n")
	for _, g := range groups {
		fmt.Fprintf(&sb, "- %s (%d changes, +%d/-%d)\n", g.Path, g.ChangesCount, g.LinesAdded, g.LinesRemoved)
	}
	sb.WriteString("\nDiff excerpts:\n")
	for _, g := range groups {
		fmt.Fprintf(&sb, "\n### %s\n%s\n", g.Path, g.CombinedDiff)
	}
	return sb.String()
}

func metricsBlock(groups []fileGroup) string {
	files := len(groups)
	var changes, added, removed int
	for _, g := range groups {
		changes += g.ChangesCount
		added += g.LinesAdded
		removed += g.LinesRemoved
	}
	return fmt.Sprintf("%d files changed, %d edits, +%d/-%d lines", files, changes, added, removed)
}

func fallbackSummary(groups []fileGroup) string {
	var sb strings.Builder
	for _, g := range groups {
		fmt.Fprintf(&sb, "- %s: %d changes (+%d/-%d)\n", g.Path, g.ChangesCount, g.LinesAdded, g.LinesRemoved)
	}
	return sb.String()
}

// ensureSources returns the response's own "### Sources" section if present,
// otherwise synthesizes one from the considered files (step 9).
func ensureSources(response string, groups []fileGroup) string {
	if idx := strings.Index(response, "### Sources"); idx >= 0 {
		body := strings.TrimSpace(response[idx+len("### Sources"):])
		if body != "" {
			return body
		}
	}
	var sb strings.Builder
	for i, g := range groups {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "- %s: %d changes", g.Path, g.ChangesCount)
	}
	return sb.String()
}
