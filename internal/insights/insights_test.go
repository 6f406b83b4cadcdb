package insights

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/josephgoksu/obbywatch/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "obby.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func seedChange(t *testing.T, st *store.Store, path, content string, added, removed int, ts time.Time) {
	t.Helper()
	_, _, err := st.TrackChange(store.TrackedChange{
		FilePath:     path,
		ContentHash:  "h-" + ts.String(),
		Content:      content,
		LineCount:    1,
		ChangeType:   store.ChangeModified,
		DiffContent:  "+x",
		LinesAdded:   added,
		LinesRemoved: removed,
		FileSize:     int64(len(content)),
		Timestamp:    ts,
	})
	if err != nil {
		t.Fatalf("TrackChange: %v", err)
	}
}

func TestRegistryCalculateUnknownIDReportsErrorStatus(t *testing.T) {
	r := NewRegistry()
	res := r.Calculate("nonexistent", CalcContext{})
	if res.Status != StatusError {
		t.Errorf("expected StatusError, got %q", res.Status)
	}
}

func TestTotalActivityInsightCountsDiffsInRange(t *testing.T) {
	st := newTestStore(t)
	now := time.Now()
	seedChange(t, st, "a.go", "package a", 1, 0, now.Add(-time.Hour))
	seedChange(t, st, "b.go", "package b", 1, 0, now.Add(-time.Minute))

	r := NewRegistry()
	RegisterBuiltins(r)
	res := r.Calculate("total_activity", CalcContext{Store: st, Start: now.Add(-2 * time.Hour), End: now})
	if res.Status != StatusOK {
		t.Fatalf("unexpected status: %+v", res)
	}
	if res.Value.(int) != 2 {
		t.Errorf("expected 2 changes, got %v", res.Value)
	}
}

func TestPeakHourInsightReturnsWarningWhenEmpty(t *testing.T) {
	st := newTestStore(t)
	r := NewRegistry()
	RegisterBuiltins(r)
	res := r.Calculate("peak_hour", CalcContext{Store: st, Start: time.Now().Add(-time.Hour), End: time.Now()})
	if res.Status != StatusWarning {
		t.Errorf("expected StatusWarning for no data, got %q", res.Status)
	}
}

func TestCodeMetricsInsightReportsNetLines(t *testing.T) {
	st := newTestStore(t)
	now := time.Now()
	seedChange(t, st, "a.go", "x", 10, 2, now.Add(-time.Minute))

	r := NewRegistry()
	RegisterBuiltins(r)
	res := r.Calculate("code_metrics", CalcContext{Store: st, Start: now.Add(-time.Hour), End: now})
	if res.Value.(int) != 8 {
		t.Errorf("expected net 8 lines, got %v", res.Value)
	}
	if res.Trend != TrendUp {
		t.Errorf("expected upward trend, got %q", res.Trend)
	}
}

func TestStaleTodosInsightFindsTodoInOldFile(t *testing.T) {
	st := newTestStore(t)
	old := time.Now().Add(-60 * 24 * time.Hour)
	seedChange(t, st, "notes/a.md", "# Notes\nTODO: write more tests\n", 2, 0, old)

	r := NewRegistry()
	RegisterBuiltins(r)
	res := r.Calculate("stale_todos", CalcContext{Store: st})
	if res.Value.(int) != 1 {
		t.Errorf("expected 1 stale todo, got %v (%+v)", res.Value, res.Details)
	}
}

func TestOrphanMentionsInsightFindsUnknownWikilink(t *testing.T) {
	st := newTestStore(t)
	seedChange(t, st, "notes/a.md", "see [[missing-note]] for details", 1, 0, time.Now())

	r := NewRegistry()
	RegisterBuiltins(r)
	res := r.Calculate("orphan_mentions", CalcContext{Store: st})
	if res.Value.(int) != 1 {
		t.Errorf("expected 1 orphan mention, got %v (%+v)", res.Value, res.Details)
	}
}

func TestAvailableListsAllBuiltins(t *testing.T) {
	r := NewRegistry()
	RegisterBuiltins(r)
	if len(r.Available()) != 6 {
		t.Errorf("expected 6 builtins, got %d", len(r.Available()))
	}
}
