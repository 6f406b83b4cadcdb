package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/josephgoksu/obbywatch/internal/agent"
	"github.com/josephgoksu/obbywatch/internal/config"
	"github.com/josephgoksu/obbywatch/internal/eventbus"
	"github.com/josephgoksu/obbywatch/internal/insights"
	"github.com/josephgoksu/obbywatch/internal/livingnote"
	"github.com/josephgoksu/obbywatch/internal/llm"
	"github.com/josephgoksu/obbywatch/internal/patterns"
	"github.com/josephgoksu/obbywatch/internal/semanticindex"
	"github.com/josephgoksu/obbywatch/internal/sse"
	"github.com/josephgoksu/obbywatch/internal/store"
	"github.com/josephgoksu/obbywatch/internal/summarizer"
	"github.com/josephgoksu/obbywatch/internal/watch"
)

// noopSummarizer satisfies llm.Summarizer with empty, deterministic output,
// following the fakeSummarizer double internal/summarizer's own tests use.
type noopSummarizer struct{}

func (noopSummarizer) SummarizeDiffs(ctx context.Context, diffContext, style string, length, maxTokens int) string {
	return ""
}
func (noopSummarizer) GenerateProposedQuestions(ctx context.Context, context string) string { return "" }
func (noopSummarizer) GenerateSessionTitle(ctx context.Context, context string) string      { return "" }
func (noopSummarizer) GetCompletion(ctx context.Context, prompt string, opts llm.CompletionOptions) string {
	return ""
}

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	root := t.TempDir()
	layout := config.Layout{
		Root:          root,
		DatabasePath:  filepath.Join(root, "database", "obby.db"),
		NotesDir:      filepath.Join(root, "notes"),
		DailyNotesDir: filepath.Join(root, "notes", "daily"),
		SummariesDir:  filepath.Join(root, "notes", "summaries"),
		CrashLogDir:   filepath.Join(root, "database", "crash_logs"),
		WatchFile:     filepath.Join(root, ".obbywatch"),
		IgnoreFile:    filepath.Join(root, ".obbyignore"),
	}
	if err := layout.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}
	if err := os.WriteFile(layout.WatchFile, []byte("**/*.go\n"), 0o644); err != nil {
		t.Fatalf("write watch file: %v", err)
	}
	if err := os.WriteFile(layout.IgnoreFile, []byte(""), 0o644); err != nil {
		t.Fatalf("write ignore file: %v", err)
	}

	st, err := store.Open(layout.DatabasePath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	matcher := patterns.New(layout.Root, layout.WatchFile, layout.IgnoreFile)
	bus := eventbus.New(st)
	hub := sse.New()
	idx := semanticindex.New(st)
	note := livingnote.New(layout.NotesDir, livingnote.ModeSingle)
	registry := insights.NewRegistry()
	insights.RegisterBuiltins(registry)
	cancelSvc := agent.NewCancellationService()
	agentRegistry := agent.NewRegistry(agent.NewNotesSearchTool(idx), agent.NewHistoryTool(st))
	batch := summarizer.New(st, noopSummarizer{}, idx, note, layout.SummariesDir)

	srv := New("127.0.0.1:0", Deps{
		Layout:    layout,
		Store:     st,
		Matcher:   matcher,
		Bus:       bus,
		Hub:       hub,
		Batch:     batch,
		Index:     idx,
		Note:      note,
		Insights:  registry,
		CancelSvc: cancelSvc,
		Registry:  agentRegistry,
		NewOrchestrator: func() (*agent.Orchestrator, error) {
			return nil, errors.New("no orchestrator configured in test")
		},
		NewWatcher: func() *watch.Watcher {
			return watch.New(layout.Root, matcher, func(watch.Change) {})
		},
	})
	return srv, st
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func seedDiff(t *testing.T, st *store.Store, path, hash string) {
	t.Helper()
	if _, _, err := st.TrackChange(store.TrackedChange{
		FilePath:    path,
		ContentHash: hash,
		Content:     hash + "\n",
		LineCount:   1,
		ChangeType:  store.ChangeCreated,
		DiffContent: "+" + hash,
		LinesAdded:  1,
	}); err != nil {
		t.Fatalf("TrackChange: %v", err)
	}
}

func TestHandleStatus_ReportsNotMonitoring(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.routes(), http.MethodGet, "/api/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp StatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Monitoring {
		t.Fatalf("expected monitoring=false before start")
	}
}

func TestHandleMonitorStartStop(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := srv.routes()

	rec := doJSON(t, mux, http.MethodPost, "/api/monitor/start", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("start status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, mux, http.MethodGet, "/api/status", nil)
	var resp StatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.Monitoring {
		t.Fatalf("expected monitoring=true after start")
	}

	rec = doJSON(t, mux, http.MethodPost, "/api/monitor/stop", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stop status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestHandleFilesDiffs_PaginationAndFilter(t *testing.T) {
	srv, st := newTestServer(t)
	seedDiff(t, st, "a.go", "hash-a")
	seedDiff(t, st, "b.go", "hash-b")
	seedDiff(t, st, "a.go", "hash-a2")

	rec := doJSON(t, srv.routes(), http.MethodGet, "/api/files/diffs?limit=1&offset=0&file_path=a.go", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp DiffsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Diffs) != 1 {
		t.Fatalf("expected 1 diff, got %d", len(resp.Diffs))
	}
	if resp.Diffs[0].FilePath != "a.go" {
		t.Fatalf("expected a.go, got %q", resp.Diffs[0].FilePath)
	}
}

func TestHandleFilesDiffByID_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.routes(), http.MethodGet, "/api/files/diffs/999999", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestHandleFilesContent_RejectsUnwatchedPath(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.routes(), http.MethodGet, "/api/files/content/notes.txt", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestHandleFilesContent_RoundTrip(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := srv.routes()

	rec := doJSON(t, mux, http.MethodPut, "/api/files/content/main.go", FileContentWriteRequest{Content: "package main\n"})
	if rec.Code != http.StatusOK {
		t.Fatalf("put status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, mux, http.MethodGet, "/api/files/content/main.go", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp FileContentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Content != "package main\n" {
		t.Fatalf("content mismatch: %q", resp.Content)
	}
}

func TestHandleLivingNote_GetClear(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := srv.routes()

	rec := doJSON(t, mux, http.MethodGet, "/api/living-note", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, mux, http.MethodPost, "/api/living-note/clear", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("clear status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestHandleLivingNoteSettings_RejectsInvalidMode(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.routes(), http.MethodPost, "/api/living-note/settings", LivingNoteSettingsRequest{Mode: "weekly"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestHandleLivingNoteSettings_AcceptsDaily(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.routes(), http.MethodPost, "/api/living-note/settings", LivingNoteSettingsRequest{Mode: "daily"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if srv.note.Mode() != livingnote.ModeDaily {
		t.Fatalf("expected mode to switch to daily, got %q", srv.note.Mode())
	}
}

func TestHandleSearch_RequiresQuery(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.routes(), http.MethodGet, "/api/search", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestHandleInsightsAvailable(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.routes(), http.MethodGet, "/api/insights/available", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var names []insights.Metadata
	if err := json.Unmarshal(rec.Body.Bytes(), &names); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(names) == 0 {
		t.Fatalf("expected at least one registered insight")
	}
}

func TestHandleInsightsCalculate_RequiresID(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.routes(), http.MethodPost, "/api/insights/calculate", InsightCalculateRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestHandleChatMessage_RequiresMessage(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.routes(), http.MethodPost, "/api/chat/message", ChatMessageRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestHandleChatMessage_SurfacesOrchestratorFailure(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.routes(), http.MethodPost, "/api/chat/message", ChatMessageRequest{Message: "hello"})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestHandleChatTools(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.routes(), http.MethodGet, "/api/chat/tools", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var tools []ToolDescriptor
	if err := json.Unmarshal(rec.Body.Bytes(), &tools); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(tools) != 2 {
		t.Fatalf("expected 2 registered tools, got %d", len(tools))
	}
}

func TestHandleChatPing(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.routes(), http.MethodGet, "/api/chat/ping", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestHandleWatchPatterns_AddListDelete(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := srv.routes()

	rec := doJSON(t, mux, http.MethodPost, "/api/watch-config/watch-patterns", WatchConfigPatternRequest{Pattern: "**/*.md"})
	if rec.Code != http.StatusOK {
		t.Fatalf("add status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp WatchConfigPatternsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	found := false
	for _, p := range resp.Patterns {
		if p == "**/*.md" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected **/*.md in patterns, got %v", resp.Patterns)
	}

	rec = doJSON(t, mux, http.MethodDelete, "/api/watch-config/watch-patterns", WatchConfigPatternRequest{Pattern: "**/*.md"})
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, p := range resp.Patterns {
		if p == "**/*.md" {
			t.Fatalf("expected **/*.md removed, still present: %v", resp.Patterns)
		}
	}
}

func TestHandleValidatePattern(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := srv.routes()

	rec := doJSON(t, mux, http.MethodPost, "/api/watch-config/validate-pattern", ValidatePatternRequest{Pattern: "**/*.go"})
	var resp ValidatePatternResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.Valid {
		t.Fatalf("expected valid pattern, got reason %q", resp.Reason)
	}

	rec = doJSON(t, mux, http.MethodPost, "/api/watch-config/validate-pattern", ValidatePatternRequest{Pattern: "["})
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Valid {
		t.Fatalf("expected invalid pattern to be rejected")
	}
}

func TestHandleWatchConfigReload(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.routes(), http.MethodPost, "/api/watch-config/reload", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}
