package server

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/josephgoksu/obbywatch/internal/apperr"
	"github.com/josephgoksu/obbywatch/internal/sse"
)

func (s *Server) handleFilesEvents(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50, 1, 500)
	events, err := s.store.RecentEvents(limit)
	if err != nil {
		writeAppError(w, apperr.New(apperr.StoreFailure, "files.events", err))
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// handleFilesDiffs answers the paginated diff listing, optionally filtered
// by file_path. Store.RecentDiffs has no offset/file_path parameters, so
// pagination and filtering are applied in application code: without a
// filter the newest offset+limit rows are fetched; with one, every row is
// fetched so that older matches are not cut off before filtering.
func (s *Server) handleFilesDiffs(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50, 1, 500)
	offset := queryInt(r, "offset", 0, 0, 1_000_000)
	filePath := r.URL.Query().Get("file_path")

	fetch := offset + limit
	if filePath != "" {
		fetch = -1 // SQLite treats a negative LIMIT as no limit
	}
	diffs, err := s.store.RecentDiffs(fetch)
	if err != nil {
		writeAppError(w, apperr.New(apperr.StoreFailure, "files.diffs", err))
		return
	}

	if filePath != "" {
		filtered := diffs[:0:0]
		for _, d := range diffs {
			if d.FilePath == filePath {
				filtered = append(filtered, d)
			}
		}
		diffs = filtered
	}

	if offset >= len(diffs) {
		diffs = nil
	} else {
		end := offset + limit
		if end > len(diffs) {
			end = len(diffs)
		}
		diffs = diffs[offset:end]
	}

	out := make([]DiffSummary, 0, len(diffs))
	for _, d := range diffs {
		out = append(out, DiffSummary{
			ID:           d.ID,
			FilePath:     d.FilePath,
			ChangeType:   string(d.ChangeType),
			LinesAdded:   d.LinesAdded,
			LinesRemoved: d.LinesRemoved,
			Timestamp:    d.Timestamp,
		})
	}

	writeJSON(w, http.StatusOK, DiffsResponse{Diffs: out, Limit: limit, Offset: offset})
}

func (s *Server) handleFilesDiffByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeAppError(w, apperr.New(apperr.InputRejected, "files.diff_by_id", err))
		return
	}
	diff, err := s.store.GetContentDiff(id)
	if err != nil {
		writeAppError(w, apperr.New(apperr.StoreFailure, "files.diff_by_id", err))
		return
	}
	if diff == nil {
		writeError(w, http.StatusNotFound, "diff not found")
		return
	}
	writeJSON(w, http.StatusOK, diff)
}

// handleFilesContentGet reads the current content of a watched file
// straight off disk, rejecting any path that escapes the project root or
// that the Matcher would not watch.
func (s *Server) handleFilesContentGet(w http.ResponseWriter, r *http.Request) {
	rel := r.PathValue("path")
	abs, err := s.resolveWatchedPath(rel)
	if err != nil {
		writeAppError(w, err)
		return
	}

	content, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			writeError(w, http.StatusNotFound, "file not found")
			return
		}
		writeAppError(w, apperr.New(apperr.TransientIO, "files.content_get", err))
		return
	}

	state, err := s.store.GetFileState(rel)
	if err != nil {
		writeAppError(w, apperr.New(apperr.StoreFailure, "files.content_get", err))
		return
	}
	hash := ""
	if state != nil {
		hash = state.ContentHash
	}

	writeJSON(w, http.StatusOK, FileContentResponse{FilePath: rel, Content: string(content), ContentHash: hash})
}

// handleFilesContentPut performs an atomic write of a watched file, letting
// the normal watch -> debounce -> track pipeline observe the change rather
// than updating the Store directly here.
func (s *Server) handleFilesContentPut(w http.ResponseWriter, r *http.Request) {
	rel := r.PathValue("path")
	abs, err := s.resolveWatchedPath(rel)
	if err != nil {
		writeAppError(w, err)
		return
	}

	var req FileContentWriteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, apperr.New(apperr.InputRejected, "files.content_put", err))
		return
	}

	if err := atomicWriteFile(abs, []byte(req.Content)); err != nil {
		writeAppError(w, apperr.New(apperr.TransientIO, "files.content_put", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"written": true})
}

// handleFilesUpdatesStream serves the SSE feed of file_updated and
// living_note_updated broadcasts, per spec.md §4.10's connect/keepalive/
// disconnect-on-overflow contract.
func (s *Server) handleFilesUpdatesStream(w http.ResponseWriter, r *http.Request) {
	serveSSE(w, r, s.hub, s.log)
}

func (s *Server) resolveWatchedPath(rel string) (string, error) {
	if rel == "" {
		return "", apperr.New(apperr.InputRejected, "files.resolve_path", errEmptyPath)
	}
	abs := filepath.Join(s.layout.Root, rel)
	cleanRoot := filepath.Clean(s.layout.Root)
	if !strings.HasPrefix(filepath.Clean(abs), cleanRoot+string(os.PathSeparator)) && filepath.Clean(abs) != cleanRoot {
		return "", apperr.New(apperr.InputRejected, "files.resolve_path", errPathEscapesRoot)
	}
	if !s.matcher.Allows(abs) {
		return "", apperr.New(apperr.InputRejected, "files.resolve_path", errPathNotWatched)
	}
	return abs, nil
}

func atomicWriteFile(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".obbywatch-write-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// serveSSE drains hub onto the ResponseWriter using http.Flusher, emitting
// a connected event immediately, a keepalive on idle, and stopping cleanly
// when the client disconnects or the hub closes the channel (overflow).
func serveSSE(w http.ResponseWriter, r *http.Request, hub *sse.Hub, log interface {
	Warn(string, ...any)
}) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	id, ch, unregister := hub.Register()
	defer unregister()

	connected, err := sse.Encode(sse.Event{Name: "connected", Data: sse.ConnectedPayload{ClientID: id}})
	if err == nil {
		w.Write(connected)
		flusher.Flush()
	}

	keepaliveC, stopKeepalive := sse.Keepalive()
	defer stopKeepalive()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			payload, err := sse.Encode(ev)
			if err != nil {
				log.Warn("sse encode failed", "error", err)
				continue
			}
			w.Write(payload)
			flusher.Flush()
		case <-keepaliveC:
			w.Write([]byte(": keepalive\n\n"))
			flusher.Flush()
		}
	}
}

func queryInt(r *http.Request, key string, def, min, max int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min || n > max {
		return def
	}
	return n
}

var (
	errEmptyPath       = newStaticErr("path is required")
	errPathEscapesRoot = newStaticErr("path escapes project root")
	errPathNotWatched  = newStaticErr("path is not watched")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }

func newStaticErr(s string) error { return staticErr(s) }
