package server

import (
	"net/http"
	"time"

	"github.com/josephgoksu/obbywatch/internal/apperr"
	"github.com/josephgoksu/obbywatch/internal/livingnote"
	"github.com/josephgoksu/obbywatch/internal/sse"
)

// handleLivingNoteGet returns the current living note's raw markdown.
func (s *Server) handleLivingNoteGet(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	content, err := s.note.Read(now)
	if err != nil {
		writeAppError(w, apperr.New(apperr.TransientIO, "living_note.get", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"path":    s.note.CurrentPath(now),
		"content": content,
	})
}

// handleLivingNoteClear truncates the note back to its boilerplate header.
func (s *Server) handleLivingNoteClear(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	if err := s.note.Clear(now); err != nil {
		writeAppError(w, apperr.New(apperr.TransientIO, "living_note.clear", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

// handleLivingNoteUpdate forces an out-of-band BatchSummarizer pass,
// following the teacher's manual-trigger convention: force skips the
// empty-diff short circuit but not the dedup fingerprint check.
func (s *Server) handleLivingNoteUpdate(w http.ResponseWriter, r *http.Request) {
	var req LivingNoteUpdateRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeAppError(w, apperr.New(apperr.InputRejected, "living_note.update", err))
			return
		}
	}

	res, err := s.batch.RunOnce(r.Context(), req.Force)
	if err != nil {
		writeAppError(w, apperr.New(apperr.UpstreamLLMFailure, "living_note.update", err))
		return
	}
	if res.Updated {
		s.hub.PublishLivingNoteUpdated(sse.LivingNoteUpdatePayload{
			Path:      s.note.CurrentPath(time.Now().UTC()),
			Timestamp: time.Now().UTC(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"updated": res.Updated, "reason": res.Reason})
}

func (s *Server) handleLivingNoteSettingsGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"mode": string(s.note.Mode())})
}

func (s *Server) handleLivingNoteSettingsSet(w http.ResponseWriter, r *http.Request) {
	var req LivingNoteSettingsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, apperr.New(apperr.InputRejected, "living_note.settings_set", err))
		return
	}
	mode := livingnote.Mode(req.Mode)
	if mode != livingnote.ModeSingle && mode != livingnote.ModeDaily {
		writeAppError(w, apperr.New(apperr.InputRejected, "living_note.settings_set", errInvalidLivingNoteMode))
		return
	}
	s.note.SetMode(mode)
	if err := s.store.SetConfig("living_note_mode", string(mode), ""); err != nil {
		writeAppError(w, apperr.New(apperr.TransientIO, "living_note.settings_set", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"mode": string(mode)})
}

// handleLivingNoteEventsStream is the same SSE hub as the files stream,
// exposed under the living-note path per spec.md §6's route table listing
// both surfaces for client convenience.
func (s *Server) handleLivingNoteEventsStream(w http.ResponseWriter, r *http.Request) {
	serveSSE(w, r, s.hub, s.log)
}

var errInvalidLivingNoteMode = newStaticErr(`mode must be "single" or "daily"`)
