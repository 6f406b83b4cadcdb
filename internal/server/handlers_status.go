package server

import (
	"net/http"
	"time"

	"github.com/josephgoksu/obbywatch/internal/apperr"
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.watchMu.Lock()
	monitoring := s.monitoring
	startedAt := s.startedAt
	s.watchMu.Unlock()

	events, err := s.store.RecentEvents(1)
	if err != nil {
		writeAppError(w, apperr.New(apperr.StoreFailure, "status.recent_events", err))
		return
	}
	var lastEventAt time.Time
	if len(events) > 0 {
		lastEventAt = events[0].Timestamp
	}

	writeJSON(w, http.StatusOK, StatusResponse{
		Monitoring:  monitoring,
		Root:        s.layout.Root,
		StartedAt:   startedAt,
		ClientCount: s.hub.ClientCount(),
		StrictMode:  s.matcher.StrictModeEmpty(),
		EventCount:  len(events),
		LastEventAt: lastEventAt,
	})
}

// handleMonitorStart starts the watcher if it is not already running.
// Strict-mode (empty watch list) refusal bubbles up from Watcher.Start as an
// InputRejected apperr.
func (s *Server) handleMonitorStart(w http.ResponseWriter, r *http.Request) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()

	if s.monitoring {
		writeJSON(w, http.StatusOK, map[string]bool{"started": true})
		return
	}
	if s.newWatcher == nil {
		writeAppError(w, apperr.New(apperr.ProtocolInvariantViolated, "monitor.start", errNoWatcherFactory))
		return
	}

	s.watcher = s.newWatcher()
	if err := s.watcher.Start(); err != nil {
		s.watcher = nil
		writeAppError(w, apperr.New(apperr.InputRejected, "monitor.start", err))
		return
	}
	s.monitoring = true
	s.startedAt = time.Now().UTC()
	writeJSON(w, http.StatusOK, map[string]bool{"started": true})
}

func (s *Server) handleMonitorStop(w http.ResponseWriter, r *http.Request) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()

	if !s.monitoring {
		writeJSON(w, http.StatusOK, map[string]bool{"stopped": true})
		return
	}
	s.watcher.Stop()
	s.watcher = nil
	s.monitoring = false
	writeJSON(w, http.StatusOK, map[string]bool{"stopped": true})
}
