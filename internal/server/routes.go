package server

import "net/http"

// routes builds the full HTTP route table spec.md §6 describes, using Go
// 1.22's method+path mux patterns the way the teacher's server.go does.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/monitor/start", s.handleMonitorStart)
	mux.HandleFunc("POST /api/monitor/stop", s.handleMonitorStop)

	mux.HandleFunc("GET /api/files/events", s.handleFilesEvents)
	mux.HandleFunc("GET /api/files/diffs", s.handleFilesDiffs)
	mux.HandleFunc("GET /api/files/diffs/{id}", s.handleFilesDiffByID)
	mux.HandleFunc("GET /api/files/content/{path...}", s.handleFilesContentGet)
	mux.HandleFunc("PUT /api/files/content/{path...}", s.handleFilesContentPut)
	mux.HandleFunc("GET /api/files/updates/stream", s.handleFilesUpdatesStream)

	mux.HandleFunc("GET /api/living-note", s.handleLivingNoteGet)
	mux.HandleFunc("POST /api/living-note/clear", s.handleLivingNoteClear)
	mux.HandleFunc("POST /api/living-note/update", s.handleLivingNoteUpdate)
	mux.HandleFunc("GET /api/living-note/settings", s.handleLivingNoteSettingsGet)
	mux.HandleFunc("POST /api/living-note/settings", s.handleLivingNoteSettingsSet)
	mux.HandleFunc("GET /api/living-note/events", s.handleLivingNoteEventsStream)

	mux.HandleFunc("GET /api/search", s.handleSearch)

	mux.HandleFunc("GET /api/insights/available", s.handleInsightsAvailable)
	mux.HandleFunc("POST /api/insights/calculate", s.handleInsightsCalculate)
	mux.HandleFunc("GET /api/insights/layout-config", s.handleInsightsLayoutConfig)
	mux.HandleFunc("GET /api/insights/schema", s.handleInsightsSchema)

	mux.HandleFunc("POST /api/chat/message", s.handleChatMessage)
	mux.HandleFunc("POST /api/chat/complete", s.handleChatComplete)
	mux.HandleFunc("GET /api/chat/tools", s.handleChatTools)
	mux.HandleFunc("GET /api/chat/ping", s.handleChatPing)

	mux.HandleFunc("GET /api/watch-config/watch-patterns", s.handleWatchPatternsGet)
	mux.HandleFunc("POST /api/watch-config/watch-patterns", s.handleWatchPatternsAdd)
	mux.HandleFunc("DELETE /api/watch-config/watch-patterns", s.handleWatchPatternsDelete)
	mux.HandleFunc("GET /api/watch-config/ignore-patterns", s.handleIgnorePatternsGet)
	mux.HandleFunc("POST /api/watch-config/ignore-patterns", s.handleIgnorePatternsAdd)
	mux.HandleFunc("DELETE /api/watch-config/ignore-patterns", s.handleIgnorePatternsDelete)
	mux.HandleFunc("POST /api/watch-config/reload", s.handleWatchConfigReload)
	mux.HandleFunc("POST /api/watch-config/validate-pattern", s.handleValidatePattern)

	return mux
}
