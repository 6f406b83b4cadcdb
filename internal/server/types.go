package server

import "time"

// StatusResponse answers GET /api/status.
type StatusResponse struct {
	Monitoring   bool      `json:"monitoring"`
	Root         string    `json:"root"`
	StartedAt    time.Time `json:"startedAt,omitempty"`
	ClientCount  int       `json:"sseClients"`
	StrictMode   bool      `json:"strictModeEmpty"`
	EventCount   int       `json:"recentEventCount"`
	LastEventAt  time.Time `json:"lastEventAt,omitempty"`
}

// DiffsResponse answers the paginated GET /api/files/diffs.
type DiffsResponse struct {
	Diffs  []DiffSummary `json:"diffs"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// DiffSummary is one row of a paginated diff listing, omitting the full
// diff body (fetched separately via /api/files/diffs/{id}).
type DiffSummary struct {
	ID           int64     `json:"id"`
	FilePath     string    `json:"filePath"`
	ChangeType   string    `json:"changeType"`
	LinesAdded   int       `json:"linesAdded"`
	LinesRemoved int       `json:"linesRemoved"`
	Timestamp    time.Time `json:"timestamp"`
}

// FileContentResponse answers GET /api/files/content/{path}.
type FileContentResponse struct {
	FilePath    string `json:"filePath"`
	Content     string `json:"content"`
	ContentHash string `json:"contentHash"`
}

// FileContentWriteRequest is the payload for PUT /api/files/content/{path}.
type FileContentWriteRequest struct {
	Content string `json:"content"`
}

// LivingNoteUpdateRequest is the payload for POST /api/living-note/update —
// a manual trigger of the batch summarizer outside its normal tick.
type LivingNoteUpdateRequest struct {
	Force bool `json:"force"`
}

// LivingNoteSettingsRequest updates the living note's addressing mode.
type LivingNoteSettingsRequest struct {
	Mode string `json:"mode"` // "single" or "daily"
}

// SearchResponse answers GET /api/search.
type SearchResponse struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
}

// SearchResult is one scored semantic search hit.
type SearchResult struct {
	EntryID  int64     `json:"entryId"`
	Date     string    `json:"date"`
	Type     string    `json:"type"`
	Summary  string    `json:"summary"`
	Impact   string    `json:"impact"`
	FilePath string    `json:"filePath,omitempty"`
	Score    float64   `json:"score"`
	At       time.Time `json:"at"`
}

// InsightCalculateRequest is the payload for POST /api/insights/calculate.
type InsightCalculateRequest struct {
	ID     string         `json:"id"`
	Start  time.Time      `json:"start"`
	End    time.Time      `json:"end"`
	Config map[string]any `json:"config"`
}

// ChatMessageRequest is the payload for POST /api/chat/message.
type ChatMessageRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

// ChatMessageResponse answers POST /api/chat/message.
type ChatMessageResponse struct {
	SessionID string `json:"sessionId"`
	Reply     string `json:"reply"`
}

// ChatCompleteRequest is the payload for POST /api/chat/complete (graceful
// cancellation of an in-flight session).
type ChatCompleteRequest struct {
	SessionID string `json:"sessionId"`
	Task      string `json:"task"`
}

// ChatCompleteResponse answers POST /api/chat/complete.
type ChatCompleteResponse struct {
	Cancelled bool `json:"cancelled"`
}

// ToolDescriptor describes one registered agent tool for GET /api/chat/tools.
type ToolDescriptor struct {
	Name string `json:"name"`
	Desc string `json:"description"`
}

// WatchConfigPatternsResponse answers the watch/ignore pattern GET endpoints.
type WatchConfigPatternsResponse struct {
	Patterns []string `json:"patterns"`
}

// WatchConfigPatternRequest is the payload for POST/DELETE pattern endpoints.
type WatchConfigPatternRequest struct {
	Pattern string `json:"pattern"`
}

// ValidatePatternRequest is the payload for POST /api/watch-config/validate-pattern.
type ValidatePatternRequest struct {
	Pattern string `json:"pattern"`
}

// ValidatePatternResponse answers POST /api/watch-config/validate-pattern.
type ValidatePatternResponse struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}
