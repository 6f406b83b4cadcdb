package server

import (
	"net/http"
	"time"

	"github.com/josephgoksu/obbywatch/internal/apperr"
	"github.com/josephgoksu/obbywatch/internal/insights"
)

func (s *Server) handleInsightsAvailable(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.insights.Available())
}

// handleInsightsCalculate dispatches to one named insight. A failure inside
// the insight is reported as insights.StatusError within a 200 response
// (the registry's own no-throw convention), not as an HTTP error — only a
// request-shape problem (missing id) is a 4xx here.
func (s *Server) handleInsightsCalculate(w http.ResponseWriter, r *http.Request) {
	var req InsightCalculateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, apperr.New(apperr.InputRejected, "insights.calculate", err))
		return
	}
	if req.ID == "" {
		writeAppError(w, apperr.New(apperr.InputRejected, "insights.calculate", errEmptyInsightID))
		return
	}

	start := req.Start
	end := req.End
	if end.IsZero() {
		end = time.Now().UTC()
	}
	if start.IsZero() {
		start = end.Add(-30 * 24 * time.Hour)
	}

	result := s.insights.Calculate(req.ID, insights.CalcContext{
		Store:  s.store,
		Start:  start,
		End:    end,
		Config: insights.Config(req.Config),
	})
	writeJSON(w, http.StatusOK, result)
}

// handleInsightsLayoutConfig reports a default dashboard layout — one card
// per registered insight, in registration order — for a client UI that has
// no saved layout of its own yet.
func (s *Server) handleInsightsLayoutConfig(w http.ResponseWriter, r *http.Request) {
	available := s.insights.Available()
	layout := make([]map[string]any, 0, len(available))
	for i, m := range available {
		layout = append(layout, map[string]any{
			"id":       m.ID,
			"position": i,
			"width":    "half",
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"cards": layout})
}

// handleInsightsSchema reports metadata only; insight-specific Config keys
// are intentionally untyped (insights.Config is a loose map), so the schema
// documents field names and types only for the parts that are uniform.
func (s *Server) handleInsightsSchema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"result": map[string]string{
			"value":   "any",
			"trend":   "up|down|flat",
			"details": "object",
			"chart":   "array of {label,value}",
			"status":  "ok|warning|error",
			"message": "string",
		},
		"insights": s.insights.Available(),
	})
}

var errEmptyInsightID = newStaticErr("id is required")
