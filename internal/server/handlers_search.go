package server

import (
	"net/http"

	"github.com/josephgoksu/obbywatch/internal/apperr"
)

// handleSearch implements GET /api/search?q&limit[&type], delegating to the
// SemanticIndex's weighted-scoring contract (spec.md §4.9).
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeAppError(w, apperr.New(apperr.InputRejected, "search", errEmptyQuery))
		return
	}
	limit := queryInt(r, "limit", 20, 1, 200)
	typeFilter := r.URL.Query().Get("type")

	results, err := s.index.Search(q, limit, typeFilter)
	if err != nil {
		writeAppError(w, apperr.New(apperr.StoreFailure, "search", err))
		return
	}

	out := make([]SearchResult, 0, len(results))
	for _, res := range results {
		out = append(out, SearchResult{
			EntryID:  res.Entry.ID,
			Date:     res.Entry.Date,
			Type:     res.Entry.Type,
			Summary:  res.Entry.Summary,
			Impact:   string(res.Entry.Impact),
			FilePath: res.Entry.FilePath,
			Score:    res.Score,
			At:       res.Entry.Timestamp,
		})
	}

	writeJSON(w, http.StatusOK, SearchResponse{Query: q, Results: out})
}

var errEmptyQuery = newStaticErr("q is required")
