package server

import "net/http"

// isAllowedOrigin reports whether origin may receive CORS headers. An empty
// allowlist (no --allowed-origins configured) permits any origin, matching
// the single-user local-tool default; a non-empty one is a strict allowlist.
func (s *Server) isAllowedOrigin(origin string) bool {
	if len(s.origins) == 0 {
		return true
	}
	_, ok := s.origins[origin]
	return ok
}

// corsMiddleware mirrors the teacher's per-origin-allowlist implementation
// (preferred here over its own server.go's blanket wildcard): echo back only
// a known origin, set Vary so shared caches don't conflate per-origin
// responses, and reject disallowed preflights with 403 rather than silently
// omitting the CORS headers.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Vary", "Origin")
			if s.isAllowedOrigin(origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			}
		}

		if r.Method == "OPTIONS" {
			if origin != "" && !s.isAllowedOrigin(origin) {
				http.Error(w, "origin not allowed", http.StatusForbidden)
				return
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
