package server

import (
	"bufio"
	"net/http"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/josephgoksu/obbywatch/internal/apperr"
)

func (s *Server) handleWatchPatternsGet(w http.ResponseWriter, r *http.Request) {
	s.respondPatterns(w, s.layout.WatchFile)
}

func (s *Server) handleWatchPatternsAdd(w http.ResponseWriter, r *http.Request) {
	s.addPattern(w, r, s.layout.WatchFile)
}

func (s *Server) handleWatchPatternsDelete(w http.ResponseWriter, r *http.Request) {
	s.deletePattern(w, r, s.layout.WatchFile)
}

func (s *Server) handleIgnorePatternsGet(w http.ResponseWriter, r *http.Request) {
	s.respondPatterns(w, s.layout.IgnoreFile)
}

func (s *Server) handleIgnorePatternsAdd(w http.ResponseWriter, r *http.Request) {
	s.addPattern(w, r, s.layout.IgnoreFile)
}

func (s *Server) handleIgnorePatternsDelete(w http.ResponseWriter, r *http.Request) {
	s.deletePattern(w, r, s.layout.IgnoreFile)
}

// handleWatchConfigReload is a no-op trigger: the Matcher already hot-
// reloads either rule file whenever its mtime changes (patterns.Matcher),
// so this endpoint exists purely to give a client UI an explicit "I just
// edited the file, confirm it took" affordance.
func (s *Server) handleWatchConfigReload(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"reloaded": true})
}

// handleValidatePattern checks glob syntax without touching either rule
// file, using the same doublestar engine the Matcher matches against.
func (s *Server) handleValidatePattern(w http.ResponseWriter, r *http.Request) {
	var req ValidatePatternRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, apperr.New(apperr.InputRejected, "watch_config.validate", err))
		return
	}
	pattern := strings.TrimSuffix(req.Pattern, "/")
	if pattern == "" {
		writeJSON(w, http.StatusOK, ValidatePatternResponse{Valid: false, Reason: "pattern is empty"})
		return
	}
	if !doublestar.ValidatePattern(pattern) {
		writeJSON(w, http.StatusOK, ValidatePatternResponse{Valid: false, Reason: "invalid glob syntax"})
		return
	}
	writeJSON(w, http.StatusOK, ValidatePatternResponse{Valid: true})
}

func (s *Server) respondPatterns(w http.ResponseWriter, path string) {
	patterns, err := readPatternLines(path)
	if err != nil {
		writeAppError(w, apperr.New(apperr.TransientIO, "watch_config.read", err))
		return
	}
	writeJSON(w, http.StatusOK, WatchConfigPatternsResponse{Patterns: patterns})
}

func (s *Server) addPattern(w http.ResponseWriter, r *http.Request, path string) {
	var req WatchConfigPatternRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, apperr.New(apperr.InputRejected, "watch_config.add", err))
		return
	}
	if req.Pattern == "" {
		writeAppError(w, apperr.New(apperr.InputRejected, "watch_config.add", errEmptyPattern))
		return
	}

	patterns, err := readPatternLines(path)
	if err != nil {
		writeAppError(w, apperr.New(apperr.TransientIO, "watch_config.add", err))
		return
	}
	for _, p := range patterns {
		if p == req.Pattern {
			writeJSON(w, http.StatusOK, WatchConfigPatternsResponse{Patterns: patterns})
			return
		}
	}
	patterns = append(patterns, req.Pattern)
	if err := writePatternLines(path, patterns); err != nil {
		writeAppError(w, apperr.New(apperr.TransientIO, "watch_config.add", err))
		return
	}
	writeJSON(w, http.StatusOK, WatchConfigPatternsResponse{Patterns: patterns})
}

func (s *Server) deletePattern(w http.ResponseWriter, r *http.Request, path string) {
	var req WatchConfigPatternRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, apperr.New(apperr.InputRejected, "watch_config.delete", err))
		return
	}

	patterns, err := readPatternLines(path)
	if err != nil {
		writeAppError(w, apperr.New(apperr.TransientIO, "watch_config.delete", err))
		return
	}
	out := patterns[:0:0]
	for _, p := range patterns {
		if p != req.Pattern {
			out = append(out, p)
		}
	}
	if err := writePatternLines(path, out); err != nil {
		writeAppError(w, apperr.New(apperr.TransientIO, "watch_config.delete", err))
		return
	}
	writeJSON(w, http.StatusOK, WatchConfigPatternsResponse{Patterns: out})
}

func readPatternLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, scanner.Err()
}

func writePatternLines(path string, patterns []string) error {
	var sb strings.Builder
	for _, p := range patterns {
		sb.WriteString(p)
		sb.WriteString("\n")
	}
	return atomicWriteFile(path, []byte(sb.String()))
}

var errEmptyPattern = newStaticErr("pattern is required")
