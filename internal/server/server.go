// Package server implements C13: the HTTP API surface over the pipeline
// — status/monitor control, file history, living-note access, search,
// insights, the chat/agent endpoints, SSE streaming, and watch-config
// management.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/josephgoksu/obbywatch/internal/agent"
	"github.com/josephgoksu/obbywatch/internal/apperr"
	"github.com/josephgoksu/obbywatch/internal/config"
	"github.com/josephgoksu/obbywatch/internal/eventbus"
	"github.com/josephgoksu/obbywatch/internal/insights"
	"github.com/josephgoksu/obbywatch/internal/livingnote"
	"github.com/josephgoksu/obbywatch/internal/patterns"
	"github.com/josephgoksu/obbywatch/internal/semanticindex"
	"github.com/josephgoksu/obbywatch/internal/sse"
	"github.com/josephgoksu/obbywatch/internal/store"
	"github.com/josephgoksu/obbywatch/internal/summarizer"
	"github.com/josephgoksu/obbywatch/internal/watch"
)

const gracefulShutdownWindow = 5 * time.Second

var errNoWatcherFactory = errors.New("server: no watcher factory configured")

// Server owns the HTTP surface and every long-lived dependency a handler
// may need: the Store, the running Watcher (nil until monitoring starts),
// the EventBus, the SSE hub, the Summarizer, the SemanticIndex, the
// LivingNote service, the insights registry, and the agent orchestrator.
type Server struct {
	layout     config.Layout
	store      *store.Store
	matcher    *patterns.Matcher
	bus        *eventbus.Bus
	hub        *sse.Hub
	batch      *summarizer.BatchSummarizer
	index      *semanticindex.Index
	note       *livingnote.Service
	insights   *insights.Registry
	cancelSvc  *agent.CancellationService
	registry   *agent.Registry
	orchestrator func() (*agent.Orchestrator, error)
	log        *slog.Logger

	origins map[string]bool

	watchMu    sync.Mutex
	watcher    *watch.Watcher
	newWatcher func() *watch.Watcher
	monitoring bool
	startedAt  time.Time

	httpServer *http.Server
}

// Deps bundles every dependency Server needs, built once in cmd/serve.go.
type Deps struct {
	Layout   config.Layout
	Store    *store.Store
	Matcher  *patterns.Matcher
	Bus      *eventbus.Bus
	Hub      *sse.Hub
	Batch    *summarizer.BatchSummarizer
	Index    *semanticindex.Index
	Note     *livingnote.Service
	Insights *insights.Registry

	CancelSvc *agent.CancellationService
	Registry  *agent.Registry
	// NewOrchestrator builds a fresh Orchestrator bound to the process's LLM
	// config; deferred to a factory so chat requests always see the latest
	// viper-configured provider/model without the server holding a client.
	NewOrchestrator func() (*agent.Orchestrator, error)

	// NewWatcher builds a fresh *watch.Watcher wired to Matcher/Tracker/
	// EventBus; called each time monitoring is started since Watcher has no
	// restart path of its own once Stop is called.
	NewWatcher func() *watch.Watcher

	AllowedOrigins []string
}

// New builds a Server listening on addr (":8080"-style).
func New(addr string, d Deps) *Server {
	origins := make(map[string]bool, len(d.AllowedOrigins))
	for _, o := range d.AllowedOrigins {
		origins[o] = true
	}

	s := &Server{
		layout:       d.Layout,
		store:        d.Store,
		matcher:      d.Matcher,
		bus:          d.Bus,
		hub:          d.Hub,
		batch:        d.Batch,
		index:        d.Index,
		note:         d.Note,
		insights:     d.Insights,
		cancelSvc:    d.CancelSvc,
		registry:     d.Registry,
		orchestrator: d.NewOrchestrator,
		newWatcher:   d.NewWatcher,
		log:          slog.With("component", "server"),
		origins:      origins,
	}

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.corsMiddleware(s.routes()),
	}
	return s
}

// Start begins serving and blocks until the listener stops or ctx is
// cancelled, whichever comes first. errCh receives a non-nil error only
// for an unexpected listener failure.
func (s *Server) Start(ctx context.Context, errCh chan<- error) {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), gracefulShutdownWindow)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.log.Error("shutdown error", "error", err)
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		errCh <- fmt.Errorf("server: listen: %w", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeAppError(w http.ResponseWriter, err error) {
	writeError(w, apperr.HTTPStatus(err), err.Error())
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}
