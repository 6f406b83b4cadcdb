package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/josephgoksu/obbywatch/internal/apperr"
	"github.com/josephgoksu/obbywatch/internal/store"
)

const chatSystemPrompt = "You are an assistant with tools over a watched project's tracked file history and " +
	"semantic notes. Use the available tools to answer questions about project activity; keep answers concise."

// handleChatMessage runs one bounded tool-calling turn via the
// AgentOrchestrator, persisting the exchange as ActionLog rows keyed by
// session id so later turns (and /api/chat/complete) can find it again.
func (s *Server) handleChatMessage(w http.ResponseWriter, r *http.Request) {
	var req ChatMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, apperr.New(apperr.InputRejected, "chat.message", err))
		return
	}
	if req.Message == "" {
		writeAppError(w, apperr.New(apperr.InputRejected, "chat.message", errEmptyMessage))
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
		if err := s.store.CreateAgentSession(store.AgentSession{ID: sessionID, CreatedAt: time.Now().UTC()}); err != nil {
			writeAppError(w, apperr.New(apperr.StoreFailure, "chat.message", err))
			return
		}
	}

	history, err := s.loadHistory(sessionID)
	if err != nil {
		writeAppError(w, apperr.New(apperr.StoreFailure, "chat.message", err))
		return
	}
	history = append(history, schema.UserMessage(req.Message))

	orchestrator, err := s.orchestrator()
	if err != nil {
		writeAppError(w, apperr.New(apperr.UpstreamLLMFailure, "chat.message", err))
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	unregister := s.cancelSvc.Register(sessionID, cancel, 0)
	defer unregister()
	defer cancel()

	progress := func(sid, eventType, message string, data any) {
		encoded, _ := json.Marshal(data)
		if _, err := s.store.AppendActionLog(store.ActionLog{
			SessionID: sid,
			EventType: eventType,
			Message:   message,
			Data:      string(encoded),
			Timestamp: time.Now().UTC(),
		}); err != nil {
			s.log.Warn("append action log failed", "session", sid, "error", err)
		}
	}

	reply, _, err := orchestrator.Run(ctx, sessionID, chatSystemPrompt, history, progress)
	if err != nil {
		writeAppError(w, apperr.New(apperr.UpstreamLLMFailure, "chat.message", err))
		return
	}

	writeJSON(w, http.StatusOK, ChatMessageResponse{SessionID: sessionID, Reply: reply})
}

// handleChatComplete requests graceful-then-forced cancellation of an
// in-flight session, per the CancellationService's escalation contract.
func (s *Server) handleChatComplete(w http.ResponseWriter, r *http.Request) {
	var req ChatCompleteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, apperr.New(apperr.InputRejected, "chat.complete", err))
		return
	}

	cancelled := s.cancelSvc.Cancel(r.Context(), req.SessionID, req.Task, func(sid, phase, message string) {
		s.log.Info("cancellation phase", "session", sid, "phase", phase, "message", message)
	})
	writeJSON(w, http.StatusOK, ChatCompleteResponse{Cancelled: cancelled})
}

func (s *Server) handleChatTools(w http.ResponseWriter, r *http.Request) {
	out := make([]ToolDescriptor, 0, len(s.registry.BaseTools()))
	for _, t := range s.registry.BaseTools() {
		info, err := t.Info(r.Context())
		if err != nil {
			continue
		}
		out = append(out, ToolDescriptor{Name: info.Name, Desc: info.Desc})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleChatPing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// loadHistory replays a session's ActionLog rows back into the message
// sequence the orchestrator expects. Only assistant_response rows are
// replayed, as assistant messages; user turns are not part of the replayed
// history, and tool_result, assistant_thinking and tool_call rows are
// skipped.
func (s *Server) loadHistory(sessionID string) ([]*schema.Message, error) {
	logs, err := s.store.ActionLogsForSession(sessionID)
	if err != nil {
		return nil, err
	}
	var history []*schema.Message
	for _, l := range logs {
		switch l.EventType {
		case "assistant_response":
			history = append(history, schema.AssistantMessage(l.Message, nil))
		}
	}
	return history, nil
}

var errEmptyMessage = newStaticErr("message is required")
