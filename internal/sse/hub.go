// Package sse implements C10: fan-out of file-change and living-note
// update events to connected HTTP clients over Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	defaultClientBuffer = 100
	keepaliveInterval   = 30 * time.Second
)

// Event is one SSE message: Name becomes the "event:" field, Data is
// marshaled to JSON for the "data:" field.
type Event struct {
	Name string
	Data any
}

// FileUpdatePayload is the payload for the "file_updated" topic.
type FileUpdatePayload struct {
	Type      string    `json:"type"`
	FilePath  string    `json:"filePath"`
	Timestamp time.Time `json:"timestamp"`
	Content   string    `json:"content,omitempty"`
}

// LivingNoteUpdatePayload is the payload for the "living_note_updated" topic.
type LivingNoteUpdatePayload struct {
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub fans out Events to any number of registered clients, each via a
// bounded channel so one slow client can never block a broadcast.
//
// Grounded on internal/eventbus.Bus's single-writer/multi-subscriber
// non-blocking fan-out, specialized here to SSE client channels instead
// of FileChange subscribers.
type Hub struct {
	log *slog.Logger

	mu      sync.Mutex
	clients map[int]chan Event
	next    int
}

// New constructs an empty Hub.
func New() *Hub {
	return &Hub{
		log:     slog.With("component", "sse"),
		clients: make(map[int]chan Event),
	}
}

// Register adds a new client and returns its id, its event channel, and an
// unregister function. The "connected" event is not emitted here — callers
// (the HTTP handler) emit it once the channel is actually being drained, to
// avoid a race where the first event is dropped before any reader exists.
func (h *Hub) Register() (id int, ch <-chan Event, unregister func()) {
	clientCh := make(chan Event, defaultClientBuffer)

	h.mu.Lock()
	id = h.next
	h.next++
	h.clients[id] = clientCh
	h.mu.Unlock()

	unregister = func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if existing, ok := h.clients[id]; ok {
			delete(h.clients, id)
			close(existing)
		}
	}
	return id, clientCh, unregister
}

// Broadcast sends ev to every connected client. A client whose buffer is
// full is disconnected rather than allowed to stall the broadcaster.
func (h *Hub) Broadcast(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var overflowed []int
	for id, ch := range h.clients {
		select {
		case ch <- ev:
		default:
			overflowed = append(overflowed, id)
		}
	}
	for _, id := range overflowed {
		h.log.Warn("client buffer full, disconnecting", "client", id)
		if ch, ok := h.clients[id]; ok {
			delete(h.clients, id)
			close(ch)
		}
	}
}

// PublishFileUpdated broadcasts a file_updated event.
func (h *Hub) PublishFileUpdated(p FileUpdatePayload) {
	h.Broadcast(Event{Name: "file_updated", Data: p})
}

// PublishLivingNoteUpdated broadcasts a living_note_updated event.
func (h *Hub) PublishLivingNoteUpdated(p LivingNoteUpdatePayload) {
	h.Broadcast(Event{Name: "living_note_updated", Data: p})
}

// ClientCount reports the number of currently connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Keepalive returns a ticker channel, plus the func that stops it, for the
// HTTP handler to select on alongside the client's own channel, to hold the
// connection open through idle periods.
func Keepalive() (<-chan time.Time, func()) {
	t := time.NewTicker(keepaliveInterval)
	return t.C, t.Stop
}

// Encode renders ev in the standard SSE wire format: "event: name\ndata:
// json\n\n". Returns an error only if Data fails to marshal.
func Encode(ev Event) ([]byte, error) {
	payload, err := json.Marshal(ev.Data)
	if err != nil {
		return nil, fmt.Errorf("sse: marshal event data: %w", err)
	}
	var out []byte
	out = append(out, "event: "...)
	out = append(out, ev.Name...)
	out = append(out, '\n')
	out = append(out, "data: "...)
	out = append(out, payload...)
	out = append(out, '\n', '\n')
	return out, nil
}

// ConnectedPayload is sent once per client immediately after registration.
type ConnectedPayload struct {
	ClientID int `json:"clientId"`
}
