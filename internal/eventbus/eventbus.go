// Package eventbus implements C6: the sink that records every
// created/modified/deleted/moved observation the ContentTracker reports,
// and fans those same observations out to live subscribers (serve
// subscribes one that relays them to the SSE hub).
//
// Grounded on the teacher's internal/mcp/presenter.go broadcast pattern
// (a single writer side, many read-only subscriber channels, each
// non-blocking so one slow subscriber can't stall the others) adapted
// from presenting plan-step events to presenting file-change events.
package eventbus

import (
	"log/slog"
	"sync"

	"github.com/josephgoksu/obbywatch/internal/store"
)

// Bus records FileChange events to the Store and republishes them to any
// number of live subscribers.
type Bus struct {
	store *store.Store
	log   *slog.Logger

	mu   sync.Mutex
	subs map[int]chan store.FileChange
	next int
}

// New constructs a Bus backed by st.
func New(st *store.Store) *Bus {
	return &Bus{
		store: st,
		log:   slog.With("component", "eventbus"),
		subs:  make(map[int]chan store.FileChange),
	}
}

// Publish persists fc as an Event row and fans it out to subscribers. A
// subscriber whose buffer is full is skipped for this event rather than
// blocking the publisher — the same non-blocking-broadcast discipline C10
// uses for SSE clients.
func (b *Bus) Publish(fc store.FileChange) {
	_, err := b.store.InsertEvent(store.Event{
		Type:      fc.ChangeType,
		Path:      fc.FilePath,
		Timestamp: fc.Timestamp,
	})
	if err != nil {
		b.log.Error("record event failed", "path", fc.FilePath, "error", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		select {
		case ch <- fc:
		default:
			b.log.Warn("subscriber channel full, dropping event", "subscriber", id, "path", fc.FilePath)
		}
	}
}

// Subscribe registers a new listener and returns its channel plus an
// unsubscribe function. The channel is closed on unsubscribe.
func (b *Bus) Subscribe(buffer int) (<-chan store.FileChange, func()) {
	if buffer <= 0 {
		buffer = 32
	}
	ch := make(chan store.FileChange, buffer)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if existing, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(existing)
		}
	}
	return ch, unsubscribe
}

// Recent returns up to limit previously recorded events, newest first, for
// clients that connect after the fact and want recent history.
func (b *Bus) Recent(limit int) ([]store.Event, error) {
	return b.store.RecentEvents(limit)
}
