package eventbus

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/josephgoksu/obbywatch/internal/store"
)

func newTestBus(t *testing.T) (*Bus, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "obby.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return New(st), st
}

func TestPublishPersistsEvent(t *testing.T) {
	b, st := newTestBus(t)
	b.Publish(store.FileChange{FilePath: "notes/a.md", ChangeType: store.ChangeCreated, Timestamp: time.Now()})

	events, err := st.RecentEvents(10)
	if err != nil {
		t.Fatalf("RecentEvents: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Path != "notes/a.md" {
		t.Errorf("expected path notes/a.md, got %q", events[0].Path)
	}
}

func TestSubscribeReceivesPublishedEvent(t *testing.T) {
	b, _ := newTestBus(t)
	ch, unsubscribe := b.Subscribe(4)
	defer unsubscribe()

	b.Publish(store.FileChange{FilePath: "notes/a.md", ChangeType: store.ChangeModified, Timestamp: time.Now()})

	select {
	case fc := <-ch:
		if fc.FilePath != "notes/a.md" {
			t.Errorf("expected notes/a.md, got %q", fc.FilePath)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published event")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b, _ := newTestBus(t)
	ch, unsubscribe := b.Subscribe(4)
	unsubscribe()

	_, ok := <-ch
	if ok {
		t.Error("expected channel to be closed after unsubscribe")
	}
}

func TestPublishDoesNotBlockOnFullSubscriber(t *testing.T) {
	b, _ := newTestBus(t)
	ch, unsubscribe := b.Subscribe(1)
	defer unsubscribe()

	for i := 0; i < 5; i++ {
		b.Publish(store.FileChange{FilePath: "notes/a.md", ChangeType: store.ChangeModified, Timestamp: time.Now()})
	}

	// Draining once should succeed; the bus should not have deadlocked
	// publishing into a full channel.
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected at least one buffered event")
	}
}
