// Package tracker implements C4 (ContentTracker): the pipeline that turns a
// debounced watch.Change into a content-addressed version, a diff, and the
// store writes spec.md §4.3 describes, gated so no-op edits never produce a
// phantom version row.
//
// Grounded on the teacher's internal/memory ingestion path (hash, compare
// against the last known state, write only on real delta) generalized from
// TaskWing's knowledge-node upsert to the FileVersion/ContentDiff pair
// spec.md §3 defines, and on diffkeeper's change-classification flow for
// the created/modified/deleted/moved split.
package tracker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/josephgoksu/obbywatch/internal/diffutil"
	"github.com/josephgoksu/obbywatch/internal/store"
	"github.com/josephgoksu/obbywatch/internal/watch"
)

// Tracker consumes watch.Change values and performs the hash/diff/persist
// pipeline against a Store.
type Tracker struct {
	root  string
	store *store.Store
	log   *slog.Logger

	onTracked func(store.FileChange)
}

// New constructs a Tracker rooted at root, writing through st. onTracked,
// if non-nil, is invoked after every successful write (used by C6's event
// recorder and the SSE hub).
func New(root string, st *store.Store, onTracked func(store.FileChange)) *Tracker {
	return &Tracker{
		root:      root,
		store:     st,
		log:       slog.With("component", "tracker"),
		onTracked: onTracked,
	}
}

// HandleChange is the watch.Debouncer's onChange callback entry point.
func (t *Tracker) HandleChange(c watch.Change) {
	rel, err := filepath.Rel(t.root, c.Path)
	if err != nil {
		rel = c.Path
	}

	switch c.Type {
	case watch.RawRemove:
		t.handleDelete(rel, c.Timestamp)
	case watch.RawRename:
		t.handleMove(rel, c.OldPath, c.Timestamp)
	default:
		t.handleUpsert(rel, c.Timestamp)
	}
}

// handleUpsert covers both "created" and "modified" raw events — spec.md
// §4.3 steps 1-9.
func (t *Tracker) handleUpsert(relPath string, ts time.Time) {
	raw, err := os.ReadFile(filepath.Join(t.root, relPath))
	if err != nil {
		t.log.Warn("read changed file failed", "path", relPath, "error", err)
		return
	}

	content := diffutil.Normalize(sanitizeUTF8(raw))
	hash := contentHash(content)

	prevState, err := t.store.GetFileState(relPath)
	if err != nil {
		t.log.Error("get file state failed", "path", relPath, "error", err)
		return
	}

	// Gate A: content hash unchanged from the current state — nothing to
	// record at all.
	if prevState != nil && prevState.ContentHash == hash {
		return
	}

	changeType := store.ChangeModified
	var oldVersionID *int64
	var oldHash string
	oldText := ""
	if prevState == nil {
		changeType = store.ChangeCreated
	} else {
		oldHash = prevState.ContentHash
		prevVersion, err := t.store.GetFileVersionByHash(relPath, prevState.ContentHash)
		if err != nil {
			t.log.Error("get previous version failed", "path", relPath, "error", err)
			return
		}
		if prevVersion != nil {
			oldVersionID = &prevVersion.ID
			oldText = prevVersion.Content
		}
	}

	diff := diffutil.Unified(relPath+"@old", relPath+"@new", oldText, content)

	// Gate B: both diff counts are zero against a known prior version —
	// refuse to write a phantom diff row (spec.md §3 ContentDiff invariant).
	if prevState != nil && diff.LinesAdded == 0 && diff.LinesRemoved == 0 {
		return
	}

	_, _, err = t.store.TrackChange(store.TrackedChange{
		FilePath:       relPath,
		ContentHash:    hash,
		Content:        content,
		LineCount:      diffutil.LineCount(content),
		OldContentHash: oldHash,
		OldVersionID:   oldVersionID,
		ChangeType:     changeType,
		DiffContent:    diff.UnifiedDiff,
		LinesAdded:     diff.LinesAdded,
		LinesRemoved:   diff.LinesRemoved,
		FileSize:       int64(len(raw)),
		Timestamp:      ts,
	})
	if err != nil {
		t.log.Error("track change failed", "path", relPath, "error", err)
		return
	}

	t.notify(store.FileChange{
		FilePath:       relPath,
		ChangeType:     changeType,
		OldContentHash: oldHash,
		NewContentHash: hash,
		Timestamp:      ts,
	})
}

func (t *Tracker) handleDelete(relPath string, ts time.Time) {
	state, err := t.store.GetFileState(relPath)
	if err != nil {
		t.log.Error("get file state failed", "path", relPath, "error", err)
		return
	}
	if state == nil {
		return
	}
	if err := t.store.RecordDeletion(relPath, state.ContentHash, ts); err != nil {
		t.log.Error("record deletion failed", "path", relPath, "error", err)
		return
	}
	t.notify(store.FileChange{
		FilePath:       relPath,
		ChangeType:     store.ChangeDeleted,
		OldContentHash: state.ContentHash,
		Timestamp:      ts,
	})
}

// handleMove reuses the upsert path for the destination (capturing its
// current content as a new version) and records the deletion of the
// source when oldPath is non-empty. The Debouncer never sets
// Change.OldPath, so only the upsert of newPath runs.
func (t *Tracker) handleMove(newPath, oldPath string, ts time.Time) {
	if oldPath != "" {
		t.handleDelete(oldPath, ts)
	}
	t.handleUpsert(newPath, ts)
}

func (t *Tracker) notify(fc store.FileChange) {
	if t.onTracked != nil {
		t.onTracked(fc)
	}
}

// sanitizeUTF8 decodes raw file bytes as UTF-8, replacing any undecodable
// byte sequence with U+FFFD (spec.md §4.3 step 2) so the hash, diff, and
// FTS index downstream never see a partially-binary string.
func sanitizeUTF8(raw []byte) string {
	out, _, err := transform.Bytes(unicode.UTF8.NewDecoder(), raw)
	if err != nil {
		return string(raw)
	}
	return string(out)
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// describeChange renders a short human label for a FileChange from its
// ChangeType. Nothing in the module calls it.
func describeChange(fc store.FileChange) string {
	switch fc.ChangeType {
	case store.ChangeCreated:
		return fmt.Sprintf("created %s", fc.FilePath)
	case store.ChangeDeleted:
		return fmt.Sprintf("deleted %s", fc.FilePath)
	case store.ChangeMoved:
		return fmt.Sprintf("moved to %s", fc.FilePath)
	default:
		return fmt.Sprintf("modified %s", fc.FilePath)
	}
}
