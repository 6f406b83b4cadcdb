// Package diffutil computes unified diffs and added/removed line counts
// between two text snapshots, in the difflib-style semantics spec.md §4.3
// calls for.
//
// Grounded on github.com/sergi/go-diff/diffmatchpatch, attested across the
// retrieval pack (cfullelove-mcp-workspaces, recera-onyx-coding-agent,
// steveyegge-gastown, xinggaoya-crush go.mod files). Line-mode diffing
// (DiffLinesToChars / DiffCharsToLines) turns Myers' character-level diff
// into a line-level diff cheaply, which is what a unified diff needs.
package diffutil

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Result is the outcome of diffing oldText against newText.
type Result struct {
	UnifiedDiff  string
	LinesAdded   int
	LinesRemoved int
}

// Normalize converts CRLF and lone CR line endings to LF, per spec.md
// §4.3 step 2. Content hashing and diffing both operate on normalized
// text so a line-ending-only edit produces zero delta (S3 in spec.md §8).
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return text
}

// Unified computes a unified diff between oldText and newText (both
// already normalized), labeling the two sides oldLabel/newLabel the way a
// conventional "--- a/path" / "+++ b/path" header would.
func Unified(oldLabel, newLabel, oldText, newText string) Result {
	dmp := diffmatchpatch.New()

	oldChars, newChars, lineArray := dmp.DiffLinesToChars(oldText, newText)
	diffs := dmp.DiffMain(oldChars, newChars, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var out strings.Builder
	fmt.Fprintf(&out, "--- %s\n", oldLabel)
	fmt.Fprintf(&out, "+++ %s\n", newLabel)

	added, removed := 0, 0
	for _, d := range diffs {
		lines := splitKeepingLast(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			for _, l := range lines {
				out.WriteString("  " + l + "\n")
			}
		case diffmatchpatch.DiffInsert:
			for _, l := range lines {
				out.WriteString("+ " + l + "\n")
				added++
			}
		case diffmatchpatch.DiffDelete:
			for _, l := range lines {
				out.WriteString("- " + l + "\n")
				removed++
			}
		}
	}

	return Result{
		UnifiedDiff:  out.String(),
		LinesAdded:   added,
		LinesRemoved: removed,
	}
}

// splitKeepingLast splits text on "\n" and drops a single trailing empty
// element produced when text ends in a newline, so line counts aren't
// inflated by the final separator.
func splitKeepingLast(text string) []string {
	if text == "" {
		return nil
	}
	parts := strings.Split(text, "\n")
	if len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}

// LineCount returns the number of lines in normalized text (empty text has
// zero lines).
func LineCount(text string) int {
	if text == "" {
		return 0
	}
	return strings.Count(text, "\n") + 1
}
