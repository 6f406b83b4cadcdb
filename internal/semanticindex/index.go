package semanticindex

import (
	"strings"
	"time"

	"github.com/josephgoksu/obbywatch/internal/store"
)

// Index wraps a Store with the extraction/search semantics C9 defines.
type Index struct {
	store *store.Store
}

// New builds an Index backed by st.
func New(st *store.Store) *Index {
	return &Index{store: st}
}

// Entry is everything needed to persist one SemanticEntry row alongside its
// extracted metadata.
type Entry struct {
	Timestamp        time.Time
	Type             string
	FilePath         string
	MarkdownFilePath string
	SourceType       string
	VersionID        *int64
	Extracted        Extracted
}

// Record persists e through the Store's transactional §4.9 write, building
// the FTS searchable_text from summary + topics + keywords.
func (idx *Index) Record(e Entry) (int64, error) {
	impact := e.Extracted.Impact
	if impact == "" {
		impact = store.ImpactBrief
	}

	searchable := strings.Join(append([]string{e.Extracted.Summary}, append(e.Extracted.Topics, e.Extracted.Keywords...)...), " ")

	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	entry := store.SemanticEntry{
		Timestamp:        ts,
		Date:             ts.Format("2006-01-02"),
		Time:             ts.Format("15:04:05"),
		Type:             e.Type,
		Summary:          e.Extracted.Summary,
		Impact:           impact,
		FilePath:         e.FilePath,
		SearchableText:   searchable,
		MarkdownFilePath: e.MarkdownFilePath,
		SourceType:       e.SourceType,
		VersionID:        e.VersionID,
	}

	return idx.store.InsertSemanticEntry(store.SemanticWrite{
		Entry:    entry,
		Topics:   e.Extracted.Topics,
		Keywords: e.Extracted.Keywords,
	})
}

// Result is one scored search hit.
type Result struct {
	Entry store.SemanticEntry
	Score float64
}

// Search implements spec.md §4.9's weighted scoring: FTS rank x3, plus
// topic/keyword equality x2, plus prefix match x1. typeFilter, if non-empty,
// restricts results to entries whose Type matches exactly.
func (idx *Index) Search(query string, limit int, typeFilter string) ([]Result, error) {
	if limit <= 0 {
		limit = 20
	}
	// Over-fetch since typeFilter narrows after the FTS query runs.
	candidates, err := idx.store.SearchSemanticRanked(query, limit*3+10)
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(strings.TrimSpace(query))
	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		if typeFilter != "" && c.Entry.Type != typeFilter {
			continue
		}
		score := -c.Rank * 3
		score += float64(equalityHits(q, c.Entry.Topics, c.Entry.Keywords)) * 2
		score += float64(prefixHits(q, c.Entry.Topics, c.Entry.Keywords)) * 1
		results = append(results, Result{Entry: c.Entry, Score: score})
	}

	sortByScoreDesc(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func equalityHits(q string, topics, keywords []string) int {
	n := 0
	for _, t := range topics {
		if strings.EqualFold(t, q) {
			n++
		}
	}
	for _, k := range keywords {
		if strings.EqualFold(k, q) {
			n++
		}
	}
	return n
}

func prefixHits(q string, topics, keywords []string) int {
	if q == "" {
		return 0
	}
	n := 0
	for _, t := range topics {
		if strings.HasPrefix(strings.ToLower(t), q) {
			n++
		}
	}
	for _, k := range keywords {
		if strings.HasPrefix(strings.ToLower(k), q) {
			n++
		}
	}
	return n
}

func sortByScoreDesc(results []Result) {
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && results[j].Score > results[j-1].Score; j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}
}
