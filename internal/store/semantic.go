package store

import (
	"database/sql"
	"fmt"
)

// SemanticWrite bundles a SemanticEntry with its topics and keywords for
// the transactional write spec.md §4.9 describes: entry row, topic rows,
// keyword rows, and the FTS5 mirror row all succeed or all roll back.
type SemanticWrite struct {
	Entry    SemanticEntry
	Topics   []string
	Keywords []string
}

// InsertSemanticEntry performs the §4.9 write and returns the new entry id.
func (s *Store) InsertSemanticEntry(w SemanticWrite) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("store: begin semantic tx: %w", err)
	}
	var committed bool
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	e := w.Entry
	res, err := tx.Exec(
		`INSERT INTO semantic_entries(timestamp, date, time, type, summary, impact, file_path, searchable_text, markdown_file_path, source_type, version_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		formatTime(e.Timestamp), e.Date, e.Time, e.Type, e.Summary, string(e.Impact), e.FilePath,
		e.SearchableText, e.MarkdownFilePath, e.SourceType, e.VersionID,
	)
	if err != nil {
		return 0, fmt.Errorf("store: insert semantic_entry: %w", err)
	}
	entryID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, topic := range w.Topics {
		if topic == "" {
			continue
		}
		if _, err := tx.Exec(`INSERT OR IGNORE INTO semantic_topics(entry_id, topic) VALUES (?, ?)`, entryID, topic); err != nil {
			return 0, fmt.Errorf("store: insert semantic_topic: %w", err)
		}
	}
	for _, kw := range w.Keywords {
		if kw == "" {
			continue
		}
		if _, err := tx.Exec(`INSERT OR IGNORE INTO semantic_keywords(entry_id, keyword) VALUES (?, ?)`, entryID, kw); err != nil {
			return 0, fmt.Errorf("store: insert semantic_keyword: %w", err)
		}
	}

	if _, err := tx.Exec(`INSERT INTO semantic_search(entry_id, searchable_text) VALUES (?, ?)`, entryID, e.SearchableText); err != nil {
		return 0, fmt.Errorf("store: insert semantic_search: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit semantic tx: %w", err)
	}
	committed = true
	return entryID, nil
}

// SearchResult is one ranked hit from SearchSemantic.
type SearchResult struct {
	Entry SemanticEntry
	Score float64
}

// SearchSemantic runs the FTS5 MATCH query in bm25 rank order and scores
// each result as the negated rank plus an impact weight (significant >
// moderate > brief). Recency is not part of the score.
func (s *Store) SearchSemantic(query string, limit int) ([]SearchResult, error) {
	rows, err := s.db.Query(
		`SELECT e.id, e.timestamp, e.date, e.time, e.type, e.summary, e.impact, e.file_path,
		        e.searchable_text, e.markdown_file_path, e.source_type, e.version_id,
		        bm25(semantic_search) AS rank
		 FROM semantic_search
		 JOIN semantic_entries e ON e.id = semantic_search.entry_id
		 WHERE semantic_search MATCH ?
		 ORDER BY rank
		 LIMIT ?`,
		query, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("store: search semantic: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var e SemanticEntry
		var ts, impact string
		var filePath, mdPath sql.NullString
		var versionID sql.NullInt64
		var rank float64
		if err := rows.Scan(&e.ID, &ts, &e.Date, &e.Time, &e.Type, &e.Summary, &impact, &filePath,
			&e.SearchableText, &mdPath, &e.SourceType, &versionID, &rank); err != nil {
			return nil, fmt.Errorf("store: scan semantic result: %w", err)
		}
		e.Timestamp = parseTime(ts)
		e.Impact = Impact(impact)
		e.FilePath = filePath.String
		e.MarkdownFilePath = mdPath.String
		if versionID.Valid {
			v := versionID.Int64
			e.VersionID = &v
		}

		topics, err := s.topicsFor(e.ID)
		if err != nil {
			return nil, err
		}
		e.Topics = topics
		keywords, err := s.keywordsFor(e.ID)
		if err != nil {
			return nil, err
		}
		e.Keywords = keywords

		score := -rank + impactWeight(e.Impact)
		out = append(out, SearchResult{Entry: e, Score: score})
	}
	return out, rows.Err()
}

// RankedEntry is one FTS5 hit with its raw bm25 rank (more negative is a
// stronger match) plus its topics/keywords already loaded, for callers that
// want to apply their own scoring on top of the raw rank.
type RankedEntry struct {
	Entry SemanticEntry
	Rank  float64
}

// SearchSemanticRanked runs the FTS5 MATCH query and returns candidates with
// their raw rank and loaded topics/keywords, leaving weighting to the
// caller (see internal/semanticindex, which applies spec.md §4.9's formula).
func (s *Store) SearchSemanticRanked(query string, limit int) ([]RankedEntry, error) {
	rows, err := s.db.Query(
		`SELECT e.id, e.timestamp, e.date, e.time, e.type, e.summary, e.impact, e.file_path,
		        e.searchable_text, e.markdown_file_path, e.source_type, e.version_id,
		        bm25(semantic_search) AS rank
		 FROM semantic_search
		 JOIN semantic_entries e ON e.id = semantic_search.entry_id
		 WHERE semantic_search MATCH ?
		 ORDER BY rank
		 LIMIT ?`,
		query, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("store: search semantic ranked: %w", err)
	}
	defer rows.Close()

	var out []RankedEntry
	for rows.Next() {
		var e SemanticEntry
		var ts, impact string
		var filePath, mdPath sql.NullString
		var versionID sql.NullInt64
		var rank float64
		if err := rows.Scan(&e.ID, &ts, &e.Date, &e.Time, &e.Type, &e.Summary, &impact, &filePath,
			&e.SearchableText, &mdPath, &e.SourceType, &versionID, &rank); err != nil {
			return nil, fmt.Errorf("store: scan ranked semantic result: %w", err)
		}
		e.Timestamp = parseTime(ts)
		e.Impact = Impact(impact)
		e.FilePath = filePath.String
		e.MarkdownFilePath = mdPath.String
		if versionID.Valid {
			v := versionID.Int64
			e.VersionID = &v
		}

		topics, err := s.topicsFor(e.ID)
		if err != nil {
			return nil, err
		}
		e.Topics = topics
		keywords, err := s.keywordsFor(e.ID)
		if err != nil {
			return nil, err
		}
		e.Keywords = keywords

		out = append(out, RankedEntry{Entry: e, Rank: rank})
	}
	return out, rows.Err()
}

func impactWeight(i Impact) float64 {
	switch i {
	case ImpactSignificant:
		return 2.0
	case ImpactModerate:
		return 1.0
	default:
		return 0.0
	}
}

func (s *Store) topicsFor(entryID int64) ([]string, error) {
	rows, err := s.db.Query(`SELECT topic FROM semantic_topics WHERE entry_id = ? ORDER BY topic`, entryID)
	if err != nil {
		return nil, fmt.Errorf("store: topics for entry: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) keywordsFor(entryID int64) ([]string, error) {
	rows, err := s.db.Query(`SELECT keyword FROM semantic_keywords WHERE entry_id = ? ORDER BY keyword`, entryID)
	if err != nil {
		return nil, fmt.Errorf("store: keywords for entry: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// RecentSemanticEntries returns the most recent entries, newest first,
// for the living-note and insights consumers.
func (s *Store) RecentSemanticEntries(limit int) ([]SemanticEntry, error) {
	rows, err := s.db.Query(
		`SELECT id, timestamp, date, time, type, summary, impact, file_path, searchable_text, markdown_file_path, source_type, version_id
		 FROM semantic_entries ORDER BY timestamp DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("store: recent semantic entries: %w", err)
	}
	defer rows.Close()

	var out []SemanticEntry
	for rows.Next() {
		var e SemanticEntry
		var ts, impact string
		var filePath, mdPath sql.NullString
		var versionID sql.NullInt64
		if err := rows.Scan(&e.ID, &ts, &e.Date, &e.Time, &e.Type, &e.Summary, &impact, &filePath,
			&e.SearchableText, &mdPath, &e.SourceType, &versionID); err != nil {
			return nil, fmt.Errorf("store: scan semantic entry: %w", err)
		}
		e.Timestamp = parseTime(ts)
		e.Impact = Impact(impact)
		e.FilePath = filePath.String
		e.MarkdownFilePath = mdPath.String
		if versionID.Valid {
			v := versionID.Int64
			e.VersionID = &v
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
