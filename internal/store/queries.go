package store

import (
	"fmt"
	"time"
)

// DiffsSince returns every ContentDiff with timestamp >= since, oldest
// first — the window the batch summarizer scans (spec.md §4.7).
func (s *Store) DiffsSince(since time.Time) ([]ContentDiff, error) {
	rows, err := s.db.Query(
		`SELECT id, file_path, old_version_id, new_version_id, change_type, diff_content, lines_added, lines_removed, timestamp
		 FROM content_diffs WHERE timestamp >= ? ORDER BY timestamp ASC`,
		formatTime(since),
	)
	if err != nil {
		return nil, fmt.Errorf("store: diffs since: %w", err)
	}
	defer rows.Close()
	return scanContentDiffs(rows)
}

// RecentDiffs returns up to limit diffs, newest first.
func (s *Store) RecentDiffs(limit int) ([]ContentDiff, error) {
	rows, err := s.db.Query(
		`SELECT id, file_path, old_version_id, new_version_id, change_type, diff_content, lines_added, lines_removed, timestamp
		 FROM content_diffs ORDER BY timestamp DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("store: recent diffs: %w", err)
	}
	defer rows.Close()
	return scanContentDiffs(rows)
}

// TimeAnalysis summarizes activity across the whole history, the shape
// the insights registry's "comprehensive time analysis" built-in reports.
type TimeAnalysis struct {
	TotalChanges      int
	TotalLinesAdded   int
	TotalLinesRemoved int
	ByHour            map[int]int
	ByFile            map[string]int
}

// ComprehensiveTimeAnalysis aggregates every content_diffs row into hour-
// of-day and per-file buckets.
func (s *Store) ComprehensiveTimeAnalysis() (*TimeAnalysis, error) {
	rows, err := s.db.Query(`SELECT file_path, lines_added, lines_removed, timestamp FROM content_diffs`)
	if err != nil {
		return nil, fmt.Errorf("store: time analysis: %w", err)
	}
	defer rows.Close()

	ta := &TimeAnalysis{ByHour: make(map[int]int), ByFile: make(map[string]int)}
	for rows.Next() {
		var filePath, ts string
		var added, removed int
		if err := rows.Scan(&filePath, &added, &removed, &ts); err != nil {
			return nil, fmt.Errorf("store: scan time analysis row: %w", err)
		}
		ta.TotalChanges++
		ta.TotalLinesAdded += added
		ta.TotalLinesRemoved += removed
		ta.ByFile[filePath]++
		ta.ByHour[parseTime(ts).Hour()]++
	}
	return ta, rows.Err()
}

// ClearUnwatched deletes every row belonging to paths no longer covered by
// the provided "still watched" predicate, for operational hygiene after a
// pattern-file edit that narrows the watch set.
func (s *Store) ClearUnwatched(stillWatched func(path string) bool) (int64, error) {
	rows, err := s.db.Query(`SELECT DISTINCT file_path FROM file_states`)
	if err != nil {
		return 0, fmt.Errorf("store: clear unwatched scan: %w", err)
	}
	var stale []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return 0, err
		}
		if !stillWatched(p) {
			stale = append(stale, p)
		}
	}
	rows.Close()

	var total int64
	for _, p := range stale {
		n, err := s.clearPath(p)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// ClearMissing deletes every row for paths the provided predicate reports
// as no longer existing on disk.
func (s *Store) ClearMissing(exists func(path string) bool) (int64, error) {
	return s.ClearUnwatched(exists)
}

func (s *Store) clearPath(path string) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	var committed bool
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	var total int64
	for _, stmt := range []string{
		`DELETE FROM file_states WHERE file_path = ?`,
		`DELETE FROM file_changes WHERE file_path = ?`,
		`DELETE FROM content_diffs WHERE file_path = ?`,
		`DELETE FROM file_versions WHERE file_path = ?`,
	} {
		res, err := tx.Exec(stmt, path)
		if err != nil {
			return 0, fmt.Errorf("store: clear path %q: %w", path, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return total, nil
}

// ClearAll truncates every content table, leaving schema and config_kv
// intact. No HTTP route calls it.
func (s *Store) ClearAll() error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	var committed bool
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	for _, stmt := range []string{
		`DELETE FROM semantic_search`,
		`DELETE FROM semantic_keywords`,
		`DELETE FROM semantic_topics`,
		`DELETE FROM semantic_entries`,
		`DELETE FROM file_changes`,
		`DELETE FROM content_diffs`,
		`DELETE FROM file_states`,
		`DELETE FROM file_versions`,
		`DELETE FROM events`,
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("store: clear all: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
