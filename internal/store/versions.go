package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNoOpDiff is returned by TrackChange when the computed diff would
// violate the no-op gate: zero lines added and zero lines removed
// (spec.md §3 ContentDiff invariant (b), §8 invariant 1).
var ErrNoOpDiff = errors.New("store: refusing to write a content diff with zero lines added and zero lines removed")

// TrackedChange is the single-transaction write spec.md §4.3 steps 6-9
// describe: one new FileVersion, one ContentDiff, an updated FileState,
// and one FileChange audit row.
type TrackedChange struct {
	FilePath           string
	ContentHash        string
	Content            string
	LineCount          int
	ChangeDescription  string
	OldContentHash     string
	OldVersionID       *int64
	ChangeType         ChangeType
	DiffContent        string
	LinesAdded         int
	LinesRemoved       int
	FileSize           int64
	Timestamp          time.Time
}

// TrackChange performs the §4.3 write sequence atomically: if any row
// fails, all four are rolled back (spec.md §4.4 "Transactional
// discipline"). It refuses in-band to write a ContentDiff whose delta is
// zero in both directions.
func (s *Store) TrackChange(tc TrackedChange) (versionID int64, diffID int64, err error) {
	if tc.LinesAdded == 0 && tc.LinesRemoved == 0 {
		return 0, 0, ErrNoOpDiff
	}

	ts := formatTime(tc.Timestamp)

	tx, err := s.db.Begin()
	if err != nil {
		return 0, 0, fmt.Errorf("store: begin TrackChange tx: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res, err := tx.Exec(
		`INSERT INTO file_versions(file_path, content_hash, content, line_count, timestamp, change_description)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		tc.FilePath, tc.ContentHash, tc.Content, tc.LineCount, ts, tc.ChangeDescription,
	)
	if err != nil {
		return 0, 0, fmt.Errorf("store: insert file_version: %w", err)
	}
	versionID, err = res.LastInsertId()
	if err != nil {
		return 0, 0, err
	}

	res, err = tx.Exec(
		`INSERT INTO content_diffs(file_path, old_version_id, new_version_id, change_type, diff_content, lines_added, lines_removed, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tc.FilePath, tc.OldVersionID, versionID, string(tc.ChangeType), tc.DiffContent, tc.LinesAdded, tc.LinesRemoved, ts,
	)
	if err != nil {
		return 0, 0, fmt.Errorf("store: insert content_diff: %w", err)
	}
	diffID, err = res.LastInsertId()
	if err != nil {
		return 0, 0, err
	}

	_, err = tx.Exec(
		`INSERT INTO file_states(file_path, content_hash, line_count, file_size, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(file_path) DO UPDATE SET content_hash=excluded.content_hash, line_count=excluded.line_count, file_size=excluded.file_size, updated_at=excluded.updated_at`,
		tc.FilePath, tc.ContentHash, tc.LineCount, tc.FileSize, ts,
	)
	if err != nil {
		return 0, 0, fmt.Errorf("store: upsert file_state: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO file_changes(file_path, change_type, old_content_hash, new_content_hash, timestamp)
		 VALUES (?, ?, ?, ?, ?)`,
		tc.FilePath, string(tc.ChangeType), tc.OldContentHash, tc.ContentHash, ts,
	)
	if err != nil {
		return 0, 0, fmt.Errorf("store: insert file_change: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("store: commit TrackChange tx: %w", err)
	}
	return versionID, diffID, nil
}

// RecordDeletion writes a FileChange row for a deleted path without
// touching file_versions, per spec.md §4.3 "Deletion".
func (s *Store) RecordDeletion(filePath, oldHash string, ts time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO file_changes(file_path, change_type, old_content_hash, new_content_hash, timestamp)
		 VALUES (?, 'deleted', ?, NULL, ?)`,
		filePath, oldHash, formatTime(ts),
	)
	if err != nil {
		return fmt.Errorf("store: record deletion: %w", err)
	}
	return nil
}

// GetFileState returns the current FileState for a path, or nil if none
// exists yet.
func (s *Store) GetFileState(filePath string) (*FileState, error) {
	row := s.db.QueryRow(
		`SELECT file_path, content_hash, line_count, file_size, updated_at FROM file_states WHERE file_path = ?`,
		filePath,
	)
	var fs FileState
	var updatedAt string
	if err := row.Scan(&fs.FilePath, &fs.ContentHash, &fs.LineCount, &fs.FileSize, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: get file_state: %w", err)
	}
	fs.UpdatedAt = parseTime(updatedAt)
	return &fs, nil
}

// AllFileStates returns every tracked file's current state, for insights
// that need to scan latest content across the whole watched tree.
func (s *Store) AllFileStates() ([]FileState, error) {
	rows, err := s.db.Query(`SELECT file_path, content_hash, line_count, file_size, updated_at FROM file_states`)
	if err != nil {
		return nil, fmt.Errorf("store: all file states: %w", err)
	}
	defer rows.Close()

	var out []FileState
	for rows.Next() {
		var fs FileState
		var updatedAt string
		if err := rows.Scan(&fs.FilePath, &fs.ContentHash, &fs.LineCount, &fs.FileSize, &updatedAt); err != nil {
			return nil, fmt.Errorf("store: scan file_state row: %w", err)
		}
		fs.UpdatedAt = parseTime(updatedAt)
		out = append(out, fs)
	}
	return out, rows.Err()
}

// GetFileVersionByHash returns the FileVersion matching (filePath,
// contentHash), or nil if none exists — used to fetch the "previous
// version" in spec.md §4.3 step 4.
func (s *Store) GetFileVersionByHash(filePath, contentHash string) (*FileVersion, error) {
	row := s.db.QueryRow(
		`SELECT id, file_path, content_hash, content, line_count, timestamp, change_description
		 FROM file_versions WHERE file_path = ? AND content_hash = ?`,
		filePath, contentHash,
	)
	return scanFileVersion(row)
}

// GetFileVersion returns a single version by id.
func (s *Store) GetFileVersion(id int64) (*FileVersion, error) {
	row := s.db.QueryRow(
		`SELECT id, file_path, content_hash, content, line_count, timestamp, change_description
		 FROM file_versions WHERE id = ?`,
		id,
	)
	return scanFileVersion(row)
}

func scanFileVersion(row *sql.Row) (*FileVersion, error) {
	var fv FileVersion
	var ts string
	var desc sql.NullString
	if err := row.Scan(&fv.ID, &fv.FilePath, &fv.ContentHash, &fv.Content, &fv.LineCount, &ts, &desc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: scan file_version: %w", err)
	}
	fv.Timestamp = parseTime(ts)
	fv.ChangeDescription = desc.String
	return &fv, nil
}

// LatestVersionForPath returns the highest-id FileVersion for path, used
// to verify spec.md §8 invariant 2 (FileState.content_hash equals the
// content_hash of the highest-id FileVersion).
func (s *Store) LatestVersionForPath(filePath string) (*FileVersion, error) {
	row := s.db.QueryRow(
		`SELECT id, file_path, content_hash, content, line_count, timestamp, change_description
		 FROM file_versions WHERE file_path = ? ORDER BY id DESC LIMIT 1`,
		filePath,
	)
	return scanFileVersion(row)
}

// DiffsForPath returns every ContentDiff for filePath ordered by id
// ascending, for the §8 invariant-3 round-trip check.
func (s *Store) DiffsForPath(filePath string) ([]ContentDiff, error) {
	rows, err := s.db.Query(
		`SELECT id, file_path, old_version_id, new_version_id, change_type, diff_content, lines_added, lines_removed, timestamp
		 FROM content_diffs WHERE file_path = ? ORDER BY id ASC`,
		filePath,
	)
	if err != nil {
		return nil, fmt.Errorf("store: diffs for path: %w", err)
	}
	defer rows.Close()
	return scanContentDiffs(rows)
}

func scanContentDiffs(rows *sql.Rows) ([]ContentDiff, error) {
	var out []ContentDiff
	for rows.Next() {
		var d ContentDiff
		var oldID sql.NullInt64
		var ts, ct string
		if err := rows.Scan(&d.ID, &d.FilePath, &oldID, &d.NewVersionID, &ct, &d.DiffContent, &d.LinesAdded, &d.LinesRemoved, &ts); err != nil {
			return nil, fmt.Errorf("store: scan content_diff: %w", err)
		}
		if oldID.Valid {
			v := oldID.Int64
			d.OldVersionID = &v
		}
		d.ChangeType = ChangeType(ct)
		d.Timestamp = parseTime(ts)
		out = append(out, d)
	}
	return out, rows.Err()
}

// GetContentDiff returns a single diff by id.
func (s *Store) GetContentDiff(id int64) (*ContentDiff, error) {
	row := s.db.QueryRow(
		`SELECT id, file_path, old_version_id, new_version_id, change_type, diff_content, lines_added, lines_removed, timestamp
		 FROM content_diffs WHERE id = ?`,
		id,
	)
	var d ContentDiff
	var oldID sql.NullInt64
	var ts, ct string
	if err := row.Scan(&d.ID, &d.FilePath, &oldID, &d.NewVersionID, &ct, &d.DiffContent, &d.LinesAdded, &d.LinesRemoved, &ts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: get content_diff: %w", err)
	}
	if oldID.Valid {
		v := oldID.Int64
		d.OldVersionID = &v
	}
	d.ChangeType = ChangeType(ct)
	d.Timestamp = parseTime(ts)
	return &d, nil
}
