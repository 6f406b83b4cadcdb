package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// InsertEvent records one raw filesystem observation (spec.md §3 Event).
func (s *Store) InsertEvent(e Event) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO events(type, path, size, timestamp, processed) VALUES (?, ?, ?, ?, ?)`,
		string(e.Type), e.Path, e.Size, formatTime(e.Timestamp), e.Processed,
	)
	if err != nil {
		return 0, fmt.Errorf("store: insert event: %w", err)
	}
	return res.LastInsertId()
}

// MarkEventProcessed flips an event's processed flag once the tracker has
// consumed it.
func (s *Store) MarkEventProcessed(id int64) error {
	_, err := s.db.Exec(`UPDATE events SET processed = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: mark event processed: %w", err)
	}
	return nil
}

// RecentEvents returns up to limit events ordered newest-first.
func (s *Store) RecentEvents(limit int) ([]Event, error) {
	rows, err := s.db.Query(
		`SELECT id, type, path, size, timestamp, processed FROM events ORDER BY timestamp DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("store: recent events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// UnprocessedEvents returns every event not yet marked processed, oldest
// first, for the batch summarizer's window scan.
func (s *Store) UnprocessedEvents() ([]Event, error) {
	rows, err := s.db.Query(
		`SELECT id, type, path, size, timestamp, processed FROM events WHERE processed = 0 ORDER BY timestamp ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("store: unprocessed events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	var out []Event
	for rows.Next() {
		var e Event
		var ts, typ string
		if err := rows.Scan(&e.ID, &typ, &e.Path, &e.Size, &ts, &e.Processed); err != nil {
			return nil, fmt.Errorf("store: scan event: %w", err)
		}
		e.Type = ChangeType(typ)
		e.Timestamp = parseTime(ts)
		out = append(out, e)
	}
	return out, rows.Err()
}

// ErrEventNotFound is returned when an event id has no matching row.
var ErrEventNotFound = errors.New("store: event not found")
