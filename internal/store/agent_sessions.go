package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// CreateAgentSession inserts a new session row.
func (s *Store) CreateAgentSession(sess AgentSession) error {
	_, err := s.db.Exec(
		`INSERT INTO agent_sessions(id, created_at, title) VALUES (?, ?, ?)`,
		sess.ID, formatTime(sess.CreatedAt), sess.Title,
	)
	if err != nil {
		return fmt.Errorf("store: create agent_session: %w", err)
	}
	return nil
}

// GetAgentSession returns a session by id, or nil if none exists.
func (s *Store) GetAgentSession(id string) (*AgentSession, error) {
	var sess AgentSession
	var ts string
	var title sql.NullString
	err := s.db.QueryRow(`SELECT id, created_at, title FROM agent_sessions WHERE id = ?`, id).
		Scan(&sess.ID, &ts, &title)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get agent_session: %w", err)
	}
	sess.CreatedAt = parseTime(ts)
	sess.Title = title.String
	return &sess, nil
}

// SetAgentSessionTitle updates the generated or user-provided title.
func (s *Store) SetAgentSessionTitle(id, title string) error {
	_, err := s.db.Exec(`UPDATE agent_sessions SET title = ? WHERE id = ?`, title, id)
	if err != nil {
		return fmt.Errorf("store: set agent_session title: %w", err)
	}
	return nil
}

// AppendActionLog records one ordered action for a session.
func (s *Store) AppendActionLog(a ActionLog) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO agent_action_logs(session_id, event_type, message, data, timestamp) VALUES (?, ?, ?, ?, ?)`,
		a.SessionID, a.EventType, a.Message, a.Data, formatTime(a.Timestamp),
	)
	if err != nil {
		return 0, fmt.Errorf("store: append action log: %w", err)
	}
	return res.LastInsertId()
}

// ActionLogsForSession returns every action in order for replay/inspection.
func (s *Store) ActionLogsForSession(sessionID string) ([]ActionLog, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, event_type, message, data, timestamp FROM agent_action_logs WHERE session_id = ? ORDER BY id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("store: action logs for session: %w", err)
	}
	defer rows.Close()

	var out []ActionLog
	for rows.Next() {
		var a ActionLog
		var ts string
		var data sql.NullString
		if err := rows.Scan(&a.ID, &a.SessionID, &a.EventType, &a.Message, &data, &ts); err != nil {
			return nil, fmt.Errorf("store: scan action log: %w", err)
		}
		a.Data = data.String
		a.Timestamp = parseTime(ts)
		out = append(out, a)
	}
	return out, rows.Err()
}
