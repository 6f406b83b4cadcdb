package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetConfig returns the stored value for key, or ("", false, nil) if unset.
func (s *Store) GetConfig(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM config_kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("store: get config %q: %w", key, err)
	}
	return value, true, nil
}

// SetConfig upserts a config_kv row.
func (s *Store) SetConfig(key, value, description string) error {
	_, err := s.db.Exec(
		`INSERT INTO config_kv(key, value, description, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value, description=excluded.description, updated_at=excluded.updated_at`,
		key, value, description, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("store: set config %q: %w", key, err)
	}
	return nil
}

// SeedConfigDefaults inserts each default that is not already present,
// leaving any user- or prior-run-set value untouched.
func (s *Store) SeedConfigDefaults(defaults map[string]string) error {
	for k, v := range defaults {
		_, ok, err := s.GetConfig(k)
		if err != nil {
			return err
		}
		if ok {
			continue
		}
		if err := s.SetConfig(k, v, ""); err != nil {
			return err
		}
	}
	return nil
}

// AllConfig returns every config_kv row, for status reporting.
func (s *Store) AllConfig() ([]ConfigKV, error) {
	rows, err := s.db.Query(`SELECT key, value, description, updated_at FROM config_kv ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("store: all config: %w", err)
	}
	defer rows.Close()

	var out []ConfigKV
	for rows.Next() {
		var c ConfigKV
		var desc sql.NullString
		var ts string
		if err := rows.Scan(&c.Key, &c.Value, &desc, &ts); err != nil {
			return nil, fmt.Errorf("store: scan config: %w", err)
		}
		c.Description = desc.String
		c.UpdatedAt = parseTime(ts)
		out = append(out, c)
	}
	return out, rows.Err()
}
