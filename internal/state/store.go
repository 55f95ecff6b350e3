// Package state persists the engine's small cross-call facts — reference
// location, alarm coverage watermark, reschedule cooldown stamp, per-kind
// reminder preferences — as a key/value table in embedded SQLite. It is the
// injected config store the other components receive; nothing in the engine
// keeps ambient global state.
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"
)

// Well-known keys.
const (
	KeyRefLat       = "ref_lat"
	KeyRefLon       = "ref_lon"
	KeyWatermark    = "alarm_watermark"
	KeyLastAlarmRun = "alarm_last_run"
)

// PrefKey builds the per-kind preference key, e.g. "pref.fajr.enabled".
func PrefKey(kindName, field string) string {
	return "pref." + kindName + "." + field
}

// Store is a SQLite-backed string key/value store.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the state database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create state dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	s := &Store{db: db}
	if err := s.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS kv (
  key   TEXT PRIMARY KEY,
  value TEXT NOT NULL
);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create kv table: %w", err)
	}
	return nil
}

// Get returns the value for key and whether it exists.
func (s *Store) Get(key string) (string, bool, error) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return v, true, nil
}

// Set stores or replaces the value for key.
func (s *Store) Set(key, value string) error {
	_, err := s.db.Exec(`
INSERT INTO kv (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Delete removes key; deleting an absent key is not an error.
func (s *Store) Delete(key string) error {
	if _, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Typed helpers
// --------------------------------------------------------------------------

// GetFloat returns a float value; absent or unparseable values report ok=false.
func (s *Store) GetFloat(key string) (float64, bool, error) {
	v, ok, err := s.Get(key)
	if err != nil || !ok {
		return 0, false, err
	}
	f, perr := strconv.ParseFloat(v, 64)
	if perr != nil {
		return 0, false, nil
	}
	return f, true, nil
}

// SetFloat stores a float with invariant formatting.
func (s *Store) SetFloat(key string, v float64) error {
	return s.Set(key, strconv.FormatFloat(v, 'f', -1, 64))
}

// GetBool returns a boolean value; absent or unparseable values report ok=false.
func (s *Store) GetBool(key string) (bool, bool, error) {
	v, ok, err := s.Get(key)
	if err != nil || !ok {
		return false, false, err
	}
	b, perr := strconv.ParseBool(v)
	if perr != nil {
		return false, false, nil
	}
	return b, true, nil
}

// SetBool stores a boolean.
func (s *Store) SetBool(key string, v bool) error {
	return s.Set(key, strconv.FormatBool(v))
}

// GetInt returns an integer value; absent or unparseable values report ok=false.
func (s *Store) GetInt(key string) (int, bool, error) {
	v, ok, err := s.Get(key)
	if err != nil || !ok {
		return 0, false, err
	}
	n, perr := strconv.Atoi(v)
	if perr != nil {
		return 0, false, nil
	}
	return n, true, nil
}

// SetInt stores an integer.
func (s *Store) SetInt(key string, v int) error {
	return s.Set(key, strconv.Itoa(v))
}

// GetTime returns an RFC 3339 timestamp; absent or unparseable values report
// ok=false.
func (s *Store) GetTime(key string) (time.Time, bool, error) {
	v, ok, err := s.Get(key)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	t, perr := time.Parse(time.RFC3339, v)
	if perr != nil {
		return time.Time{}, false, nil
	}
	return t, true, nil
}

// SetTime stores a timestamp in RFC 3339.
func (s *Store) SetTime(key string, t time.Time) error {
	return s.Set(key, t.Format(time.RFC3339))
}
