// Package sqlitestore implements storage.Store on top of
// modernc.org/sqlite, adapted from the pack's embedded-migration SQLite
// stores down to the single key/value table this module needs.
package sqlitestore

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store is a single key/value table backed by a SQLite file.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the SQLite database at dsn and ensures
// the key/value table exists.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestore: set WAL mode: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestore: create table: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Load implements storage.Store.
func (s *Store) Load(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("sqlitestore: no value for key %q", key)
	}
	if err != nil {
		return "", fmt.Errorf("sqlitestore: load %q: %w", key, err)
	}
	return value, nil
}

// Save implements storage.Store.
func (s *Store) Save(key, text string) error {
	_, err := s.db.Exec(
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, text,
	)
	if err != nil {
		return fmt.Errorf("sqlitestore: save %q: %w", key, err)
	}
	return nil
}
