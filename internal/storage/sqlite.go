package storage

import (
	"database/sql"
	"strings"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	baseStore
}

func NewSQLite(dsn string) (*SQLiteStore, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file:screentime.db?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// A single connection keeps writes serialized on the file.
	db.SetMaxOpenConns(1)
	return &SQLiteStore{baseStore{db: db, stmt: statements{
		schema: []string{
			`CREATE TABLE IF NOT EXISTS events (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				ts TEXT NOT NULL,
				app TEXT NOT NULL,
				title TEXT NOT NULL,
				duration REAL NOT NULL,
				source TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts)`,
			`CREATE TABLE IF NOT EXISTS watermarks (
				name TEXT PRIMARY KEY,
				value REAL NOT NULL
			)`,
		},
		insertEvent:  `INSERT INTO events (ts, app, title, duration, source) VALUES (?, ?, ?, ?, ?)`,
		selectEvents: `SELECT ts, app, title, duration, source FROM events ORDER BY id`,
		loadMark:     `SELECT value FROM watermarks WHERE name = ?`,
		upsertMark: `INSERT INTO watermarks (name, value) VALUES (?, ?)
			ON CONFLICT(name) DO UPDATE SET value = excluded.value`,
	}}}, nil
}
