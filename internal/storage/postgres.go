package storage

import (
	"database/sql"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type PostgresStore struct {
	baseStore
}

// NewPostgres keeps timestamps as ISO text rather than TIMESTAMPTZ so the
// offset each event was recorded with survives the round trip.
func NewPostgres(dsn string) (*PostgresStore, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "postgres://localhost:5432/screentime?sslmode=disable"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{baseStore{db: db, stmt: statements{
		schema: []string{
			`CREATE TABLE IF NOT EXISTS events (
				id BIGSERIAL PRIMARY KEY,
				ts TEXT NOT NULL,
				app TEXT NOT NULL,
				title TEXT NOT NULL,
				duration DOUBLE PRECISION NOT NULL,
				source TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts)`,
			`CREATE TABLE IF NOT EXISTS watermarks (
				name TEXT PRIMARY KEY,
				value DOUBLE PRECISION NOT NULL
			)`,
		},
		insertEvent:  `INSERT INTO events (ts, app, title, duration, source) VALUES ($1, $2, $3, $4, $5)`,
		selectEvents: `SELECT ts, app, title, duration, source FROM events ORDER BY id`,
		loadMark:     `SELECT value FROM watermarks WHERE name = $1`,
		upsertMark: `INSERT INTO watermarks (name, value) VALUES ($1, $2)
			ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value`,
	}}}, nil
}
