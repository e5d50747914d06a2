package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"screentime/internal/config"
	"screentime/internal/model"
)

// Watermark names one of the two independent scalars.
type Watermark string

const (
	CollectionWatermark Watermark = "collection"
	ExportWatermark     Watermark = "export"
)

// EventLog is the append-only store of canonical events.
type EventLog interface {
	Init(ctx context.Context) error
	Close() error
	// Append must return only after the rows are durable.
	Append(ctx context.Context, events []model.Event) error
	// Events returns every stored row in append order. Rows that cannot be
	// parsed are skipped.
	Events(ctx context.Context) ([]model.Event, error)
}

// Watermarks persists the collection and export scalars. A missing value
// reads as zero.
type Watermarks interface {
	Load(ctx context.Context, name Watermark) (float64, error)
	Save(ctx context.Context, name Watermark, value float64) error
}

// Backend bundles the event log with its watermark store.
type Backend struct {
	Log        EventLog
	Watermarks Watermarks
}

func (b *Backend) Close() error {
	if b == nil || b.Log == nil {
		return nil
	}
	return b.Log.Close()
}

func NewBackend(cfg config.StorageConfig) (*Backend, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "csv":
		return &Backend{
			Log:        NewCSVLog(config.ResolvePath(cfg.Path)),
			Watermarks: NewFileWatermarks(config.ResolvePath(cfg.CollectionWatermarkPath), config.ResolvePath(cfg.ExportWatermarkPath)),
		}, nil
	case "sqlite":
		dsn := cfg.DSN
		if strings.TrimSpace(dsn) == "" {
			dsn = "file:" + filepath.Join(filepath.Dir(config.ResolvePath(cfg.Path)), "screentime.db") + "?_pragma=busy_timeout(5000)"
		}
		s, err := NewSQLite(dsn)
		if err != nil {
			return nil, err
		}
		return &Backend{Log: s, Watermarks: s}, nil
	case "postgres", "postgresql":
		s, err := NewPostgres(cfg.DSN)
		if err != nil {
			return nil, err
		}
		return &Backend{Log: s, Watermarks: s}, nil
	default:
		return nil, errors.New("unsupported storage driver")
	}
}

// statements holds the driver specific SQL.
type statements struct {
	schema       []string
	insertEvent  string
	selectEvents string
	loadMark     string
	upsertMark   string
}

type baseStore struct {
	db   *sql.DB
	stmt statements
}

func (b *baseStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

func (b *baseStore) Init(ctx context.Context) error {
	if b.db == nil {
		return nil
	}
	for _, stmt := range b.stmt.schema {
		if _, err := b.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (b *baseStore) Append(ctx context.Context, events []model.Event) error {
	if b.db == nil || len(events) == 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, b.stmt.insertEvent)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, ev := range events {
		if _, err := stmt.ExecContext(ctx,
			ev.Timestamp.Format(model.TimestampLayout),
			ev.App,
			ev.Title,
			model.RoundDuration(ev.Duration),
			ev.Source,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (b *baseStore) Events(ctx context.Context) ([]model.Event, error) {
	if b.db == nil {
		return nil, nil
	}
	rows, err := b.db.QueryContext(ctx, b.stmt.selectEvents)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Event
	for rows.Next() {
		var (
			ts string
			ev model.Event
		)
		if err := rows.Scan(&ts, &ev.App, &ev.Title, &ev.Duration, &ev.Source); err != nil {
			return nil, err
		}
		parsed, err := parseLogTimestamp(ts)
		if err != nil {
			continue
		}
		ev.Timestamp = parsed
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (b *baseStore) Load(ctx context.Context, name Watermark) (float64, error) {
	if b.db == nil {
		return 0, nil
	}
	var v float64
	err := b.db.QueryRowContext(ctx, b.stmt.loadMark, string(name)).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load %s watermark: %w", name, err)
	}
	return v, nil
}

func (b *baseStore) Save(ctx context.Context, name Watermark, value float64) error {
	if b.db == nil {
		return nil
	}
	if _, err := b.db.ExecContext(ctx, b.stmt.upsertMark, string(name), value); err != nil {
		return fmt.Errorf("save %s watermark: %w", name, err)
	}
	return nil
}
