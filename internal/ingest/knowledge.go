package ingest

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/url"
	"os"
	"time"

	_ "modernc.org/sqlite"

	"screentime/internal/config"
	"screentime/internal/model"
)

// appleEpochOffset is the number of seconds between 1970-01-01 and 2001-01-01.
const appleEpochOffset = 978307200

const knowledgeQuery = `
	SELECT
		ZOBJECT.ZVALUESTRING,
		(ZOBJECT.ZENDDATE - ZOBJECT.ZSTARTDATE),
		(ZOBJECT.ZSTARTDATE + 978307200),
		(ZOBJECT.ZCREATIONDATE + 978307200)
	FROM ZOBJECT
	WHERE
		ZSTREAMNAME = '/app/usage' AND
		(ZOBJECT.ZCREATIONDATE + 978307200) > ? AND
		(ZOBJECT.ZSTARTDATE + 978307200) >= ?
	ORDER BY ZSTARTDATE ASC`

// knowledgeSource reads app usage intervals from a local knowledgeC-style
// SQLite store. The store is opened read-only.
type knowledgeSource struct {
	name    string
	path    string
	loc     *time.Location
	timeout time.Duration
	logger  *slog.Logger
}

func NewKnowledge(name, path string, loc *time.Location, timeout time.Duration, logger *slog.Logger) Source {
	if loc == nil {
		loc = time.Local
	}
	return &knowledgeSource{name: name, path: path, loc: loc, timeout: timeout, logger: logger}
}

func (k *knowledgeSource) Name() string { return k.name }

func (k *knowledgeSource) Fetch(ctx context.Context, watermark float64, lookback time.Duration) model.SourceResult {
	path := config.ResolvePath(k.path)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return failed("knowledge store not found: %s", path)
		}
		return failed("knowledge store stat: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		return failed("knowledge store not readable (full disk access required?): %v", err)
	}
	_ = f.Close()

	ctx, cancel := withTimeout(ctx, k.timeout)
	defer cancel()

	dsn := (&url.URL{Scheme: "file", Path: path, RawQuery: "mode=ro"}).String()
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return failed("open knowledge store: %v", err)
	}
	defer db.Close()

	var cutoff float64
	if lookback > 0 {
		cutoff = model.UnixSeconds(time.Now().Add(-lookback))
	}
	rows, err := db.QueryContext(ctx, knowledgeQuery, watermark, cutoff)
	if err != nil {
		return failed("query knowledge store: %v", err)
	}
	defer rows.Close()

	out := make([]model.RawRecord, 0, 256)
	skipped := 0
	for rows.Next() {
		var (
			app     sql.NullString
			usage   sql.NullFloat64
			start   sql.NullFloat64
			created sql.NullFloat64
		)
		if err := rows.Scan(&app, &usage, &start, &created); err != nil {
			skipped++
			continue
		}
		if !app.Valid || app.String == "" || !usage.Valid || !start.Valid || !created.Valid {
			skipped++
			continue
		}
		out = append(out, model.RawRecord{
			Timestamp:  model.FromUnixSeconds(start.Float64).In(k.loc),
			Identifier: app.String,
			Duration:   usage.Float64,
			CreatedAt:  model.FromUnixSeconds(created.Float64),
		})
	}
	if err := rows.Err(); err != nil {
		return failed("read knowledge store: %v", err)
	}
	if skipped > 0 && k.logger != nil {
		k.logger.Debug("knowledge rows skipped", "source", k.name, "skipped", skipped)
	}
	return model.SourceResult{OK: true, Records: out}
}
