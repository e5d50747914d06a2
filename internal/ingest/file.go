package ingest

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"screentime/internal/config"
	"screentime/internal/model"
)

// fileSource reads a usage export written by another device, as JSON
// lines or CSV.
type fileSource struct {
	name   string
	path   string
	loc    *time.Location
	logger *slog.Logger
}

func NewFile(name, path string, loc *time.Location, logger *slog.Logger) Source {
	if loc == nil {
		loc = time.Local
	}
	return &fileSource{name: name, path: path, loc: loc, logger: logger}
}

func (s *fileSource) Name() string { return s.name }

func (s *fileSource) Fetch(ctx context.Context, watermark float64, lookback time.Duration) model.SourceResult {
	path := config.ResolvePath(s.path)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return failed("export file not found: %s", path)
		}
		return failed("open export file: %v", err)
	}
	defer f.Close()

	var cutoff time.Time
	if lookback > 0 {
		cutoff = time.Now().Add(-lookback)
	}
	parser := NewParser()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	var out []model.RawRecord
	skipped := 0
	for scanner.Scan() {
		if ctx.Err() != nil {
			return failed("read export file: %v", ctx.Err())
		}
		fields, err := parser.ParseLine(scanner.Text())
		if err != nil {
			skipped++
			continue
		}
		if fields == nil {
			continue
		}
		ts, dur, created, err := fields.Typed(s.loc)
		if err != nil {
			skipped++
			continue
		}
		if model.UnixSeconds(created) <= watermark {
			continue
		}
		if !cutoff.IsZero() && ts.Before(cutoff) {
			continue
		}
		out = append(out, model.RawRecord{
			Timestamp:  ts,
			Identifier: fields.App,
			Title:      fields.Title,
			Duration:   dur,
			CreatedAt:  created,
		})
	}
	if err := scanner.Err(); err != nil {
		return failed("read export file: %v", err)
	}
	if skipped > 0 && s.logger != nil {
		s.logger.Warn("export file lines skipped", "source", s.name, "skipped", skipped)
	}
	return model.SourceResult{OK: true, Records: out}
}
