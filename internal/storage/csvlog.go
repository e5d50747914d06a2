package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"screentime/internal/model"
	"screentime/internal/normalize"
)

// Columns is the fixed column order of the event log.
var Columns = []string{"timestamp", "app", "title", "duration", "source"}

// CSVLog is the default event log: a CSV file with a header row, appended
// to and fsynced on every batch. It assumes a single writer.
type CSVLog struct {
	path string
}

func NewCSVLog(path string) *CSVLog {
	return &CSVLog{path: path}
}

func (l *CSVLog) Path() string { return l.path }

func (l *CSVLog) Init(ctx context.Context) error {
	if dir := filepath.Dir(l.path); dir != "" {
		return os.MkdirAll(dir, 0o755)
	}
	return nil
}

func (l *CSVLog) Close() error { return nil }

func (l *CSVLog) Append(ctx context.Context, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}
	if err := l.Init(ctx); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	needHeader := false
	info, err := os.Stat(l.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		needHeader = true
	case err != nil:
		return fmt.Errorf("stat event log: %w", err)
	case info.Size() == 0:
		needHeader = true
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	w := csv.NewWriter(f)
	if needHeader {
		_ = w.Write(Columns)
	}
	for _, ev := range events {
		_ = w.Write([]string{
			ev.Timestamp.Format(model.TimestampLayout),
			ev.App,
			ev.Title,
			strconv.FormatFloat(model.RoundDuration(ev.Duration), 'f', 2, 64),
			ev.Source,
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("write event log: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync event log: %w", err)
	}
	return f.Close()
}

func (l *CSVLog) Events(ctx context.Context) ([]model.Event, error) {
	f, err := os.Open(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	idx := map[string]int{"timestamp": 0, "app": 1, "title": 2, "duration": 3, "source": 4}
	var out []model.Event
	first := true
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				continue
			}
			return nil, fmt.Errorf("read event log: %w", err)
		}
		if first {
			first = false
			if len(record) > 0 && strings.EqualFold(strings.TrimSpace(record[0]), "timestamp") {
				idx = headerIndex(record)
				continue
			}
		}
		ev, ok := decodeRow(record, idx)
		if !ok {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return idx
}

func decodeRow(record []string, idx map[string]int) (model.Event, bool) {
	get := func(col string) (string, bool) {
		i, ok := idx[col]
		if !ok || i >= len(record) {
			return "", false
		}
		return record[i], true
	}
	tsRaw, ok := get("timestamp")
	if !ok {
		return model.Event{}, false
	}
	ts, err := parseLogTimestamp(tsRaw)
	if err != nil {
		return model.Event{}, false
	}
	app, _ := get("app")
	if app == "" {
		return model.Event{}, false
	}
	title, _ := get("title")
	durRaw, _ := get("duration")
	dur, err := strconv.ParseFloat(strings.TrimSpace(durRaw), 64)
	if err != nil || dur < 0 {
		return model.Event{}, false
	}
	source, _ := get("source")
	return model.Event{Timestamp: ts, App: app, Title: title, Duration: dur, Source: source}, true
}

func parseLogTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s)); err == nil {
		return t, nil
	}
	return normalize.ParseTimestamp(s, time.Local)
}
