package ingest

import (
	"encoding/csv"
	"errors"
	"strconv"
	"strings"
	"time"

	"screentime/internal/normalize"
)

// RecordFields holds the string fields of one exported usage record before
// type conversion.
type RecordFields struct {
	Timestamp string
	App       string
	Title     string
	Duration  string
	CreatedAt string
}

// Parser accepts JSON objects and CSV rows, one per line. A CSV header
// row, when present, fixes the column order for later rows.
type Parser struct {
	csv *CSVParser
}

func NewParser() *Parser {
	return &Parser{csv: NewCSVParser()}
}

func (p *Parser) ParseLine(line string) (*RecordFields, error) {
	trim := strings.TrimSpace(line)
	if trim == "" || strings.HasPrefix(trim, "#") {
		return nil, nil
	}
	if looksLikeJSON(trim) {
		return ParseJSONBytes([]byte(trim))
	}
	return p.csv.Parse(trim)
}

func looksLikeJSON(s string) bool {
	for _, ch := range s {
		if ch == '{' || ch == '[' {
			return true
		}
		if ch > ' ' {
			return false
		}
	}
	return false
}

func firstNonEmpty(m map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(m[k]); v != "" {
			return v
		}
	}
	return ""
}

type CSVParser struct {
	header []string
}

func NewCSVParser() *CSVParser {
	return &CSVParser{}
}

func (p *CSVParser) Parse(line string) (*RecordFields, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.TrimLeadingSpace = true
	record, err := r.Read()
	if err != nil {
		return nil, err
	}
	if len(record) == 0 {
		return nil, nil
	}
	if p.header == nil && looksLikeHeader(record) {
		p.header = normalizeHeader(record)
		return nil, nil
	}
	fields := &RecordFields{}
	if p.header != nil {
		for i, name := range p.header {
			if i >= len(record) {
				break
			}
			assignField(fields, name, record[i])
		}
		return fields, nil
	}
	// Headerless rows use the event log column order.
	cols := []string{"timestamp", "app", "title", "duration", "created_at"}
	for i, v := range record {
		if i >= len(cols) {
			break
		}
		assignField(fields, cols[i], v)
	}
	return fields, nil
}

func looksLikeHeader(record []string) bool {
	for _, v := range record {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "timestamp", "time", "start", "app", "bundle_id", "duration", "duration_seconds", "created_at":
			return true
		}
	}
	return false
}

func normalizeHeader(record []string) []string {
	out := make([]string, len(record))
	for i, v := range record {
		out[i] = strings.ToLower(strings.TrimSpace(v))
	}
	return out
}

func assignField(fields *RecordFields, name string, value string) {
	name = strings.ToLower(strings.TrimSpace(name))
	value = strings.TrimSpace(value)
	switch name {
	case "timestamp", "time", "ts", "start":
		fields.Timestamp = value
	case "app", "bundle_id", "identifier", "app_id":
		fields.App = value
	case "title", "name":
		fields.Title = value
	case "duration", "duration_seconds", "usage":
		fields.Duration = value
	case "created_at", "created":
		fields.CreatedAt = value
	}
}

// Typed converts string fields into a timestamp, duration and creation
// instant. A missing creation instant is replaced by the end of the usage
// interval.
func (f *RecordFields) Typed(loc *time.Location) (ts time.Time, dur float64, created time.Time, err error) {
	if f.App == "" {
		return time.Time{}, 0, time.Time{}, errors.New("missing app")
	}
	ts, err = normalize.ParseTimestamp(f.Timestamp, loc)
	if err != nil {
		return time.Time{}, 0, time.Time{}, err
	}
	if f.Duration != "" {
		dur, err = strconv.ParseFloat(f.Duration, 64)
		if err != nil {
			return time.Time{}, 0, time.Time{}, err
		}
	}
	if f.CreatedAt != "" {
		created, err = normalize.ParseTimestamp(f.CreatedAt, loc)
		if err != nil {
			return time.Time{}, 0, time.Time{}, err
		}
	} else {
		created = ts.Add(time.Duration(dur * float64(time.Second)))
	}
	return ts, dur, created, nil
}
