package export

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"screentime/internal/config"
	"screentime/internal/model"
)

var (
	tagEscaper         = strings.NewReplacer(" ", `\ `, ",", `\,`, "=", `\=`)
	measurementEscaper = strings.NewReplacer(" ", `\ `, ",", `\,`)
)

// InfluxSink writes rows to an InfluxDB v2 write endpoint as line protocol.
type InfluxSink struct {
	cfg    config.InfluxConfig
	client *http.Client
}

func NewInflux(cfg config.InfluxConfig) *InfluxSink {
	if cfg.Measurement == "" {
		cfg.Measurement = "screentime"
	}
	return &InfluxSink{cfg: cfg, client: newHTTPClient(cfg.Timeout)}
}

func (s *InfluxSink) Name() string { return "influx" }

func (s *InfluxSink) Push(ctx context.Context, rows []model.ExportRow) error {
	if strings.TrimSpace(s.cfg.Token) == "" || strings.TrimSpace(s.cfg.URL) == "" {
		return ErrNotConfigured
	}
	if len(rows) == 0 {
		return nil
	}
	var buf bytes.Buffer
	for i, row := range rows {
		if i > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(LineProtocol(s.cfg.Measurement, row))
	}

	q := url.Values{}
	q.Set("org", s.cfg.Org)
	q.Set("bucket", s.cfg.Bucket)
	q.Set("precision", "ns")
	endpoint := strings.TrimRight(s.cfg.URL, "/") + "/api/v2/write?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Token "+s.cfg.Token)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Sink: s.Name(), Code: resp.StatusCode, Body: snippet(body, 200)}
	}
	return nil
}

// LineProtocol renders one row as an InfluxDB line protocol point with a
// nanosecond timestamp. Tags with empty values are omitted.
func LineProtocol(measurement string, row model.ExportRow) string {
	var b strings.Builder
	b.WriteString(measurementEscaper.Replace(measurement))
	for _, tag := range [...][2]string{
		{"source", row.Source},
		{"app", row.App},
		{"title", row.Title},
		{"category", row.Category},
	} {
		if tag[1] == "" {
			continue
		}
		b.WriteByte(',')
		b.WriteString(tag[0])
		b.WriteByte('=')
		b.WriteString(tagEscaper.Replace(tag[1]))
	}
	b.WriteString(" duration=")
	b.WriteString(strconv.FormatFloat(row.Duration, 'f', -1, 64))
	b.WriteByte(' ')
	b.WriteString(strconv.FormatInt(row.Timestamp.UnixNano(), 10))
	return b.String()
}
