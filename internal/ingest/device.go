package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/cli/safeexec"

	"screentime/internal/model"
	"screentime/internal/normalize"
)

// deviceExportSource shells out to an external device-event export tool
// that prints usage buckets as JSON.
type deviceExportSource struct {
	name     string
	binary   string
	deviceID string
	timeout  time.Duration
	logger   *slog.Logger
}

func NewDeviceExport(name, binary, deviceID string, timeout time.Duration, logger *slog.Logger) Source {
	return &deviceExportSource{name: name, binary: binary, deviceID: deviceID, timeout: timeout, logger: logger}
}

func (d *deviceExportSource) Name() string { return d.name }

func (d *deviceExportSource) Fetch(ctx context.Context, watermark float64, lookback time.Duration) model.SourceResult {
	if strings.TrimSpace(d.deviceID) == "" {
		return failed("device_id not configured; list devices with `%s devices`", d.binary)
	}
	bin, err := resolveBinary(d.binary)
	if err != nil {
		return failed("export tool not found: %v", err)
	}

	ctx, cancel := withTimeout(ctx, d.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, "events", "preview", "--device", d.deviceID, "--since", sinceArg(lookback))
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = 2 * time.Second
	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return failed("export tool timed out after %s", d.timeout)
		}
		return failed("export tool failed: %v: %s", err, firstLine(stderr.String()))
	}

	records, skipped, err := ParseDeviceExport(stdout.Bytes(), watermark)
	if err != nil {
		return failed("malformed export tool output: %v", err)
	}
	if skipped > 0 && d.logger != nil {
		d.logger.Debug("device events skipped", "source", d.name, "skipped", skipped)
	}
	return model.SourceResult{OK: true, Records: records}
}

type deviceBucket struct {
	Events []deviceEvent `json:"events"`
}

type deviceEvent struct {
	Timestamp string          `json:"timestamp"`
	Duration  json.RawMessage `json:"duration_seconds"`
	Data      struct {
		App   string `json:"app"`
		Title string `json:"title"`
	} `json:"data"`
}

// ParseDeviceExport decodes the export tool's JSON. The tool reports no
// creation instant, so the end of each usage interval stands in for it.
// Events at or below the watermark, and events that fail to parse, are
// dropped and counted as skipped.
func ParseDeviceExport(data []byte, watermark float64) ([]model.RawRecord, int, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, 0, nil
	}
	var buckets []deviceBucket
	if err := json.Unmarshal(trimmed, &buckets); err != nil {
		return nil, 0, err
	}
	var out []model.RawRecord
	skipped := 0
	for _, b := range buckets {
		for _, ev := range b.Events {
			ts, err := normalize.ParseTimestamp(ev.Timestamp, time.UTC)
			if err != nil {
				skipped++
				continue
			}
			dur, err := parseDuration(ev.Duration)
			if err != nil {
				skipped++
				continue
			}
			created := ts.Add(time.Duration(dur * float64(time.Second)))
			if model.UnixSeconds(created) <= watermark {
				skipped++
				continue
			}
			app := strings.TrimSpace(ev.Data.App)
			if app == "" {
				app = "unknown"
			}
			title := strings.TrimSpace(ev.Data.Title)
			if title == "unknown" {
				title = ""
			}
			out = append(out, model.RawRecord{
				Timestamp:  ts,
				Identifier: app,
				Title:      title,
				Duration:   dur,
				CreatedAt:  created,
			})
		}
	}
	return out, skipped, nil
}

func parseDuration(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		var s string
		if err2 := json.Unmarshal(raw, &s); err2 != nil {
			return 0, err
		}
		v, err = strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, err
		}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid duration %v", v)
	}
	return v, nil
}

// sinceArg renders the lookback as whole days, rounded up.
func sinceArg(lookback time.Duration) string {
	if lookback <= 0 {
		lookback = 28 * 24 * time.Hour
	}
	days := int(math.Ceil(lookback.Hours() / 24))
	return strconv.Itoa(days) + "d"
}

func resolveBinary(bin string) (string, error) {
	if strings.ContainsRune(bin, os.PathSeparator) {
		if _, err := os.Stat(bin); err != nil {
			return "", err
		}
		return bin, nil
	}
	return safeexec.LookPath(bin)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
