package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"screentime/internal/model"
)

func TestRecorderTextfile(t *testing.T) {
	r := NewRecorder()
	started := time.Date(2024, 2, 8, 10, 0, 0, 0, time.UTC)
	r.Observe(model.RunReport{
		Started:  started,
		Finished: started.Add(2 * time.Second),
		Collect: &model.CollectReport{
			OK:             true,
			Accepted:       4,
			WatermarkAfter: 1707400000.5,
			Sources: []model.SourceReport{
				{Source: "mac", OK: true, Accepted: 4, Skipped: 1},
				{Source: "iphone", Diagnostic: "unreachable"},
			},
		},
		Export: &model.ExportReport{
			Sinks: []model.SinkReport{
				{Sink: "influx", Status: model.SinkFailed, Error: "500"},
				{Sink: "homeassistant", Status: model.SinkDelivered, Items: 5},
			},
		},
	})

	path := filepath.Join(t.TempDir(), "textfile", "screentime.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("write: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	out := string(raw)
	for _, want := range []string{
		`screentime_events_collected_total{source="mac"} 4`,
		`screentime_records_skipped_total{source="mac"} 1`,
		`screentime_source_failures_total{source="iphone"} 1`,
		`screentime_sink_failures_total{sink="influx"} 1`,
		`screentime_sink_items_total{sink="homeassistant"} 5`,
		`screentime_last_success_timestamp_seconds{phase="collect"}`,
		`screentime_run_duration_seconds_sum 2`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("textfile missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, `last_success_timestamp_seconds{phase="export"}`) {
		t.Fatalf("failed export recorded as success:\n%s", out)
	}

	sources, at := r.Sources()
	if sources["iphone"].Diagnostic != "unreachable" || !at["mac"].Equal(started.Add(2*time.Second)) {
		t.Fatalf("sources: %+v %+v", sources, at)
	}
	if err := r.WriteTextfile(""); err != nil {
		t.Fatalf("empty path should be a no-op: %v", err)
	}
}

func TestRecorderIgnoresAcceptedWhenAppendFailed(t *testing.T) {
	r := NewRecorder()
	r.Observe(model.RunReport{
		Collect: &model.CollectReport{
			Error:   "append events: disk full",
			Sources: []model.SourceReport{{Source: "mac", OK: true, Fetched: 3, Accepted: 3}},
		},
	})
	path := filepath.Join(t.TempDir(), "screentime.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("write: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if strings.Contains(string(raw), `screentime_events_collected_total{source="mac"}`) {
		t.Fatalf("events counted although nothing reached the log:\n%s", raw)
	}
	if !strings.Contains(string(raw), `screentime_last_run_timestamp_seconds{phase="collect"}`) {
		t.Fatalf("collect run not recorded:\n%s", raw)
	}
}
