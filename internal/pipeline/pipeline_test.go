package pipeline

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"screentime/internal/collector"
	"screentime/internal/config"
	"screentime/internal/export"
	"screentime/internal/history"
	"screentime/internal/ingest"
	"screentime/internal/metrics"
	"screentime/internal/model"
	"screentime/internal/normalize"
	"screentime/internal/storage"
)

var now = time.Date(2024, 2, 8, 18, 0, 0, 0, time.UTC)

type stubSource struct {
	name    string
	records []model.RawRecord
	fail    string
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Fetch(ctx context.Context, watermark float64, lookback time.Duration) model.SourceResult {
	if s.fail != "" {
		return model.SourceResult{Diagnostic: s.fail}
	}
	return model.SourceResult{OK: true, Records: s.records}
}

func usage(id string, at time.Time, secs float64) model.RawRecord {
	return model.RawRecord{
		Timestamp:  at,
		Identifier: id,
		Duration:   secs,
		CreatedAt:  at.Add(time.Duration(secs) * time.Second),
	}
}

func sampleSource() *stubSource {
	return &stubSource{name: "mac", records: []model.RawRecord{
		usage("com.google.Chrome", now.Add(-3*time.Hour), 120),
		usage("com.hnc.Discord", now.Add(-2*time.Hour), 200),
	}}
}

// influxStub counts write requests and answers with status.
func influxStub(t *testing.T, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

type fixture struct {
	p     *Pipeline
	store *storage.Memory
	hist  *history.Store
}

func newFixture(influxURL, influxToken string, sources ...ingest.Source) fixture {
	norm := normalize.New(normalize.Tables{
		Apps:       map[string]string{"com.google.Chrome": "Chrome"},
		Categories: map[string]string{"Chrome": "Browser", "Discord": "Social"},
	})
	inputs := make([]collector.Input, 0, len(sources))
	names := make([]string, 0, len(sources))
	for _, s := range sources {
		inputs = append(inputs, collector.Input{Source: s})
		names = append(names, s.Name())
	}
	gw := export.NewGateway(
		[]export.RawSink{export.NewInflux(config.InfluxConfig{URL: influxURL, Token: influxToken, Org: "home", Bucket: "screen"})},
		export.NewHomeAssistant(config.HomeAssistantConfig{URL: "http://127.0.0.1:1"}),
		export.RetryPolicy{MaxRetries: 1, Initial: time.Millisecond, Max: time.Millisecond},
		nil,
	)
	store := storage.NewMemory()
	hist := history.NewStore(10)
	p := New(Options{
		Collector:   collector.New(inputs, norm, nil, nil),
		Log:         store,
		Watermarks:  store,
		Gateway:     gw,
		Normalizer:  norm,
		Location:    time.UTC,
		SourceNames: names,
		History:     hist,
		Metrics:     metrics.NewRecorder(),
		Now:         func() time.Time { return now },
	})
	return fixture{p: p, store: store, hist: hist}
}

func sinkStatuses(reports []model.SinkReport) map[string]model.SinkStatus {
	out := make(map[string]model.SinkStatus, len(reports))
	for _, r := range reports {
		out[r.Sink] = r.Status
	}
	return out
}

func TestRunDeliversAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	srv, calls := influxStub(t, http.StatusNoContent)
	f := newFixture(srv.URL, "token", sampleSource())

	rep := f.p.Run(ctx, PhaseAll, "")
	if !rep.OK() {
		t.Fatalf("run failed: %+v %+v", rep.Collect, rep.Export)
	}
	if rep.Collect.Accepted != 2 || rep.Export.Pending != 2 {
		t.Fatalf("accepted=%d pending=%d", rep.Collect.Accepted, rep.Export.Pending)
	}
	want := map[string]model.SinkStatus{"influx": model.SinkDelivered, "homeassistant": model.SinkSkipped}
	if diff := cmp.Diff(want, sinkStatuses(rep.Export.Sinks)); diff != "" {
		t.Fatalf("sinks (-want +got):\n%s", diff)
	}
	exported, _ := f.store.Load(ctx, storage.ExportWatermark)
	if exported != model.UnixSeconds(now.Add(-2*time.Hour)) {
		t.Fatalf("export watermark: %v", exported)
	}
	collected, _ := f.store.Load(ctx, storage.CollectionWatermark)
	if collected != model.UnixSeconds(now.Add(-2*time.Hour+200*time.Second)) {
		t.Fatalf("collection watermark: %v", collected)
	}

	rep = f.p.Run(ctx, PhaseAll, "")
	if !rep.OK() || rep.Collect.Accepted != 0 || rep.Export.Pending != 0 {
		t.Fatalf("second run: %+v %+v", rep.Collect, rep.Export)
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("influx writes: %d", n)
	}
	events, _ := f.store.Events(ctx)
	if len(events) != 2 {
		t.Fatalf("log has %d events", len(events))
	}
	if f.hist.Len() != 2 {
		t.Fatalf("history: %d", f.hist.Len())
	}
}

func TestExportHoldsWatermarkOnSinkFailure(t *testing.T) {
	ctx := context.Background()
	srv, calls := influxStub(t, http.StatusInternalServerError)
	f := newFixture(srv.URL, "token", sampleSource())

	rep := f.p.Run(ctx, PhaseAll, "")
	if !rep.Collect.OK {
		t.Fatalf("collect should succeed: %+v", rep.Collect)
	}
	if rep.Export.OK || rep.OK() {
		t.Fatalf("export should fail: %+v", rep.Export)
	}
	if !errors.Is(Err(rep), ErrRunFailed) {
		t.Fatalf("err: %v", Err(rep))
	}
	if n := calls.Load(); n != 2 {
		t.Fatalf("attempts: %d", n)
	}
	if exported, _ := f.store.Load(ctx, storage.ExportWatermark); exported != 0 {
		t.Fatalf("export watermark advanced: %v", exported)
	}

	rep = f.p.Run(ctx, PhaseExport, "")
	if rep.Export.Pending != 2 {
		t.Fatalf("rows should be retried next run, pending=%d", rep.Export.Pending)
	}
}

func TestExportHeldWhenNoRawSinkConfigured(t *testing.T) {
	ctx := context.Background()
	f := newFixture("http://127.0.0.1:1", "", sampleSource())

	rep := f.p.Run(ctx, PhaseAll, "")
	if !rep.OK() {
		t.Fatalf("run failed: %+v", rep.Export)
	}
	if rep.Export.WatermarkAfter != 0 {
		t.Fatalf("watermark advanced without delivery: %v", rep.Export.WatermarkAfter)
	}
	if got := sinkStatuses(rep.Export.Sinks)["influx"]; got != model.SinkSkipped {
		t.Fatalf("influx status: %s", got)
	}
}

func TestCollectSurvivesFailingSource(t *testing.T) {
	ctx := context.Background()
	srv, _ := influxStub(t, http.StatusNoContent)
	f := newFixture(srv.URL, "token", &stubSource{name: "iphone", fail: "device unreachable"}, sampleSource())

	rep := f.p.Run(ctx, PhaseCollect, "")
	if rep.Export != nil {
		t.Fatalf("export ran in collect phase")
	}
	if !rep.Collect.OK || rep.Collect.Accepted != 2 {
		t.Fatalf("collect: %+v", rep.Collect)
	}
	if rep.Collect.Sources[0].OK || rep.Collect.Sources[0].Diagnostic != "device unreachable" {
		t.Fatalf("source report: %+v", rep.Collect.Sources[0])
	}
}

func TestCollectAppendFailureKeepsWatermark(t *testing.T) {
	ctx := context.Background()
	f := newFixture("", "", sampleSource())
	f.store.FailAppend = errors.New("disk full")

	rep := f.p.RunCollect(ctx)
	if rep.OK || !strings.Contains(rep.Error, "disk full") {
		t.Fatalf("collect: %+v", rep)
	}
	if v, _ := f.store.Load(ctx, storage.CollectionWatermark); v != 0 {
		t.Fatalf("watermark advanced after failed append: %v", v)
	}
}

func TestAggregate(t *testing.T) {
	ctx := context.Background()
	f := newFixture("", "", sampleSource())
	f.p.RunCollect(ctx)

	agg, ok, err := f.p.Aggregate(ctx, "")
	if err != nil || !ok {
		t.Fatalf("aggregate: %v %v", ok, err)
	}
	if agg.TopApp != "Discord" || agg.TotalSeconds != 320 {
		t.Fatalf("aggregate: %+v", agg)
	}
	if diff := cmp.Diff(map[string]float64{"Browser": 120, "Social": 200}, agg.PerCategorySeconds); diff != "" {
		t.Fatalf("categories (-want +got):\n%s", diff)
	}
	if _, ok, err := f.p.Aggregate(ctx, "2024-02-07"); err != nil || ok {
		t.Fatalf("other day: %v %v", ok, err)
	}
	if _, _, err := f.p.Aggregate(ctx, "08/02/2024"); err == nil {
		t.Fatalf("expected invalid date error")
	}
}

func TestParsePhase(t *testing.T) {
	for in, want := range map[string]Phase{"": PhaseAll, "ALL": PhaseAll, "collect": PhaseCollect, " export ": PhaseExport} {
		got, err := ParsePhase(in)
		if err != nil || got != want {
			t.Fatalf("ParsePhase(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParsePhase("both"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestWriteSummary(t *testing.T) {
	ctx := context.Background()
	srv, _ := influxStub(t, http.StatusNoContent)
	f := newFixture(srv.URL, "token", &stubSource{name: "iphone", fail: "device unreachable"}, sampleSource())
	rep := f.p.Run(ctx, PhaseAll, "")

	var buf bytes.Buffer
	if err := WriteSummary(&buf, rep); err != nil {
		t.Fatalf("summary: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"collect", "export", "device unreachable", "influx", "delivered", "result ✓"} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %q:\n%s", want, out)
		}
	}
}
