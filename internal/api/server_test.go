package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"screentime/internal/config"
	"screentime/internal/history"
	"screentime/internal/logging"
	"screentime/internal/metrics"
	"screentime/internal/model"
)

type stubReporter struct {
	agg *model.DailyAggregate
	err error
}

func (s *stubReporter) Aggregate(ctx context.Context, date string) (*model.DailyAggregate, bool, error) {
	if s.err != nil {
		return nil, false, s.err
	}
	if s.agg == nil || (date != "" && date != s.agg.Date) {
		return nil, false, nil
	}
	return s.agg, true, nil
}

func (s *stubReporter) Watermarks(ctx context.Context) (float64, float64, error) {
	return 1707400000.5, 1707390000, nil
}

func newTestServer(t *testing.T, reporter Reporter) (*httptest.Server, *history.Store, *metrics.Recorder) {
	t.Helper()
	mgr, err := config.NewManager(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	hist := history.NewStore(10)
	rec := metrics.NewRecorder()
	srv := httptest.NewServer(NewServer(mgr, hist, rec, reporter, logging.Discard(), "test").Handler())
	t.Cleanup(srv.Close)
	return srv, hist, rec
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func sampleRun(started time.Time, ok bool) model.RunReport {
	return model.RunReport{
		Started:  started,
		Finished: started.Add(time.Second),
		Collect: &model.CollectReport{
			OK:       ok,
			Accepted: 3,
			Sources:  []model.SourceReport{{Source: "mac", OK: true, Fetched: 3, Accepted: 3}},
		},
	}
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)
	code, body := get(t, srv.URL+"/health")
	if code != http.StatusOK || !strings.Contains(body, `"ok"`) {
		t.Fatalf("health: %d %s", code, body)
	}
}

func TestStatusReflectsLastRun(t *testing.T) {
	srv, hist, rec := newTestServer(t, &stubReporter{})
	run := sampleRun(time.Now(), false)
	hist.Add(run)
	rec.Observe(run)

	code, body := get(t, srv.URL+"/status")
	if code != http.StatusOK {
		t.Fatalf("status code: %d", code)
	}
	var resp statusResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "degraded" || resp.Runs != 1 {
		t.Fatalf("status: %+v", resp)
	}
	if resp.Watermarks.Collection != 1707400000.5 {
		t.Fatalf("watermarks: %+v", resp.Watermarks)
	}
	if !resp.Sources["mac"].OK {
		t.Fatalf("sources: %+v", resp.Sources)
	}
}

func TestRuns(t *testing.T) {
	srv, hist, _ := newTestServer(t, nil)
	base := time.Date(2024, 2, 8, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		hist.Add(sampleRun(base.Add(time.Duration(i)*time.Hour), true))
	}

	var resp struct {
		Runs  []model.RunReport `json:"runs"`
		Count int               `json:"count"`
	}
	_, body := get(t, srv.URL+"/runs?limit=2")
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 2 || !resp.Runs[1].Started.Equal(base.Add(2*time.Hour)) {
		t.Fatalf("limit: %+v", resp)
	}

	_, body = get(t, srv.URL+"/runs?since=2024-02-08T11:00:00Z")
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 2 {
		t.Fatalf("since: %+v", resp)
	}

	if code, _ := get(t, srv.URL+"/runs?since=yesterday"); code != http.StatusBadRequest {
		t.Fatalf("bad since: %d", code)
	}
}

func TestAggregateEndpoint(t *testing.T) {
	agg := &model.DailyAggregate{
		Date:          "2024-02-08",
		TotalSeconds:  350,
		TopApp:        "Discord",
		TopAppSeconds: 200,
		PerAppSeconds: []model.AppTotal{{Title: "Discord", Seconds: 200}},
		SessionCount:  3,
	}
	srv, _, _ := newTestServer(t, &stubReporter{agg: agg})

	code, body := get(t, srv.URL+"/aggregate?date=2024-02-08")
	if code != http.StatusOK || !strings.Contains(body, `"total_minutes":5.8`) {
		t.Fatalf("aggregate: %d %s", code, body)
	}
	if code, _ := get(t, srv.URL+"/aggregate?date=2024-02-07"); code != http.StatusNotFound {
		t.Fatalf("no data: %d", code)
	}
	if code, _ := get(t, srv.URL+"/aggregate?date=08.02.2024"); code != http.StatusBadRequest {
		t.Fatalf("bad date: %d", code)
	}

	failing, _, _ := newTestServer(t, &stubReporter{err: errors.New("log unreadable")})
	if code, _ := get(t, failing.URL+"/aggregate"); code != http.StatusInternalServerError {
		t.Fatalf("reporter error: %d", code)
	}
	none, _, _ := newTestServer(t, nil)
	if code, _ := get(t, none.URL+"/aggregate"); code != http.StatusServiceUnavailable {
		t.Fatalf("no reporter: %d", code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _, rec := newTestServer(t, nil)
	rec.Observe(sampleRun(time.Now(), true))
	code, body := get(t, srv.URL+"/metrics")
	if code != http.StatusOK {
		t.Fatalf("metrics: %d", code)
	}
	for _, want := range []string{
		`screentime_events_collected_total{source="mac"} 3`,
		`screentime_last_success_timestamp_seconds{phase="collect"}`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q:\n%s", want, body)
		}
	}
}
