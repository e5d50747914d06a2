package collector

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"screentime/internal/model"
	"screentime/internal/normalize"
)

type fakeSource struct {
	name     string
	res      model.SourceResult
	calls    int
	lastMark float64
	lastBack time.Duration
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Fetch(ctx context.Context, watermark float64, lookback time.Duration) model.SourceResult {
	f.calls++
	f.lastMark = watermark
	f.lastBack = lookback
	return f.res
}

var base = time.Date(2024, 2, 8, 10, 0, 0, 0, time.UTC)

func rec(id, title string, offset time.Duration, dur float64) model.RawRecord {
	ts := base.Add(offset)
	return model.RawRecord{
		Timestamp:  ts,
		Identifier: id,
		Title:      title,
		Duration:   dur,
		CreatedAt:  ts.Add(time.Duration(dur * float64(time.Second))),
	}
}

func testNormalizer() *normalize.Normalizer {
	return normalize.New(normalize.Tables{
		Apps:   map[string]string{"com.google.Chrome": "Chrome"},
		Titles: []normalize.Entry{{From: "TikTok - Videos, Shop & LIVE", To: "TikTok"}},
	})
}

func TestCollectMergesAndSortsByTime(t *testing.T) {
	a := &fakeSource{name: "iphone", res: model.SourceResult{OK: true, Records: []model.RawRecord{
		rec("com.zhiliaoapp.musically", "TikTok - Videos, Shopping & more", 5*time.Minute, 10),
		rec("com.google.Chrome", "", 0, 20),
	}}}
	b := &fakeSource{name: "mac", res: model.SourceResult{OK: true, Records: []model.RawRecord{
		rec("com.example.MyCoolApp", "", 2*time.Minute, 30),
		rec("com.google.Chrome", "", 5*time.Minute, 40),
	}}}
	c := New([]Input{{Source: a, Lookback: 28 * 24 * time.Hour}, {Source: b}}, testNormalizer(), nil, nil)
	batch := c.Collect(context.Background(), 0)

	type row struct {
		Title  string
		Source string
	}
	var got []row
	for _, ev := range batch.Events {
		got = append(got, row{ev.Title, ev.Source})
	}
	want := []row{
		{"Chrome", "iphone"},
		{"My Cool App", "mac"},
		{"TikTok", "iphone"},
		{"Chrome", "mac"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("merge order (-want +got):\n%s", diff)
	}
	if a.lastBack != 28*24*time.Hour || b.lastBack != 0 {
		t.Fatalf("lookback not passed through: %s %s", a.lastBack, b.lastBack)
	}
	wantMark := model.UnixSeconds(base.Add(5*time.Minute + 40*time.Second))
	if batch.Watermark != wantMark {
		t.Fatalf("watermark: got %v want %v", batch.Watermark, wantMark)
	}
}

func TestCollectDedupBoundary(t *testing.T) {
	prior := model.UnixSeconds(base.Add(time.Hour))
	at := model.FromUnixSeconds(prior)
	src := &fakeSource{name: "mac", res: model.SourceResult{OK: true, Records: []model.RawRecord{
		{Timestamp: base, Identifier: "com.a", Duration: 1, CreatedAt: at},
		{Timestamp: base, Identifier: "com.b", Duration: 1, CreatedAt: at.Add(time.Microsecond)},
		{Timestamp: base, Identifier: "com.c", Duration: 1, CreatedAt: at.Add(-time.Second)},
	}}}
	batch := New([]Input{{Source: src}}, testNormalizer(), nil, nil).Collect(context.Background(), prior)
	if len(batch.Events) != 1 || batch.Events[0].App != "com.b" {
		t.Fatalf("boundary filter: %+v", batch.Events)
	}
	if src.lastMark != prior {
		t.Fatalf("source got watermark %v", src.lastMark)
	}
	if batch.Watermark <= prior {
		t.Fatalf("watermark did not advance: %v", batch.Watermark)
	}
}

func TestCollectWatermarkNeverRegresses(t *testing.T) {
	prior := model.UnixSeconds(base.Add(24 * time.Hour))
	src := &fakeSource{name: "mac", res: model.SourceResult{OK: true, Records: []model.RawRecord{
		rec("com.a", "", 0, 10),
	}}}
	batch := New([]Input{{Source: src}}, testNormalizer(), nil, nil).Collect(context.Background(), prior)
	if len(batch.Events) != 0 {
		t.Fatalf("stale events accepted: %+v", batch.Events)
	}
	if batch.Watermark != prior {
		t.Fatalf("watermark moved: %v", batch.Watermark)
	}
}

func TestCollectIsolatesFailingSource(t *testing.T) {
	bad := &fakeSource{name: "iphone", res: model.SourceResult{OK: false, Diagnostic: "export tool not found"}}
	good := &fakeSource{name: "mac", res: model.SourceResult{OK: true, Records: []model.RawRecord{
		rec("com.a", "", 0, 10),
	}}}
	batch := New([]Input{{Source: bad}, {Source: good}}, testNormalizer(), nil, nil).Collect(context.Background(), 0)
	if len(batch.Events) != 1 || batch.Events[0].Source != "mac" {
		t.Fatalf("events: %+v", batch.Events)
	}
	want := []model.SourceReport{
		{Source: "iphone", Diagnostic: "export tool not found"},
		{Source: "mac", OK: true, Fetched: 1, Accepted: 1},
	}
	if diff := cmp.Diff(want, batch.Reports); diff != "" {
		t.Fatalf("reports (-want +got):\n%s", diff)
	}
}

func TestCollectSkipsInvalidRecords(t *testing.T) {
	ok := rec("com.ok", "", 0, 5)
	src := &fakeSource{name: "mac", res: model.SourceResult{OK: true, Records: []model.RawRecord{
		ok,
		{Timestamp: base, Identifier: "", Duration: 1, CreatedAt: base.Add(time.Second)},
		{Timestamp: base, Identifier: "com.neg", Duration: -1, CreatedAt: base.Add(time.Second)},
		{Timestamp: base, Identifier: "com.nan", Duration: math.NaN(), CreatedAt: base.Add(time.Second)},
		{Identifier: "com.zero", Duration: 1, CreatedAt: base.Add(time.Second)},
	}}}
	batch := New([]Input{{Source: src}}, testNormalizer(), nil, nil).Collect(context.Background(), 0)
	if len(batch.Events) != 1 || batch.Events[0].App != "com.ok" {
		t.Fatalf("events: %+v", batch.Events)
	}
	if batch.Reports[0].Skipped != 4 {
		t.Fatalf("skipped: %d", batch.Reports[0].Skipped)
	}
}

func TestCollectUnknownTitleFallsBackToIdentifier(t *testing.T) {
	src := &fakeSource{name: "iphone", res: model.SourceResult{OK: true, Records: []model.RawRecord{
		rec("com.google.Chrome", "Unknown", 0, 5),
		rec("com.example.Thing", "n/a", time.Second, 5),
	}}}
	batch := New([]Input{{Source: src}}, testNormalizer(), []string{"N/A"}, nil).Collect(context.Background(), 0)
	if batch.Events[0].Title != "Chrome" || batch.Events[1].Title != "Thing" {
		t.Fatalf("titles: %q %q", batch.Events[0].Title, batch.Events[1].Title)
	}
}

func TestCollectIdempotentOnUnchangedWatermark(t *testing.T) {
	src := &fakeSource{name: "mac", res: model.SourceResult{OK: true, Records: []model.RawRecord{
		rec("com.a", "", 0, 10),
		rec("com.b", "", time.Minute, 10),
	}}}
	c := New([]Input{{Source: src}}, testNormalizer(), nil, nil)
	first := c.Collect(context.Background(), 0)
	second := c.Collect(context.Background(), first.Watermark)
	if len(first.Events) != 2 || len(second.Events) != 0 {
		t.Fatalf("first=%d second=%d", len(first.Events), len(second.Events))
	}
	if second.Watermark != first.Watermark {
		t.Fatalf("watermark changed: %v -> %v", first.Watermark, second.Watermark)
	}
}
