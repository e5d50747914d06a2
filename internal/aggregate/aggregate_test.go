package aggregate

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"screentime/internal/model"
	"screentime/internal/normalize"
)

var day = time.Date(2024, 2, 8, 9, 0, 0, 0, time.UTC)

func ev(title string, secs float64, source string, at time.Time) model.Event {
	return model.Event{Timestamp: at, App: "id." + title, Title: title, Duration: secs, Source: source}
}

func categories() *normalize.Normalizer {
	return normalize.New(normalize.Tables{
		Categories:   map[string]string{"Chrome": "Browser", "Discord": "Social"},
		SystemPrefix: "System:",
	})
}

func TestDailyExample(t *testing.T) {
	events := []model.Event{
		ev("Chrome", 120, "A", day),
		ev("Chrome", 30, "B", day.Add(time.Hour)),
		ev("Discord", 200, "A", day.Add(2*time.Hour)),
	}
	agg, ok := Daily(events, "2024-02-08", categories(), 10)
	if !ok {
		t.Fatalf("expected aggregate")
	}
	want := &model.DailyAggregate{
		Date:               "2024-02-08",
		TotalSeconds:       350,
		PerSourceSeconds:   map[string]float64{"A": 320, "B": 30},
		TopApp:             "Discord",
		TopAppSeconds:      200,
		PerCategorySeconds: map[string]float64{"Social": 200, "Browser": 150},
		PerAppSeconds:      []model.AppTotal{{Title: "Discord", Seconds: 200}, {Title: "Chrome", Seconds: 150}},
		SessionCount:       3,
	}
	if diff := cmp.Diff(want, agg); diff != "" {
		t.Fatalf("aggregate (-want +got):\n%s", diff)
	}
	if model.Minutes(agg.TotalSeconds) != 5.8 {
		t.Fatalf("minutes: %v", model.Minutes(agg.TotalSeconds))
	}
}

func TestDailyUsesEachTimestampsOwnOffset(t *testing.T) {
	pst := time.FixedZone("PST", -8*3600)
	late := time.Date(2024, 2, 8, 23, 30, 0, 0, pst) // 2024-02-09 in UTC
	events := []model.Event{
		ev("Chrome", 60, "A", late),
		ev("Discord", 60, "A", time.Date(2024, 2, 9, 0, 30, 0, 0, time.UTC)),
	}
	agg, ok := Daily(events, "2024-02-08", categories(), 0)
	if !ok || agg.SessionCount != 1 || agg.TopApp != "Chrome" {
		t.Fatalf("aggregate: %+v", agg)
	}
}

func TestDailyTieBreakAndTopN(t *testing.T) {
	events := []model.Event{
		ev("Zed", 100, "A", day),
		ev("Alpha", 100, "A", day),
		ev("Mid", 50, "A", day),
		ev("Low", 10, "A", day),
	}
	agg, ok := Daily(events, "2024-02-08", nil, 2)
	if !ok {
		t.Fatalf("expected aggregate")
	}
	if agg.TopApp != "Alpha" {
		t.Fatalf("tie break: %s", agg.TopApp)
	}
	got := []string{agg.PerAppSeconds[0].Title, agg.PerAppSeconds[1].Title}
	if diff := cmp.Diff([]string{"Alpha", "Zed"}, got); diff != "" || len(agg.PerAppSeconds) != 2 {
		t.Fatalf("top n (-want +got):\n%s", diff)
	}
	if agg.TotalSeconds != 260 {
		t.Fatalf("total must include apps beyond top n: %v", agg.TotalSeconds)
	}
}

func TestDailyEmpty(t *testing.T) {
	if _, ok := Daily(nil, "2024-02-08", nil, 10); ok {
		t.Fatalf("expected no aggregate")
	}
	events := []model.Event{ev("Chrome", 60, "A", day)}
	if _, ok := Daily(events, "2024-02-07", nil, 10); ok {
		t.Fatalf("expected no aggregate for other day")
	}
}

func TestDailyEmptyTitleGroupsByApp(t *testing.T) {
	events := []model.Event{{Timestamp: day, App: "com.raw", Duration: 5, Source: "A"}}
	agg, ok := Daily(events, "2024-02-08", categories(), 10)
	if !ok || agg.TopApp != "com.raw" {
		t.Fatalf("aggregate: %+v", agg)
	}
	if agg.PerCategorySeconds[normalize.CategoryOther] != 5 {
		t.Fatalf("category: %+v", agg.PerCategorySeconds)
	}
}
