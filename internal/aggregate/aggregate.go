package aggregate

import (
	"slices"
	"strings"
	"time"

	"screentime/internal/model"
)

// DateLayout is the calendar-day format used for aggregate dates.
const DateLayout = "2006-01-02"

// Categorizer maps a display title to its category.
type Categorizer interface {
	CategoryOf(title string) string
}

// Daily rolls up the events whose timestamp falls on date, where the day
// is taken in each timestamp's own offset. It returns false when no event
// matches. topN bounds PerAppSeconds; zero or less keeps every app.
func Daily(events []model.Event, date string, cat Categorizer, topN int) (*model.DailyAggregate, bool) {
	agg := &model.DailyAggregate{
		Date:               date,
		PerSourceSeconds:   make(map[string]float64),
		PerCategorySeconds: make(map[string]float64),
	}
	perApp := make(map[string]float64)
	for _, ev := range events {
		if ev.Timestamp.Format(DateLayout) != date {
			continue
		}
		title := ev.Title
		if strings.TrimSpace(title) == "" {
			title = ev.App
		}
		agg.TotalSeconds += ev.Duration
		agg.PerSourceSeconds[ev.Source] += ev.Duration
		perApp[title] += ev.Duration
		if cat != nil {
			agg.PerCategorySeconds[cat.CategoryOf(title)] += ev.Duration
		}
		agg.SessionCount++
	}
	if agg.SessionCount == 0 {
		return nil, false
	}

	ranked := make([]model.AppTotal, 0, len(perApp))
	for title, secs := range perApp {
		ranked = append(ranked, model.AppTotal{Title: title, Seconds: secs})
	}
	slices.SortFunc(ranked, func(a, b model.AppTotal) int {
		switch {
		case a.Seconds > b.Seconds:
			return -1
		case a.Seconds < b.Seconds:
			return 1
		}
		return strings.Compare(a.Title, b.Title)
	})
	agg.TopApp = ranked[0].Title
	agg.TopAppSeconds = ranked[0].Seconds
	if topN > 0 && len(ranked) > topN {
		ranked = ranked[:topN]
	}
	agg.PerAppSeconds = ranked
	return agg, true
}

// Today returns the current calendar day in loc.
func Today(loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return time.Now().In(loc).Format(DateLayout)
}
