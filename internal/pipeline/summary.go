package pipeline

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"screentime/internal/model"
)

func mark(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}

func watermarkText(v float64) string {
	if v <= 0 {
		return "-"
	}
	return model.FromUnixSeconds(v).Format(time.RFC3339)
}

// WriteSummary prints the phase outcome table followed by per-source and
// per-sink detail.
func WriteSummary(w io.Writer, rep model.RunReport) error {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"Phase", "OK", "Items", "Watermark", "Error"})
	if c := rep.Collect; c != nil {
		tw.AppendRow(table.Row{"collect", mark(c.OK), c.Accepted, watermarkText(c.WatermarkAfter), c.Error})
		for _, s := range c.Sources {
			detail := fmt.Sprintf("%d fetched, %d skipped", s.Fetched, s.Skipped)
			if s.Diagnostic != "" {
				detail = s.Diagnostic
			}
			tw.AppendRow(table.Row{"  " + s.Source, mark(s.OK), s.Accepted, "", detail})
		}
	}
	if e := rep.Export; e != nil {
		tw.AppendRow(table.Row{"export", mark(e.OK), e.Pending, watermarkText(e.WatermarkAfter), e.Error})
		for _, s := range e.Sinks {
			tw.AppendRow(table.Row{"  " + s.Sink, string(s.Status), s.Items, "", s.Error})
		}
	}
	if _, err := fmt.Fprintln(w, tw.Render()); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "elapsed %s, result %s\n", rep.Finished.Sub(rep.Started).Round(time.Millisecond), mark(rep.OK()))
	return err
}

// WriteAggregate prints a daily aggregate in minutes.
func WriteAggregate(w io.Writer, agg *model.DailyAggregate) error {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.SetTitle("Screen time " + agg.Date)
	tw.AppendHeader(table.Row{"Metric", "Name", "Minutes"})
	tw.AppendRow(table.Row{"total", strconv.Itoa(agg.SessionCount) + " sessions", model.Minutes(agg.TotalSeconds)})
	tw.AppendRow(table.Row{"top app", agg.TopApp, model.Minutes(agg.TopAppSeconds)})
	tw.AppendSeparator()
	for _, name := range sortedKeys(agg.PerSourceSeconds) {
		tw.AppendRow(table.Row{"source", name, model.Minutes(agg.PerSourceSeconds[name])})
	}
	tw.AppendSeparator()
	for _, name := range sortedKeys(agg.PerCategorySeconds) {
		tw.AppendRow(table.Row{"category", name, model.Minutes(agg.PerCategorySeconds[name])})
	}
	tw.AppendSeparator()
	for i, app := range agg.PerAppSeconds {
		tw.AppendRow(table.Row{"#" + strconv.Itoa(i+1), app.Title, model.Minutes(app.Seconds)})
	}
	_, err := fmt.Fprintln(w, tw.Render())
	return err
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
