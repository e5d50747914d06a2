package model

import (
	"math"
	"time"
)

// TimestampLayout is ISO-8601 with an explicit offset and microsecond precision.
const TimestampLayout = "2006-01-02T15:04:05.999999Z07:00"

// Event is the canonical record stored in the event log.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	App       string    `json:"app"`
	Title     string    `json:"title"`
	Duration  float64   `json:"duration"`
	Source    string    `json:"source"`

	// CreatedAt is the source-reported creation instant. It only drives
	// deduplication and is never written to the log or exported.
	CreatedAt time.Time `json:"-"`
}

// RawRecord is what a source adapter hands to the collector.
type RawRecord struct {
	Timestamp  time.Time
	Identifier string
	Title      string
	Duration   float64
	CreatedAt  time.Time
}

// SourceResult replaces exceptions at the adapter boundary.
type SourceResult struct {
	OK         bool
	Records    []RawRecord
	Diagnostic string
}

// ExportRow is an event enriched with its category for the sinks.
type ExportRow struct {
	Event
	Category string `json:"category"`
}

type AppTotal struct {
	Title   string  `json:"title"`
	Seconds float64 `json:"seconds"`
}

// DailyAggregate is recomputed from the log on demand and never persisted.
type DailyAggregate struct {
	Date               string             `json:"date"`
	TotalSeconds       float64            `json:"total_seconds"`
	PerSourceSeconds   map[string]float64 `json:"per_source_seconds"`
	TopApp             string             `json:"top_app"`
	TopAppSeconds      float64            `json:"top_app_seconds"`
	PerCategorySeconds map[string]float64 `json:"per_category_seconds"`
	PerAppSeconds      []AppTotal         `json:"per_app_seconds"`
	SessionCount       int                `json:"session_count"`
}

// Minutes converts seconds for presentation, rounded to one decimal.
func Minutes(seconds float64) float64 {
	return math.Round(seconds/60*10) / 10
}

// RoundDuration rounds seconds to two decimals.
func RoundDuration(seconds float64) float64 {
	return math.Round(seconds*100) / 100
}

// UnixSeconds is the watermark representation of an instant.
func UnixSeconds(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixMicro()) / 1e6
}

// FromUnixSeconds converts a fractional Unix timestamp to an instant at
// microsecond precision.
func FromUnixSeconds(sec float64) time.Time {
	return time.UnixMicro(int64(math.Round(sec * 1e6)))
}

type SourceReport struct {
	Source     string `json:"source"`
	OK         bool   `json:"ok"`
	Fetched    int    `json:"fetched"`
	Accepted   int    `json:"accepted"`
	Skipped    int    `json:"skipped"`
	Diagnostic string `json:"diagnostic,omitempty"`
}

type SinkStatus string

const (
	SinkDelivered SinkStatus = "delivered"
	SinkSkipped   SinkStatus = "skipped"
	SinkFailed    SinkStatus = "failed"
)

type SinkReport struct {
	Sink   string     `json:"sink"`
	Status SinkStatus `json:"status"`
	Items  int        `json:"items"`
	Error  string     `json:"error,omitempty"`
}

type CollectReport struct {
	OK              bool           `json:"ok"`
	Accepted        int            `json:"accepted"`
	WatermarkBefore float64        `json:"watermark_before"`
	WatermarkAfter  float64        `json:"watermark_after"`
	Sources         []SourceReport `json:"sources"`
	Error           string         `json:"error,omitempty"`
}

type ExportReport struct {
	OK              bool         `json:"ok"`
	Pending         int          `json:"pending"`
	WatermarkBefore float64      `json:"watermark_before"`
	WatermarkAfter  float64      `json:"watermark_after"`
	Sinks           []SinkReport `json:"sinks"`
	Aggregate       bool         `json:"aggregate"`
	Error           string       `json:"error,omitempty"`
}

// RunReport summarizes one pipeline invocation.
type RunReport struct {
	Started  time.Time      `json:"started"`
	Finished time.Time      `json:"finished"`
	Collect  *CollectReport `json:"collect,omitempty"`
	Export   *ExportReport  `json:"export,omitempty"`
}

// OK is false if any executed phase failed.
func (r RunReport) OK() bool {
	if r.Collect != nil && !r.Collect.OK {
		return false
	}
	if r.Export != nil && !r.Export.OK {
		return false
	}
	return true
}
