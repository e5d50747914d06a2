package collector

import (
	"context"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"

	"screentime/internal/ingest"
	"screentime/internal/logging"
	"screentime/internal/model"
	"screentime/internal/normalize"
)

// Input pairs a source with how far back it may look.
type Input struct {
	Source   ingest.Source
	Lookback time.Duration
}

// Batch is the outcome of one collection pass.
type Batch struct {
	Events    []model.Event
	Watermark float64
	Reports   []model.SourceReport
}

// Collector merges the sources into one watermark-filtered, time-ordered
// batch. A failing source contributes nothing and never fails the pass.
type Collector struct {
	inputs  []Input
	norm    *normalize.Normalizer
	unknown map[string]struct{}
	logger  *slog.Logger
}

// New builds a Collector. Titles listed in unknownTitles (compared case
// insensitively) are treated as absent; "unknown" is always included.
func New(inputs []Input, norm *normalize.Normalizer, unknownTitles []string, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = logging.Discard()
	}
	unknown := map[string]struct{}{"unknown": {}}
	for _, t := range unknownTitles {
		unknown[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}
	return &Collector{inputs: inputs, norm: norm, unknown: unknown, logger: logger}
}

func (c *Collector) Collect(ctx context.Context, prior float64) Batch {
	batch := Batch{Watermark: prior}
	for _, in := range c.inputs {
		name := in.Source.Name()
		report := model.SourceReport{Source: name}
		if err := ctx.Err(); err != nil {
			report.Diagnostic = err.Error()
			batch.Reports = append(batch.Reports, report)
			continue
		}

		res := in.Source.Fetch(ctx, prior, in.Lookback)
		report.OK = res.OK
		report.Diagnostic = res.Diagnostic
		if !res.OK {
			c.logger.Warn("source unavailable", "source", name, "diagnostic", res.Diagnostic)
			batch.Reports = append(batch.Reports, report)
			continue
		}
		report.Fetched = len(res.Records)

		for _, rec := range res.Records {
			if !valid(rec) {
				report.Skipped++
				continue
			}
			created := model.UnixSeconds(rec.CreatedAt)
			if created <= prior {
				continue
			}
			batch.Events = append(batch.Events, model.Event{
				Timestamp: rec.Timestamp,
				App:       rec.Identifier,
				Title:     c.title(rec),
				Duration:  rec.Duration,
				Source:    name,
				CreatedAt: rec.CreatedAt,
			})
			if created > batch.Watermark {
				batch.Watermark = created
			}
			report.Accepted++
		}
		c.logger.Info("source collected",
			"source", name,
			"fetched", report.Fetched,
			"accepted", report.Accepted,
			"skipped", report.Skipped,
		)
		batch.Reports = append(batch.Reports, report)
	}

	slices.SortStableFunc(batch.Events, func(a, b model.Event) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return batch
}

func (c *Collector) title(rec model.RawRecord) string {
	t := strings.TrimSpace(rec.Title)
	if t != "" {
		if _, ok := c.unknown[strings.ToLower(t)]; !ok {
			return c.norm.NormalizeTitle(t)
		}
	}
	return c.norm.ResolveTitle(rec.Identifier)
}

func valid(rec model.RawRecord) bool {
	if strings.TrimSpace(rec.Identifier) == "" {
		return false
	}
	if rec.Timestamp.IsZero() || rec.CreatedAt.IsZero() {
		return false
	}
	if math.IsNaN(rec.Duration) || math.IsInf(rec.Duration, 0) || rec.Duration < 0 {
		return false
	}
	return true
}
