package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"screentime/internal/aggregate"
	"screentime/internal/collector"
	"screentime/internal/config"
	"screentime/internal/export"
	"screentime/internal/history"
	"screentime/internal/ingest"
	"screentime/internal/logging"
	"screentime/internal/metrics"
	"screentime/internal/model"
	"screentime/internal/normalize"
	"screentime/internal/storage"
)

// Phase selects which halves of a run execute.
type Phase string

const (
	PhaseAll     Phase = "all"
	PhaseCollect Phase = "collect"
	PhaseExport  Phase = "export"
)

func ParsePhase(s string) (Phase, error) {
	switch Phase(strings.ToLower(strings.TrimSpace(s))) {
	case "", PhaseAll:
		return PhaseAll, nil
	case PhaseCollect:
		return PhaseCollect, nil
	case PhaseExport:
		return PhaseExport, nil
	}
	return "", fmt.Errorf("unknown phase %q (want all, collect or export)", s)
}

type Options struct {
	Collector       *collector.Collector
	Log             storage.EventLog
	Watermarks      storage.Watermarks
	Gateway         *export.Gateway
	Normalizer      *normalize.Normalizer
	Location        *time.Location
	SourceNames     []string
	TopN            int
	EntityPrefix    string
	PrimaryCategory string
	History         *history.Store
	Metrics         *metrics.Recorder
	Textfile        string
	Logger          *slog.Logger
	Now             func() time.Time
}

// Pipeline runs the collect and export phases against one event log. It
// does not lock: callers must not run two pipelines on the same store.
type Pipeline struct {
	opts   Options
	logger *slog.Logger
}

func New(opts Options) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TopN <= 0 {
		opts.TopN = 10
	}
	return &Pipeline{opts: opts, logger: opts.Logger}
}

// FromConfig wires sources, normalizer, collector and sinks from cfg.
func FromConfig(cfg *config.Config, backend *storage.Backend, hist *history.Store, rec *metrics.Recorder, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	norm := normalize.FromConfig(cfg.Normalize)
	var (
		inputs []collector.Input
		names  []string
	)
	for _, sc := range cfg.Sources {
		if !sc.IsEnabled() {
			continue
		}
		src, err := ingest.NewFromConfig(sc, loc, logger.With("source", sc.Name))
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, collector.Input{Source: src, Lookback: sc.Lookback})
		names = append(names, sc.Name)
	}
	return New(Options{
		Collector:       collector.New(inputs, norm, cfg.Normalize.UnknownTitles, logger),
		Log:             backend.Log,
		Watermarks:      backend.Watermarks,
		Gateway:         export.FromConfig(cfg.Export, logger),
		Normalizer:      norm,
		Location:        loc,
		SourceNames:     names,
		TopN:            cfg.Export.TopN,
		EntityPrefix:    cfg.Export.HomeAssistant.EntityPrefix,
		PrimaryCategory: cfg.Export.HomeAssistant.PrimaryCategory,
		History:         hist,
		Metrics:         rec,
		Textfile:        cfg.Metrics.Textfile,
		Logger:          logger,
	}), nil
}

func (p *Pipeline) Close() error {
	if p.opts.Gateway == nil {
		return nil
	}
	return p.opts.Gateway.Close()
}

// Run executes the selected phases. Export runs even when collection
// failed. date overrides the aggregate day; empty means today.
func (p *Pipeline) Run(ctx context.Context, phase Phase, date string) model.RunReport {
	rep := model.RunReport{Started: p.opts.Now()}
	if phase == PhaseAll || phase == PhaseCollect {
		c := p.RunCollect(ctx)
		rep.Collect = &c
		if !c.OK {
			p.logger.Warn("collection had issues, continuing with export")
		}
	}
	if phase == PhaseAll || phase == PhaseExport {
		e := p.RunExport(ctx, date)
		rep.Export = &e
	}
	rep.Finished = p.opts.Now()

	if p.opts.History != nil {
		p.opts.History.Add(rep)
	}
	if p.opts.Metrics != nil {
		p.opts.Metrics.Observe(rep)
		if err := p.opts.Metrics.WriteTextfile(p.opts.Textfile); err != nil {
			p.logger.Warn("metrics textfile write failed", "path", p.opts.Textfile, "err", err)
		}
	}
	p.logger.Info("run finished", "ok", rep.OK(), "elapsed", rep.Finished.Sub(rep.Started).String())
	return rep
}

// RunCollect appends new events and then advances the collection
// watermark. Unavailable sources are reported but do not fail the phase.
func (p *Pipeline) RunCollect(ctx context.Context) model.CollectReport {
	var rep model.CollectReport
	prior, err := p.opts.Watermarks.Load(ctx, storage.CollectionWatermark)
	if err != nil {
		rep.Error = err.Error()
		p.logger.Error("collection watermark unreadable", "err", err)
		return rep
	}
	rep.WatermarkBefore = prior
	rep.WatermarkAfter = prior
	if prior > 0 {
		p.logger.Info("collecting", "since", model.FromUnixSeconds(prior).Format(time.RFC3339))
	} else {
		p.logger.Info("first run, collecting all available data")
	}

	batch := p.opts.Collector.Collect(ctx, prior)
	rep.Sources = batch.Reports
	if len(batch.Events) == 0 {
		rep.OK = true
		p.logger.Info("no new data since last run")
		return rep
	}
	if err := p.opts.Log.Append(ctx, batch.Events); err != nil {
		rep.Error = fmt.Sprintf("append events: %v", err)
		p.logger.Error("event log append failed", "events", len(batch.Events), "err", err)
		return rep
	}
	rep.Accepted = len(batch.Events)
	if batch.Watermark > prior {
		if err := p.opts.Watermarks.Save(ctx, storage.CollectionWatermark, batch.Watermark); err != nil {
			rep.Error = fmt.Sprintf("save collection watermark: %v", err)
			p.logger.Error("collection watermark write failed", "err", err)
			return rep
		}
		rep.WatermarkAfter = batch.Watermark
	}
	rep.OK = true
	p.logger.Info("events appended", "count", rep.Accepted, "watermark", rep.WatermarkAfter)
	return rep
}

// RunExport pushes rows newer than the export watermark to the raw sinks
// and the day's aggregate to the state sink. The watermark advances only
// when a raw sink delivered and none failed.
func (p *Pipeline) RunExport(ctx context.Context, date string) model.ExportReport {
	var rep model.ExportReport
	since, err := p.opts.Watermarks.Load(ctx, storage.ExportWatermark)
	if err != nil {
		rep.Error = err.Error()
		p.logger.Error("export watermark unreadable", "err", err)
		return rep
	}
	rep.WatermarkBefore = since
	rep.WatermarkAfter = since

	events, err := p.opts.Log.Events(ctx)
	if err != nil {
		rep.Error = fmt.Sprintf("read events: %v", err)
		p.logger.Error("event log read failed", "err", err)
		return rep
	}
	all := p.enrich(events)
	var (
		pending []model.ExportRow
		maxTS   = since
	)
	for _, row := range all {
		ts := model.UnixSeconds(row.Timestamp)
		if ts <= since {
			continue
		}
		pending = append(pending, row)
		if ts > maxTS {
			maxTS = ts
		}
	}
	rep.Pending = len(pending)
	if len(pending) == 0 {
		rep.OK = true
		p.logger.Info("no new data to export")
		return rep
	}

	var result *multierror.Error
	sinks, rawErr := p.opts.Gateway.PushRaw(ctx, pending)
	rep.Sinks = sinks
	if rawErr != nil {
		result = multierror.Append(result, rawErr)
	}

	if date == "" {
		date = p.opts.Now().In(p.opts.Location).Format(aggregate.DateLayout)
	}
	agg, ok := aggregate.Daily(rowsToEvents(all), date, p.opts.Normalizer, p.opts.TopN)
	if ok {
		sensors := export.Sensors(agg, p.opts.EntityPrefix, p.opts.PrimaryCategory, p.opts.SourceNames)
		stateReport, err := p.opts.Gateway.PushAggregate(ctx, sensors)
		rep.Sinks = append(rep.Sinks, stateReport)
		rep.Aggregate = stateReport.Status == model.SinkDelivered
		if err != nil {
			result = multierror.Append(result, err)
		}
	} else {
		p.logger.Info("no data for aggregate day", "date", date)
	}

	if rawErr == nil && delivered(sinks) {
		if err := p.opts.Watermarks.Save(ctx, storage.ExportWatermark, maxTS); err != nil {
			result = multierror.Append(result, fmt.Errorf("save export watermark: %w", err))
		} else {
			rep.WatermarkAfter = maxTS
		}
	} else if rawErr == nil {
		p.logger.Warn("no raw sink configured, export watermark held", "pending", len(pending))
	}

	if err := result.ErrorOrNil(); err != nil {
		rep.Error = err.Error()
		return rep
	}
	rep.OK = true
	return rep
}

// Aggregate computes the rollup for date from the full log.
func (p *Pipeline) Aggregate(ctx context.Context, date string) (*model.DailyAggregate, bool, error) {
	if date == "" {
		date = p.opts.Now().In(p.opts.Location).Format(aggregate.DateLayout)
	}
	if _, err := time.Parse(aggregate.DateLayout, date); err != nil {
		return nil, false, fmt.Errorf("invalid date %q: %w", date, err)
	}
	events, err := p.opts.Log.Events(ctx)
	if err != nil {
		return nil, false, err
	}
	agg, ok := aggregate.Daily(rowsToEvents(p.enrich(events)), date, p.opts.Normalizer, p.opts.TopN)
	return agg, ok, nil
}

// Watermarks returns the collection and export watermarks.
func (p *Pipeline) Watermarks(ctx context.Context) (collection, exported float64, err error) {
	collection, err = p.opts.Watermarks.Load(ctx, storage.CollectionWatermark)
	if err != nil {
		return 0, 0, err
	}
	exported, err = p.opts.Watermarks.Load(ctx, storage.ExportWatermark)
	return collection, exported, err
}

// enrich re-normalizes stored titles, so table changes apply to rows
// collected earlier, and attaches categories.
func (p *Pipeline) enrich(events []model.Event) []model.ExportRow {
	rows := make([]model.ExportRow, 0, len(events))
	for _, ev := range events {
		if strings.TrimSpace(ev.Title) == "" {
			ev.Title = p.opts.Normalizer.ResolveTitle(ev.App)
		} else {
			ev.Title = p.opts.Normalizer.NormalizeTitle(ev.Title)
		}
		rows = append(rows, model.ExportRow{Event: ev, Category: p.opts.Normalizer.CategoryOf(ev.Title)})
	}
	return rows
}

func rowsToEvents(rows []model.ExportRow) []model.Event {
	out := make([]model.Event, len(rows))
	for i, r := range rows {
		out[i] = r.Event
	}
	return out
}

func delivered(reports []model.SinkReport) bool {
	for _, r := range reports {
		if r.Status == model.SinkDelivered {
			return true
		}
	}
	return false
}

// ErrRunFailed is returned by Err when a phase failed.
var ErrRunFailed = errors.New("run failed")

// Err maps a report to the process outcome.
func Err(rep model.RunReport) error {
	if rep.OK() {
		return nil
	}
	return ErrRunFailed
}
