package metrics

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"screentime/internal/model"
)

const namespace = "screentime"

// Recorder turns run reports into Prometheus metrics and keeps the last
// report seen per source for the status endpoint.
type Recorder struct {
	reg *prometheus.Registry

	eventsAccepted *prometheus.CounterVec
	recordsSkipped *prometheus.CounterVec
	sourceFailures *prometheus.CounterVec
	sinkRows       *prometheus.CounterVec
	sinkFailures   *prometheus.CounterVec
	watermark      *prometheus.GaugeVec
	lastRun        *prometheus.GaugeVec
	lastSuccess    *prometheus.GaugeVec
	runDuration    prometheus.Summary

	mu        sync.RWMutex
	sources   map[string]model.SourceReport
	updatedAt map[string]time.Time
}

func NewRecorder() *Recorder {
	r := &Recorder{
		reg:       prometheus.NewRegistry(),
		sources:   make(map[string]model.SourceReport),
		updatedAt: make(map[string]time.Time),
	}
	r.eventsAccepted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_collected_total",
		Help:      "Events appended to the log, by source",
	}, []string{"source"})
	r.recordsSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_skipped_total",
		Help:      "Source records dropped as malformed, by source",
	}, []string{"source"})
	r.sourceFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "source_failures_total",
		Help:      "Collection passes in which a source was unavailable",
	}, []string{"source"})
	r.sinkRows = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sink_items_total",
		Help:      "Rows or sensors delivered, by sink",
	}, []string{"sink"})
	r.sinkFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sink_failures_total",
		Help:      "Failed deliveries, by sink",
	}, []string{"sink"})
	r.watermark = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "watermark_seconds",
		Help:      "Current watermark as Unix seconds",
	}, []string{"name"})
	r.lastRun = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time a phase last ran",
	}, []string{"phase"})
	r.lastSuccess = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix time a phase last succeeded",
	}, []string{"phase"})
	r.runDuration = prometheus.NewSummary(prometheus.SummaryOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Wall time of a pipeline run",
	})
	r.reg.MustRegister(
		r.eventsAccepted, r.recordsSkipped, r.sourceFailures,
		r.sinkRows, r.sinkFailures, r.watermark,
		r.lastRun, r.lastSuccess, r.runDuration,
	)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

func (r *Recorder) Observe(rep model.RunReport) {
	finished := rep.Finished
	if finished.IsZero() {
		finished = time.Now()
	}
	if !rep.Started.IsZero() {
		r.runDuration.Observe(finished.Sub(rep.Started).Seconds())
	}
	ts := float64(finished.Unix())

	if c := rep.Collect; c != nil {
		r.lastRun.WithLabelValues("collect").Set(ts)
		if c.OK {
			r.lastSuccess.WithLabelValues("collect").Set(ts)
		}
		r.watermark.WithLabelValues("collection").Set(c.WatermarkAfter)
		r.mu.Lock()
		for _, src := range c.Sources {
			// Accepted counts only reach the log when the append succeeded.
			if c.Accepted > 0 {
				r.eventsAccepted.WithLabelValues(src.Source).Add(float64(src.Accepted))
			}
			r.recordsSkipped.WithLabelValues(src.Source).Add(float64(src.Skipped))
			if !src.OK {
				r.sourceFailures.WithLabelValues(src.Source).Inc()
			}
			r.sources[src.Source] = src
			r.updatedAt[src.Source] = finished
		}
		r.mu.Unlock()
	}
	if e := rep.Export; e != nil {
		r.lastRun.WithLabelValues("export").Set(ts)
		if e.OK {
			r.lastSuccess.WithLabelValues("export").Set(ts)
		}
		r.watermark.WithLabelValues("export").Set(e.WatermarkAfter)
		for _, s := range e.Sinks {
			switch s.Status {
			case model.SinkDelivered:
				r.sinkRows.WithLabelValues(s.Sink).Add(float64(s.Items))
			case model.SinkFailed:
				r.sinkFailures.WithLabelValues(s.Sink).Inc()
			}
		}
	}
}

// Sources returns the last report of every source with the time it was
// recorded.
func (r *Recorder) Sources() (map[string]model.SourceReport, map[string]time.Time) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]model.SourceReport, len(r.sources))
	at := make(map[string]time.Time, len(r.updatedAt))
	for k, v := range r.sources {
		out[k] = v
		at[k] = r.updatedAt[k]
	}
	return out, at
}

// WriteTextfile writes the registry in the node_exporter textfile format.
func (r *Recorder) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return prometheus.WriteToTextfile(path, r.reg)
}
