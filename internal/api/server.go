package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"screentime/internal/config"
	"screentime/internal/history"
	"screentime/internal/metrics"
	"screentime/internal/model"
)

// Reporter is the read side of the pipeline the API exposes.
type Reporter interface {
	Aggregate(ctx context.Context, date string) (*model.DailyAggregate, bool, error)
	Watermarks(ctx context.Context) (collection, exported float64, err error)
}

type Server struct {
	cfg      *config.Manager
	history  *history.Store
	metrics  *metrics.Recorder
	reporter Reporter
	logger   *slog.Logger
	version  string
	started  time.Time
}

type statusResponse struct {
	Status     string                        `json:"status"`
	Time       string                        `json:"time"`
	Version    string                        `json:"version"`
	ConfigPath string                        `json:"config_path"`
	Uptime     string                        `json:"uptime"`
	Watermarks watermarkStatus               `json:"watermarks"`
	Sources    map[string]model.SourceReport `json:"sources"`
	LastRun    *model.RunReport              `json:"last_run,omitempty"`
	Runs       int                           `json:"runs"`
	Export     exportStatus                  `json:"export"`
}

type watermarkStatus struct {
	Collection float64 `json:"collection"`
	Export     float64 `json:"export"`
}

type exportStatus struct {
	Influx        bool `json:"influx"`
	HomeAssistant bool `json:"homeassistant"`
	Kafka         bool `json:"kafka"`
}

func NewServer(cfg *config.Manager, hist *history.Store, rec *metrics.Recorder, reporter Reporter, logger *slog.Logger, version string) *Server {
	return &Server{
		cfg:      cfg,
		history:  hist,
		metrics:  rec,
		reporter: reporter,
		logger:   logger,
		version:  version,
		started:  time.Now(),
	}
}

// Handler routes the status endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/runs", s.handleRuns)
	mux.HandleFunc("/aggregate", s.handleAggregate)
	if s.metrics != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
	}
	return mux
}

// Start serves the API until ctx is done. It returns nil when the API is
// disabled.
func Start(ctx context.Context, cfg *config.Manager, hist *history.Store, rec *metrics.Recorder, reporter Reporter, logger *slog.Logger, version string) *http.Server {
	if cfg == nil {
		return nil
	}
	current := cfg.Get().API
	if !current.Enabled {
		if logger != nil {
			logger.Info("api disabled")
		}
		return nil
	}
	if logger != nil {
		logger.Info("api enabled", "addr", current.Addr)
	}
	server := NewServer(cfg, hist, rec, reporter, logger, version)
	httpServer := &http.Server{Addr: current.Addr, Handler: server.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctxShutdown)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if logger != nil {
				logger.Error("api server error", "err", err)
			}
		}
	}()
	return httpServer
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	cfg := s.cfg.Get()
	resp := statusResponse{
		Status:     "ok",
		Time:       time.Now().UTC().Format(time.RFC3339Nano),
		Version:    s.version,
		ConfigPath: s.cfg.Path(),
		Uptime:     time.Since(s.started).Round(time.Second).String(),
		Export: exportStatus{
			Influx:        cfg.Export.Influx.Token != "",
			HomeAssistant: cfg.Export.HomeAssistant.Token != "",
			Kafka:         cfg.Export.Kafka.Enabled,
		},
	}
	if s.reporter != nil {
		coll, exp, err := s.reporter.Watermarks(r.Context())
		if err != nil {
			resp.Status = "degraded"
			if s.logger != nil {
				s.logger.Warn("status watermarks unreadable", "err", err)
			}
		}
		resp.Watermarks = watermarkStatus{Collection: coll, Export: exp}
	}
	if s.metrics != nil {
		resp.Sources, _ = s.metrics.Sources()
	}
	if s.history != nil {
		resp.Runs = s.history.Len()
		if last, ok := s.history.Last(); ok {
			resp.LastRun = &last
			if !last.OK() {
				resp.Status = "degraded"
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.history == nil {
		writeJSON(w, http.StatusOK, map[string]any{"runs": []model.RunReport{}, "count": 0})
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	var list []model.RunReport
	if sinceStr := r.URL.Query().Get("since"); sinceStr != "" {
		ts, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		list = s.history.Since(ts)
	} else {
		list = s.history.List(limit)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"runs":  list,
		"count": len(list),
	})
}

func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.reporter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	date := r.URL.Query().Get("date")
	if date != "" {
		if _, err := time.Parse("2006-01-02", date); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "date must be YYYY-MM-DD"})
			return
		}
	}
	agg, ok, err := s.reporter.Aggregate(r.Context(), date)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("aggregate failed", "date", date, "err", err)
		}
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "no data for date", "date": date})
		return
	}
	writeJSON(w, http.StatusOK, aggregateResponse(agg))
}

func aggregateResponse(agg *model.DailyAggregate) map[string]any {
	perApp := make([]map[string]any, 0, len(agg.PerAppSeconds))
	for _, app := range agg.PerAppSeconds {
		perApp = append(perApp, map[string]any{
			"title":   app.Title,
			"seconds": app.Seconds,
			"minutes": model.Minutes(app.Seconds),
		})
	}
	return map[string]any{
		"aggregate":       agg,
		"total_minutes":   model.Minutes(agg.TotalSeconds),
		"top_app_minutes": model.Minutes(agg.TopAppSeconds),
		"apps":            perApp,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
