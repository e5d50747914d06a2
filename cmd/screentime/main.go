package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/pflag"

	"screentime/internal/api"
	"screentime/internal/config"
	"screentime/internal/history"
	"screentime/internal/logging"
	"screentime/internal/metrics"
	"screentime/internal/model"
	"screentime/internal/pipeline"
	"screentime/internal/storage"
)

// Version is set at build time via -ldflags "-X main.Version=..."
var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	var (
		cfgPath     = pflag.StringP("config", "c", "screentime.yaml", "path to YAML or JSON config")
		phaseFlag   = pflag.StringP("phase", "p", "all", "phases to run: all, collect or export")
		date        = pflag.String("date", "", "aggregate day as YYYY-MM-DD (default today)")
		interval    = pflag.Duration("interval", 0, "repeat every interval until interrupted; 0 runs once")
		report      = pflag.Bool("report", false, "print the aggregate for --date and exit")
		writeConfig = pflag.Bool("write-config", false, "write a starter config to --config and exit")
		logLevel    = pflag.String("log-level", "", "override the configured log level")
		lockWait    = pflag.Duration("lock-wait", 0, "how long to wait for another run to finish")
		version     = pflag.Bool("version", false, "print version and exit")
	)
	pflag.Parse()

	if *version {
		fmt.Println("screentime", Version)
		return 0
	}
	if *writeConfig {
		if _, err := os.Stat(*cfgPath); err == nil {
			fmt.Fprintf(os.Stderr, "refusing to overwrite %s\n", *cfgPath)
			return 1
		}
		if err := config.Save(*cfgPath, config.DefaultConfig()); err != nil {
			fmt.Fprintf(os.Stderr, "write config: %v\n", err)
			return 1
		}
		fmt.Println("wrote", *cfgPath)
		return 0
	}
	phase, err := pipeline.ParsePhase(*phaseFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	mgr, err := config.NewManager(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 1
	}
	cfg := mgr.Get()
	level := cfg.LogLevel
	if *logLevel != "" {
		level = *logLevel
	}
	logger := logging.NewLogger(level)
	logger.Info("screentime starting", "version", Version, "config", mgr.Path(), "phase", string(phase))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	dataDir := config.ResolvePath(cfg.DataDir)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		logger.Error("create data dir", "dir", dataDir, "err", err)
		return 1
	}
	lock := flock.New(filepath.Join(dataDir, ".screentime.lock"))
	locked, err := tryLock(ctx, lock, *lockWait)
	if err != nil {
		logger.Error("acquire run lock", "err", err)
		return 1
	}
	if !locked {
		logger.Error("another run holds the lock", "path", lock.Path())
		return 1
	}
	defer func() { _ = lock.Unlock() }()

	hist := history.NewStore(cfg.History.Limit)
	rec := metrics.NewRecorder()
	rt := &runtime{hist: hist, rec: rec, logger: logger}
	if err := rt.build(cfg); err != nil {
		logger.Error("build pipeline", "err", err)
		return 1
	}
	defer rt.close()

	if *report {
		agg, ok, err := rt.current().Aggregate(ctx, *date)
		if err != nil {
			logger.Error("aggregate", "err", err)
			return 1
		}
		if !ok {
			fmt.Println("no data for", dayOrToday(*date))
			return 0
		}
		if err := pipeline.WriteAggregate(os.Stdout, agg); err != nil {
			return 1
		}
		return 0
	}

	cycle := func() model.RunReport {
		rep := rt.current().Run(ctx, phase, *date)
		_ = pipeline.WriteSummary(os.Stdout, rep)
		return rep
	}

	if *interval <= 0 {
		rep := cycle()
		if err := pipeline.Err(rep); err != nil {
			return 1
		}
		return 0
	}

	api.Start(ctx, mgr, hist, rec, rt, logger, Version)
	logger.Info("daemon mode", "interval", interval.String())
	cycle()
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("stopping", "reason", ctx.Err().Error())
			return 0
		case <-ticker.C:
			if changed, err := mgr.NeedsReload(); err != nil {
				logger.Warn("config stat failed", "err", err)
			} else if changed {
				next, err := mgr.Reload()
				if err != nil {
					logger.Warn("config reload failed, keeping previous", "err", err)
				} else if err := rt.build(next); err != nil {
					logger.Warn("rebuild after reload failed, keeping previous", "err", err)
				} else {
					logger.Info("config reloaded")
				}
			}
			cycle()
		}
	}
}

func tryLock(ctx context.Context, lock *flock.Flock, wait time.Duration) (bool, error) {
	if wait <= 0 {
		return lock.TryLock()
	}
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	ok, err := lock.TryLockContext(ctx, 250*time.Millisecond)
	if errors.Is(err, context.DeadlineExceeded) {
		return false, nil
	}
	return ok, err
}

func dayOrToday(date string) string {
	if date == "" {
		return "today"
	}
	return date
}

// runtime holds the pipeline built from the current config so a reload can
// swap it between cycles. API reads hold mu for their whole duration; the
// old pipeline and backend are closed only once they have drained.
type runtime struct {
	hist    *history.Store
	rec     *metrics.Recorder
	logger  *slog.Logger
	mu      sync.RWMutex
	pipe    *pipeline.Pipeline
	backend *storage.Backend
}

func (r *runtime) build(cfg *config.Config) error {
	backend, err := storage.NewBackend(cfg.Storage)
	if err != nil {
		return err
	}
	if err := backend.Log.Init(context.Background()); err != nil {
		_ = backend.Close()
		return fmt.Errorf("init storage: %w", err)
	}
	p, err := pipeline.FromConfig(cfg, backend, r.hist, r.rec, r.logger)
	if err != nil {
		_ = backend.Close()
		return err
	}

	r.mu.Lock()
	old, oldBackend := r.pipe, r.backend
	r.pipe, r.backend = p, backend
	r.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	if oldBackend != nil {
		_ = oldBackend.Close()
	}
	return nil
}

func (r *runtime) current() *pipeline.Pipeline {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pipe
}

func (r *runtime) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pipe != nil {
		_ = r.pipe.Close()
	}
	_ = r.backend.Close()
}

func (r *runtime) Aggregate(ctx context.Context, date string) (*model.DailyAggregate, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pipe.Aggregate(ctx, date)
}

func (r *runtime) Watermarks(ctx context.Context) (float64, float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pipe.Watermarks(ctx)
}
