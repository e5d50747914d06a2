package export

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-multierror"

	"screentime/internal/config"
	"screentime/internal/logging"
	"screentime/internal/model"
)

// RetryPolicy bounds how often a transient sink failure is retried within
// one run.
type RetryPolicy struct {
	MaxRetries int
	Initial    time.Duration
	Max        time.Duration
}

// Gateway fans rows out to the raw sinks and sensors to the state sink.
type Gateway struct {
	raw    []RawSink
	state  StateSink
	retry  RetryPolicy
	logger *slog.Logger
}

func NewGateway(raw []RawSink, state StateSink, retry RetryPolicy, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Gateway{raw: raw, state: state, retry: retry, logger: logger}
}

// FromConfig wires the InfluxDB and Kafka raw sinks and the Home Assistant
// state sink.
func FromConfig(cfg config.ExportConfig, logger *slog.Logger) *Gateway {
	raw := []RawSink{NewInflux(cfg.Influx)}
	if cfg.Kafka.Enabled {
		raw = append(raw, NewKafka(cfg.Kafka))
	}
	return NewGateway(raw, NewHomeAssistant(cfg.HomeAssistant), RetryPolicy{
		MaxRetries: cfg.MaxRetries,
		Initial:    cfg.Backoff,
		Max:        cfg.MaxBackoff,
	}, logger)
}

// Close releases sinks holding connections.
func (g *Gateway) Close() error {
	var result error
	for _, s := range g.raw {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				result = multierror.Append(result, err)
			}
		}
	}
	return result
}

// PushRaw sends rows to every raw sink. Unconfigured sinks are reported as
// skipped. The returned error combines every sink failure.
func (g *Gateway) PushRaw(ctx context.Context, rows []model.ExportRow) ([]model.SinkReport, error) {
	var (
		reports []model.SinkReport
		result  *multierror.Error
	)
	for _, s := range g.raw {
		report := model.SinkReport{Sink: s.Name()}
		err := g.do(ctx, func() error { return s.Push(ctx, rows) })
		switch {
		case errors.Is(err, ErrNotConfigured):
			report.Status = model.SinkSkipped
			g.logger.Info("sink not configured, skipping", "sink", s.Name())
		case err != nil:
			report.Status = model.SinkFailed
			report.Error = err.Error()
			result = multierror.Append(result, err)
			g.logger.Error("raw export failed", "sink", s.Name(), "rows", len(rows), "err", err)
		default:
			report.Status = model.SinkDelivered
			report.Items = len(rows)
			g.logger.Info("raw export delivered", "sink", s.Name(), "rows", len(rows))
		}
		reports = append(reports, report)
	}
	return reports, result.ErrorOrNil()
}

// PushAggregate publishes each sensor independently; one failing entity
// does not stop the rest.
func (g *Gateway) PushAggregate(ctx context.Context, sensors []Sensor) (model.SinkReport, error) {
	if g.state == nil {
		return model.SinkReport{Sink: "state", Status: model.SinkSkipped}, nil
	}
	report := model.SinkReport{Sink: g.state.Name()}
	var result *multierror.Error
	for _, sensor := range sensors {
		err := g.do(ctx, func() error { return g.state.Publish(ctx, sensor) })
		if errors.Is(err, ErrNotConfigured) {
			report.Status = model.SinkSkipped
			g.logger.Info("sink not configured, skipping", "sink", g.state.Name())
			return report, nil
		}
		if err != nil {
			result = multierror.Append(result, err)
			g.logger.Error("state export failed", "sink", g.state.Name(), "entity", sensor.Entity, "err", err)
			continue
		}
		report.Items++
		g.logger.Debug("state updated", "entity", sensor.Entity, "state", sensor.State)
	}
	if err := result.ErrorOrNil(); err != nil {
		report.Status = model.SinkFailed
		report.Error = err.Error()
		return report, err
	}
	report.Status = model.SinkDelivered
	return report, nil
}

// do runs op with exponential backoff. Missing configuration and
// non-transient HTTP statuses are not retried.
func (g *Gateway) do(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	if g.retry.Initial > 0 {
		b.InitialInterval = g.retry.Initial
	}
	if g.retry.Max > 0 {
		b.MaxInterval = g.retry.Max
	}
	b.MaxElapsedTime = 0
	retries := g.retry.MaxRetries
	if retries < 0 {
		retries = 0
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrNotConfigured) {
			return backoff.Permanent(err)
		}
		var se *StatusError
		if errors.As(err, &se) && !se.Temporary() {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}
