package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"screentime/internal/config"
	"screentime/internal/model"
)

// Source retrieves raw usage records from one device or data origin.
// Implementations report failures through SourceResult and never panic on
// missing data.
type Source interface {
	Name() string
	Fetch(ctx context.Context, watermark float64, lookback time.Duration) model.SourceResult
}

func NewFromConfig(sc config.SourceConfig, loc *time.Location, logger *slog.Logger) (Source, error) {
	switch sc.Type {
	case config.SourceKnowledge:
		return NewKnowledge(sc.Name, sc.Path, loc, sc.Timeout, logger), nil
	case config.SourceDeviceExport:
		return NewDeviceExport(sc.Name, sc.Binary, sc.DeviceID, sc.Timeout, logger), nil
	case config.SourceFile:
		return NewFile(sc.Name, sc.Path, loc, logger), nil
	default:
		return nil, fmt.Errorf("unknown source type: %s", sc.Type)
	}
}

func failed(format string, args ...any) model.SourceResult {
	return model.SourceResult{OK: false, Diagnostic: fmt.Sprintf(format, args...)}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 5 * time.Minute
	}
	return context.WithTimeout(ctx, d)
}
