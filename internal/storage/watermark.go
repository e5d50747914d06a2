package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/natefinch/atomic"
)

// FileWatermarks keeps each watermark in its own plain-text file holding a
// single decimal number of Unix seconds.
type FileWatermarks struct {
	paths map[Watermark]string
}

func NewFileWatermarks(collectionPath, exportPath string) *FileWatermarks {
	return &FileWatermarks{paths: map[Watermark]string{
		CollectionWatermark: collectionPath,
		ExportWatermark:     exportPath,
	}}
}

func (w *FileWatermarks) path(name Watermark) (string, error) {
	p, ok := w.paths[name]
	if !ok || p == "" {
		return "", fmt.Errorf("no path configured for %s watermark", name)
	}
	return p, nil
}

// Load returns zero when the file is absent. Unparseable contents are an
// error rather than zero, since zero means "collect everything".
func (w *FileWatermarks) Load(ctx context.Context, name Watermark) (float64, error) {
	p, err := w.path(name)
	if err != nil {
		return 0, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read %s watermark: %w", name, err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s watermark %s: %w (write the last good Unix timestamp into it; removing it re-reads all history)", name, p, err)
	}
	return v, nil
}

// Save replaces the file atomically.
func (w *FileWatermarks) Save(ctx context.Context, name Watermark, value float64) error {
	p, err := w.path(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create watermark dir: %w", err)
	}
	text := strconv.FormatFloat(value, 'f', -1, 64)
	if err := atomic.WriteFile(p, strings.NewReader(text)); err != nil {
		return fmt.Errorf("write %s watermark: %w", name, err)
	}
	return nil
}
