package export

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"screentime/internal/model"
)

// ErrNotConfigured is returned by a sink whose credential or endpoint is
// missing. The gateway reports such a sink as skipped, not failed.
var ErrNotConfigured = errors.New("sink not configured")

// RawSink receives every pending event row. Push is all-or-nothing.
type RawSink interface {
	Name() string
	Push(ctx context.Context, rows []model.ExportRow) error
}

// StateSink receives named sensor states derived from the daily aggregate.
type StateSink interface {
	Name() string
	Publish(ctx context.Context, s Sensor) error
}

// StatusError is an unexpected HTTP response from a sink.
type StatusError struct {
	Sink string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Sink, e.Code)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Sink, e.Code, e.Body)
}

// Temporary reports whether retrying may help.
func (e *StatusError) Temporary() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: tr}
}

func snippet(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n])
	}
	return string(b)
}
