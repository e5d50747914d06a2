package storage

import (
	"context"
	"sync"
	"time"

	"screentime/internal/model"
)

// Memory is an in-process EventLog and Watermarks pair, used by tests and
// dry runs.
type Memory struct {
	mu     sync.Mutex
	events []model.Event
	marks  map[Watermark]float64
	// FailAppend, when set, is returned by Append.
	FailAppend error
}

func NewMemory() *Memory {
	return &Memory{marks: make(map[Watermark]float64)}
}

func (m *Memory) Init(ctx context.Context) error { return nil }
func (m *Memory) Close() error                   { return nil }

func (m *Memory) Append(ctx context.Context, events []model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailAppend != nil {
		return m.FailAppend
	}
	for _, ev := range events {
		// The durable stores do not keep created_at either.
		ev.CreatedAt = time.Time{}
		ev.Duration = model.RoundDuration(ev.Duration)
		m.events = append(m.events, ev)
	}
	return nil
}

func (m *Memory) Events(ctx context.Context) ([]model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Event, len(m.events))
	copy(out, m.events)
	return out, nil
}

func (m *Memory) Load(ctx context.Context, name Watermark) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.marks[name], nil
}

func (m *Memory) Save(ctx context.Context, name Watermark, value float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marks[name] = value
	return nil
}
