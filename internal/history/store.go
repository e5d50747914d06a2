package history

import (
	"sync"
	"time"

	"screentime/internal/model"
)

// Store is a bounded ring of recent run reports, oldest first.
type Store struct {
	mu    sync.RWMutex
	buf   []model.RunReport
	limit int
}

func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = 100
	}
	return &Store{limit: limit}
}

func (s *Store) Add(report model.RunReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buf) < s.limit {
		s.buf = append(s.buf, report)
		return
	}
	copy(s.buf, s.buf[1:])
	s.buf[len(s.buf)-1] = report
}

// List returns up to limit of the most recent reports; limit <= 0 returns
// all of them.
func (s *Store) List(limit int) []model.RunReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.buf) {
		limit = len(s.buf)
	}
	out := make([]model.RunReport, 0, limit)
	for i := len(s.buf) - limit; i < len(s.buf); i++ {
		out = append(out, s.buf[i])
	}
	return out
}

func (s *Store) Since(ts time.Time) []model.RunReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.RunReport, 0)
	for _, r := range s.buf {
		if !r.Started.Before(ts) {
			out = append(out, r)
		}
	}
	return out
}

// Last returns the most recent report.
func (s *Store) Last() (model.RunReport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.buf) == 0 {
		return model.RunReport{}, false
	}
	return s.buf[len(s.buf)-1], true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.buf)
}
