package audit

import (
	"context"
	"sync"
)

// MemorySink is an in-memory implementation of Sink for demo/test use.
type MemorySink struct {
	mu      sync.RWMutex
	records map[string][]*Record // userID → records
}

// NewMemorySink creates an in-memory assessment sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{records: make(map[string][]*Record)}
}

func (s *MemorySink) Record(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := *rec
	s.records[rec.Transaction.UserID] = append(s.records[rec.Transaction.UserID], &r)
	return nil
}

func (s *MemorySink) ListByUser(_ context.Context, userID string, limit int) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.records[userID]
	if len(all) == 0 {
		return nil, nil
	}

	// Most recent first, up to limit.
	start := len(all) - limit
	if start < 0 {
		start = 0
	}
	result := make([]*Record, 0, len(all)-start)
	for i := len(all) - 1; i >= start; i-- {
		r := *all[i]
		result = append(result, &r)
	}
	return result, nil
}
