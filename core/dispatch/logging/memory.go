package logging

import (
	"context"
	"sync"
)

// MemoryStore keeps records in memory. It backs the simulate command and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	recs []LogRecord
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Append(_ context.Context, rec LogRecord) error {
	s.mu.Lock()
	s.recs = append(s.recs, rec)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Query(_ context.Context, q LogQuery) ([]LogRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []LogRecord
	for _, r := range s.recs {
		if q.Match(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
