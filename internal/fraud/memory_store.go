package fraud

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory implementation of Store for demo/test use.
type MemoryStore struct {
	mu          sync.RWMutex
	assessments []*Assessment
}

// NewMemoryStore creates an in-memory assessment store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Record(ctx context.Context, a *Assessment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *a
	cp.Flags = append([]string(nil), a.Flags...)
	s.assessments = append(s.assessments, &cp)
	return nil
}

func (s *MemoryStore) ListRecent(ctx context.Context, limit int) ([]*Assessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter(limit, func(*Assessment) bool { return true }), nil
}

func (s *MemoryStore) ListByReferrer(ctx context.Context, referrerID string, limit int) ([]*Assessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter(limit, func(a *Assessment) bool { return a.ReferrerID == referrerID }), nil
}

// filter returns most-recent-first copies; caller holds the read lock.
func (s *MemoryStore) filter(limit int, keep func(*Assessment) bool) []*Assessment {
	var result []*Assessment
	for i := len(s.assessments) - 1; i >= 0 && len(result) < limit; i-- {
		if !keep(s.assessments[i]) {
			continue
		}
		cp := *s.assessments[i]
		cp.Flags = append([]string(nil), s.assessments[i].Flags...)
		result = append(result, &cp)
	}
	return result
}
