package purchase

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory implementation of Store for demo/test use.
type MemoryStore struct {
	mu        sync.RWMutex
	purchases map[string]*Purchase
	order     []string // insertion order, oldest first
}

// NewMemoryStore creates an in-memory purchase store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{purchases: make(map[string]*Purchase)}
}

func (s *MemoryStore) Create(ctx context.Context, p *Purchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *p
	s.purchases[p.ID] = &cp
	s.order = append(s.order, p.ID)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.purchases[id]
	if !ok {
		return nil, ErrPurchaseNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) ListByReferrer(ctx context.Context, referrerID string, limit int) ([]*Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Purchase
	for i := len(s.order) - 1; i >= 0 && len(result) < limit; i-- {
		p := s.purchases[s.order[i]]
		if p.ReferrerID != referrerID {
			continue
		}
		cp := *p
		result = append(result, &cp)
	}
	return result, nil
}

func (s *MemoryStore) CountByOriginIP(ctx context.Context, ip string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, p := range s.purchases {
		if p.OriginIP == ip {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) CountByOriginIPSince(ctx context.Context, ip string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, p := range s.purchases {
		if p.OriginIP == ip && !p.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}
