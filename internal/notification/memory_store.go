package notification

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory implementation of Store for demo/test use.
type MemoryStore struct {
	mu            sync.RWMutex
	notifications []*Notification
}

// NewMemoryStore creates an in-memory notification store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Create(ctx context.Context, n *Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *n
	s.notifications = append(s.notifications, &cp)
	return nil
}

func (s *MemoryStore) ListByReferrer(ctx context.Context, referrerID string, limit int) ([]*Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Notification
	for i := len(s.notifications) - 1; i >= 0 && len(result) < limit; i-- {
		if s.notifications[i].ReferrerID != referrerID {
			continue
		}
		cp := *s.notifications[i]
		result = append(result, &cp)
	}
	return result, nil
}
