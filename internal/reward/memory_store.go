package reward

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory implementation of Store for demo/test use.
type MemoryStore struct {
	mu      sync.RWMutex
	rewards map[string]*Reward
	order   []string // insertion order, oldest first
}

// NewMemoryStore creates an in-memory reward store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rewards: make(map[string]*Reward)}
}

func (s *MemoryStore) Create(ctx context.Context, r *Reward) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *r
	s.rewards[r.ID] = &cp
	s.order = append(s.order, r.ID)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Reward, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rewards[id]
	if !ok {
		return nil, ErrRewardNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *MemoryStore) ListByStatus(ctx context.Context, status Status, limit int) ([]*Reward, error) {
	return s.list(limit, func(r *Reward) bool { return r.Status == status })
}

func (s *MemoryStore) ListByReferrer(ctx context.Context, referrerID string, limit int) ([]*Reward, error) {
	return s.list(limit, func(r *Reward) bool { return r.ReferrerID == referrerID })
}

func (s *MemoryStore) list(limit int, keep func(*Reward) bool) ([]*Reward, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Reward
	for i := len(s.order) - 1; i >= 0 && len(result) < limit; i-- {
		r := s.rewards[s.order[i]]
		if !keep(r) {
			continue
		}
		cp := *r
		result = append(result, &cp)
	}
	return result, nil
}

func (s *MemoryStore) UpdateReview(ctx context.Context, id string, status Status, reviewedBy, note string, reviewedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rewards[id]
	if !ok {
		return ErrRewardNotFound
	}
	if r.Status != StatusPending {
		return ErrAlreadyReviewed
	}
	r.Status = status
	r.ReviewedBy = reviewedBy
	r.ReviewNote = note
	r.ReviewedAt = reviewedAt
	return nil
}
