package referral

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory implementation of Store for demo/test use.
type MemoryStore struct {
	mu     sync.RWMutex
	byID   map[string]*Referrer
	byCode map[string]*Referrer
}

// NewMemoryStore creates an in-memory referrer store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[string]*Referrer),
		byCode: make(map[string]*Referrer),
	}
}

func (s *MemoryStore) Create(ctx context.Context, r *Referrer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byCode[r.Code]; exists {
		return ErrCodeTaken
	}
	cp := *r
	s.byID[r.ID] = &cp
	s.byCode[r.Code] = &cp
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Referrer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.byID[id]
	if !ok {
		return nil, ErrReferrerNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *MemoryStore) FindByCode(ctx context.Context, code string) (*Referrer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.byCode[code]
	if !ok {
		return nil, ErrCodeNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *MemoryStore) SetVerified(ctx context.Context, id string, verified bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.byID[id]
	if !ok {
		return ErrReferrerNotFound
	}
	r.Verified = verified
	return nil
}
