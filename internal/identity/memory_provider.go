package identity

import (
	"context"
	"sync"
)

// MemoryProvider is an in-process Provider for demo/test use.
type MemoryProvider struct {
	mu       sync.RWMutex
	verified map[string]bool
	fail     bool
}

// NewMemoryProvider creates an empty in-memory provider.
// Unknown identities are reported as unverified.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{verified: make(map[string]bool)}
}

// SetVerified marks an identity's primary contact channel as verified.
func (p *MemoryProvider) SetVerified(identityID string, verified bool) {
	p.mu.Lock()
	p.verified[identityID] = verified
	p.mu.Unlock()
}

// FailLookups makes every lookup return ErrLookupFailed, for degradation tests.
func (p *MemoryProvider) FailLookups(fail bool) {
	p.mu.Lock()
	p.fail = fail
	p.mu.Unlock()
}

func (p *MemoryProvider) IsPrimaryContactVerified(ctx context.Context, identityID string) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.fail {
		return false, ErrLookupFailed
	}
	return p.verified[identityID], nil
}
