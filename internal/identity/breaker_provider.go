package identity

import (
	"context"
	"fmt"

	"github.com/perkloop/perkloop/internal/circuitbreaker"
)

// breakerKey names the single upstream this wrapper guards.
const breakerKey = "identity_provider"

// BreakerProvider wraps a Provider with a circuit breaker. When the provider
// keeps failing, lookups short-circuit to ErrLookupFailed without touching
// the network; the fraud engine already treats that as a degraded lookup,
// so a dead provider costs nothing but the degraded-identity signal.
type BreakerProvider struct {
	inner   Provider
	breaker *circuitbreaker.Breaker
}

// WithBreaker wraps a provider in a circuit breaker.
func WithBreaker(inner Provider, breaker *circuitbreaker.Breaker) *BreakerProvider {
	return &BreakerProvider{inner: inner, breaker: breaker}
}

func (p *BreakerProvider) IsPrimaryContactVerified(ctx context.Context, identityID string) (bool, error) {
	if !p.breaker.Allow(breakerKey) {
		return false, fmt.Errorf("%w: circuit open", ErrLookupFailed)
	}

	verified, err := p.inner.IsPrimaryContactVerified(ctx, identityID)
	if err != nil {
		p.breaker.RecordFailure(breakerKey)
		return false, err
	}
	p.breaker.RecordSuccess(breakerKey)
	return verified, nil
}
