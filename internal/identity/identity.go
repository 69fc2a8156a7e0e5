// Package identity wraps the external identity provider.
//
// The provider is the source of truth for whether a customer's primary
// contact channel (email or phone) has been verified. Lookups go over the
// network and may fail or stall; callers bound them with a timeout and
// degrade rather than abort (see the fraud engine).
package identity

import (
	"context"
	"errors"
)

// ErrLookupFailed indicates the provider could not answer. The fraud engine
// treats this as a soft failure, not a hard error.
var ErrLookupFailed = errors.New("identity lookup failed")

// Provider answers verification queries about customer identities.
type Provider interface {
	// IsPrimaryContactVerified reports whether the identity's primary contact
	// channel is verified. The implementation must respect ctx deadlines.
	IsPrimaryContactVerified(ctx context.Context, identityID string) (bool, error)
}
