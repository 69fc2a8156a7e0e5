// Package purchase records referred purchases and orchestrates the accept
// path: fraud validation, persistence, reward scheduling, and referrer
// notification. The fraud engine only reads; this package owns every write
// that follows an accepted attempt.
package purchase

import (
	"context"
	"errors"
	"time"
)

// ErrPurchaseNotFound indicates no purchase exists with the given ID.
var ErrPurchaseNotFound = errors.New("purchase not found")

// Purchase is one accepted referred purchase.
type Purchase struct {
	ID           string    `json:"id"`
	ReferrerID   string    `json:"referrerId"`
	ReferralCode string    `json:"referralCode"`
	CustomerID   string    `json:"customerId,omitempty"`
	Email        string    `json:"email,omitempty"`
	Amount       float64   `json:"amount"`
	OriginIP     string    `json:"originIp,omitempty"`
	FraudScore   int       `json:"fraudScore"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Store persists purchases and answers the origin-IP rate queries the fraud
// engine asks. Rejected attempts are never stored here; the fraud assessment
// trail covers those.
type Store interface {
	Create(ctx context.Context, p *Purchase) error
	Get(ctx context.Context, id string) (*Purchase, error)
	ListByReferrer(ctx context.Context, referrerID string, limit int) ([]*Purchase, error)
	CountByOriginIP(ctx context.Context, ip string) (int, error)
	CountByOriginIPSince(ctx context.Context, ip string, since time.Time) (int, error)
}
