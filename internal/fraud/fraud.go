// Package fraud implements rule-based risk scoring for referral purchases.
//
// Every purchase attempt is evaluated against a fixed list of weighted
// signals: below-minimum amount, unverified customer identity, self-referral,
// origin-IP purchase counts (all-time and 24h), and missing origin IP. The
// fraud score is the sum of triggered weights; attempts scoring at or above
// the reject threshold are refused before any money-bearing side effect runs.
//
// The engine is read-only: it resolves the referral code, queries purchase
// counts, and consults the identity provider, but never writes. Persisting
// the purchase, scheduling the reward, and fanning out notifications are the
// caller's job, and happen only on acceptance.
package fraud

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Signal names, used in flags, metrics labels, and audit records.
const (
	SignalBelowMinimum  = "below_minimum_amount"
	SignalUnverified    = "unverified_identity"
	SignalSelfReferral  = "self_referral"
	SignalIPAllTime     = "excess_purchases_from_origin"
	SignalIPDaily       = "excess_purchases_from_origin_24h"
	SignalMissingOrigin = "missing_origin"
)

// Reason identifies why a purchase attempt was refused.
type Reason string

const (
	ReasonInvalidReferralCode Reason = "InvalidReferralCode"
	ReasonFraudSuspected      Reason = "FraudSuspected"
	ReasonCheckUnavailable    Reason = "FraudCheckUnavailable"
)

// ErrStoreUnavailable wraps record-store read failures. The caller must fail
// closed: a purchase is never accepted because the store was down.
var ErrStoreUnavailable = errors.New("record store unavailable")

// RejectionError is the business outcome of a refused purchase attempt.
// It is not a system error; the flag list is meant for operator review.
type RejectionError struct {
	Reason Reason
	Score  int
	Flags  []string
	cause  error
}

func (e *RejectionError) Error() string {
	if len(e.Flags) > 0 {
		return fmt.Sprintf("%s (score %d): %s", e.Reason, e.Score, strings.Join(e.Flags, "; "))
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.cause)
	}
	return string(e.Reason)
}

func (e *RejectionError) Unwrap() error { return e.cause }

// NewRejectionError builds a rejection for callers outside the scoring
// pipeline, such as a fail-closed timeout in the purchase path.
func NewRejectionError(reason Reason, cause error) *RejectionError {
	return &RejectionError{Reason: reason, cause: cause}
}

// CustomerIdentity optionally references an existing customer record.
// The zero value means the customer does not exist yet (guest checkout);
// there is no placeholder-ID convention.
type CustomerIdentity struct {
	ID string
}

// Present reports whether a customer record exists.
func (c CustomerIdentity) Present() bool { return c.ID != "" }

// Attempt is a purchase attempt under validation. It is a transient value
// built per request by the caller and discarded after the decision.
type Attempt struct {
	Amount       float64
	OriginIP     string // empty when unknown
	ReferralCode string
	Customer     CustomerIdentity
	Email        string
}

// Signal is one weighted heuristic's contribution to the fraud score.
type Signal struct {
	Name      string `json:"name"`
	Weight    int    `json:"weight"`
	Triggered bool   `json:"triggered"`
	Flag      string `json:"flag,omitempty"`
}

// Decision is the aggregate outcome for one attempt. Flags are ordered by the
// fixed evaluator list, never by completion order or weight.
type Decision struct {
	Score    int      `json:"score"`
	Flags    []string `json:"flags"`
	Accepted bool     `json:"accepted"`
}

// Weights carries the per-signal weights. Tuned so that no single signal
// except self-referral and the 24h rate reaches the reject threshold alone.
type Weights struct {
	BelowMinimum  int
	Unverified    int
	SelfReferral  int
	IPAllTime     int
	IPDaily       int
	MissingOrigin int
}

// Config is passed to the engine at construction; there are no module-level
// tunables, so tenants can run with different thresholds deterministically.
type Config struct {
	MinPurchaseAmount float64
	RejectThreshold   int
	IPAllTimeLimit    int
	IPDailyLimit      int
	IdentityTimeout   time.Duration
	Weights           Weights
}

// DefaultConfig returns the standard production tuning.
func DefaultConfig() Config {
	return Config{
		MinPurchaseAmount: 50.00,
		RejectThreshold:   70,
		IPAllTimeLimit:    5,
		IPDailyLimit:      10,
		IdentityTimeout:   2 * time.Second,
		Weights: Weights{
			BelowMinimum:  30,
			Unverified:    40,
			SelfReferral:  100,
			IPAllTime:     50,
			IPDaily:       70,
			MissingOrigin: 20,
		},
	}
}

// PurchaseCounter answers origin-IP rate queries against historical purchases.
type PurchaseCounter interface {
	CountByOriginIP(ctx context.Context, ip string) (int, error)
	CountByOriginIPSince(ctx context.Context, ip string, since time.Time) (int, error)
}

// Assessment is the audit record for one scored attempt.
type Assessment struct {
	ID          string    `json:"id"`
	ReferrerID  string    `json:"referrerId"`
	OriginIP    string    `json:"originIp,omitempty"`
	Amount      float64   `json:"amount"`
	Score       int       `json:"score"`
	Flags       []string  `json:"flags"`
	Accepted    bool      `json:"accepted"`
	EvaluatedAt time.Time `json:"evaluatedAt"`
}

// Store persists assessments for the admin review trail.
type Store interface {
	Record(ctx context.Context, a *Assessment) error
	ListRecent(ctx context.Context, limit int) ([]*Assessment, error)
	ListByReferrer(ctx context.Context, referrerID string, limit int) ([]*Assessment, error)
}
