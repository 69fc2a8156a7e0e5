// Package reward manages referral rewards and their admin review lifecycle.
//
// Rewards are scheduled as pending when a validated purchase lands, and move
// to approved or rejected only through an explicit admin decision. Money never
// leaves on acceptance alone.
package reward

import (
	"context"
	"errors"
	"time"
)

// Status is a reward's review state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

var (
	// ErrRewardNotFound indicates no reward with the given ID.
	ErrRewardNotFound = errors.New("reward not found")
	// ErrAlreadyReviewed indicates the reward has left the pending state.
	ErrAlreadyReviewed = errors.New("reward already reviewed")
)

// Reward is a referrer's payout for one accepted purchase.
type Reward struct {
	ID         string    `json:"id"`
	PurchaseID string    `json:"purchaseId"`
	ReferrerID string    `json:"referrerId"`
	Amount     float64   `json:"amount"`
	Status     Status    `json:"status"`
	ReviewedBy string    `json:"reviewedBy,omitempty"`
	ReviewNote string    `json:"reviewNote,omitempty"`
	ReviewedAt time.Time `json:"reviewedAt,omitzero"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Store persists rewards.
type Store interface {
	Create(ctx context.Context, r *Reward) error
	Get(ctx context.Context, id string) (*Reward, error)
	ListByStatus(ctx context.Context, status Status, limit int) ([]*Reward, error)
	ListByReferrer(ctx context.Context, referrerID string, limit int) ([]*Reward, error)
	// UpdateReview transitions a pending reward; returns ErrAlreadyReviewed
	// if the reward is no longer pending.
	UpdateReview(ctx context.Context, id string, status Status, reviewedBy, note string, reviewedAt time.Time) error
}
