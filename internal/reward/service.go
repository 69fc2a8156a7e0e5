package reward

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/perkloop/perkloop/internal/idgen"
	"github.com/perkloop/perkloop/internal/metrics"
)

// Service schedules and reviews rewards.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a reward service.
func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Schedule creates a pending reward for an accepted purchase.
func (s *Service) Schedule(ctx context.Context, purchaseID, referrerID string, amount float64) (*Reward, error) {
	r := &Reward{
		ID:         idgen.WithPrefix("rwd_"),
		PurchaseID: purchaseID,
		ReferrerID: referrerID,
		Amount:     amount,
		Status:     StatusPending,
		CreatedAt:  time.Now(),
	}
	if err := s.store.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("schedule reward: %w", err)
	}
	metrics.RewardsTotal.WithLabelValues(string(StatusPending)).Inc()
	s.logger.Info("reward scheduled", "reward_id", r.ID, "purchase_id", purchaseID, "amount", amount)
	return r, nil
}

// Approve moves a pending reward to approved.
func (s *Service) Approve(ctx context.Context, id, reviewedBy string) (*Reward, error) {
	return s.review(ctx, id, StatusApproved, reviewedBy, "")
}

// Reject moves a pending reward to rejected with an operator note.
func (s *Service) Reject(ctx context.Context, id, reviewedBy, note string) (*Reward, error) {
	return s.review(ctx, id, StatusRejected, reviewedBy, note)
}

func (s *Service) review(ctx context.Context, id string, status Status, reviewedBy, note string) (*Reward, error) {
	now := time.Now()
	if err := s.store.UpdateReview(ctx, id, status, reviewedBy, note, now); err != nil {
		return nil, err
	}
	metrics.RewardsTotal.WithLabelValues(string(status)).Inc()
	s.logger.Info("reward reviewed", "reward_id", id, "status", status, "reviewed_by", reviewedBy)
	return s.store.Get(ctx, id)
}

// Pending lists rewards awaiting review, most recent first.
func (s *Service) Pending(ctx context.Context, limit int) ([]*Reward, error) {
	return s.store.ListByStatus(ctx, StatusPending, limit)
}

// Get returns one reward.
func (s *Service) Get(ctx context.Context, id string) (*Reward, error) {
	return s.store.Get(ctx, id)
}

// ListByReferrer returns a referrer's rewards, most recent first.
func (s *Service) ListByReferrer(ctx context.Context, referrerID string, limit int) ([]*Reward, error) {
	return s.store.ListByReferrer(ctx, referrerID, limit)
}
