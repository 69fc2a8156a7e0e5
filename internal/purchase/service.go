package purchase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/perkloop/perkloop/internal/config"
	"github.com/perkloop/perkloop/internal/fraud"
	"github.com/perkloop/perkloop/internal/idgen"
	"github.com/perkloop/perkloop/internal/logging"
	"github.com/perkloop/perkloop/internal/metrics"
	"github.com/perkloop/perkloop/internal/notification"
	"github.com/perkloop/perkloop/internal/payments"
	"github.com/perkloop/perkloop/internal/realtime"
	"github.com/perkloop/perkloop/internal/referral"
	"github.com/perkloop/perkloop/internal/reward"
	"github.com/perkloop/perkloop/internal/traces"
)

// notifyTimeout bounds the async notification fan-out after a purchase is
// accepted; the request does not wait on it.
const notifyTimeout = 30 * time.Second

// SubmitRequest is an incoming purchase attempt.
type SubmitRequest struct {
	Amount          float64 `json:"amount" binding:"required,gt=0"`
	ReferralCode    string  `json:"referralCode" binding:"required"`
	CustomerID      string  `json:"customerId"`
	Email           string  `json:"email"`
	OriginIP        string  `json:"originIp"`
	PaymentIntentID string  `json:"paymentIntentId"`
}

// Service orchestrates the purchase path. Fraud validation gates everything:
// no purchase is persisted, no reward scheduled, and no notification sent
// unless the attempt was accepted.
type Service struct {
	cfg      *config.Config
	engine   *fraud.Engine
	store    Store
	resolver *referral.Resolver
	rewards  *reward.Service
	notifier *notification.Dispatcher
	verifier payments.Verifier // nil disables payment verification
	hub      *realtime.Hub     // nil disables event streaming
	logger   *slog.Logger
}

// NewService creates a purchase service.
func NewService(cfg *config.Config, engine *fraud.Engine, store Store, resolver *referral.Resolver, rewards *reward.Service, notifier *notification.Dispatcher, logger *slog.Logger) *Service {
	return &Service{
		cfg:      cfg,
		engine:   engine,
		store:    store,
		resolver: resolver,
		rewards:  rewards,
		notifier: notifier,
		logger:   logger,
	}
}

// WithVerifier enables payment verification before fraud validation.
func (s *Service) WithVerifier(v payments.Verifier) *Service {
	s.verifier = v
	return s
}

// WithHub enables event streaming of purchase outcomes.
func (s *Service) WithHub(hub *realtime.Hub) *Service {
	s.hub = hub
	return s
}

// Submit runs a purchase attempt through the full pipeline.
//
// Rejections come back as *fraud.RejectionError. A validation that exceeds
// the configured budget is resolved by the fail mode: closed rejects with
// ReasonCheckUnavailable, open accepts with a warning and no score. Store
// read failures during validation always reject, regardless of fail mode.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*Purchase, error) {
	ctx, span := traces.StartSpan(ctx, "purchase.submit",
		traces.Amount(req.Amount),
		traces.ReferralCode(referral.Normalize(req.ReferralCode)),
	)
	defer span.End()

	if s.verifier != nil && req.PaymentIntentID != "" {
		if err := s.verifier.VerifyPayment(ctx, req.PaymentIntentID, req.Amount); err != nil {
			metrics.PurchasesTotal.WithLabelValues("payment_failed").Inc()
			return nil, fmt.Errorf("verify payment: %w", err)
		}
	}

	attempt := fraud.Attempt{
		Amount:       req.Amount,
		OriginIP:     req.OriginIP,
		ReferralCode: req.ReferralCode,
		Customer:     fraud.CustomerIdentity{ID: req.CustomerID},
		Email:        req.Email,
	}

	vctx, cancel := context.WithTimeout(ctx, s.cfg.ValidationTimeout)
	decision, err := s.engine.Validate(vctx, attempt)
	cancel()
	if err != nil {
		var rej *fraud.RejectionError
		switch {
		case errors.As(err, &rej):
			s.broadcastRejection(rej)
			metrics.PurchasesTotal.WithLabelValues("rejected").Inc()
			return nil, rej

		case errors.Is(err, fraud.ErrStoreUnavailable):
			// Never accept because the store was down.
			metrics.PurchasesTotal.WithLabelValues("check_unavailable").Inc()
			return nil, fraud.NewRejectionError(fraud.ReasonCheckUnavailable, err)

		case errors.Is(err, context.DeadlineExceeded):
			if s.cfg.FraudFailMode == config.FailOpen {
				logging.L(ctx).Warn("fraud check timed out, accepting per fail-open policy",
					"referral_code", referral.Normalize(req.ReferralCode),
				)
				decision = &fraud.Decision{Score: 0, Flags: []string{}, Accepted: true}
				break
			}
			metrics.PurchasesTotal.WithLabelValues("check_unavailable").Inc()
			return nil, fraud.NewRejectionError(fraud.ReasonCheckUnavailable, err)

		default:
			metrics.PurchasesTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("validate purchase: %w", err)
		}
	}

	ref, err := s.resolver.Resolve(ctx, req.ReferralCode)
	if err != nil {
		return nil, fmt.Errorf("resolve referrer: %w", err)
	}

	p := &Purchase{
		ID:           idgen.WithPrefix("pur_"),
		ReferrerID:   ref.ID,
		ReferralCode: ref.Code,
		CustomerID:   req.CustomerID,
		Email:        req.Email,
		Amount:       req.Amount,
		OriginIP:     req.OriginIP,
		FraudScore:   decision.Score,
		CreatedAt:    time.Now(),
	}
	if err := s.store.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("persist purchase: %w", err)
	}
	span.SetAttributes(traces.PurchaseID(p.ID), traces.ReferrerID(ref.ID))
	metrics.PurchasesTotal.WithLabelValues("accepted").Inc()

	rewardAmount := math.Round(p.Amount*s.cfg.RewardPercent*100) / 100
	if _, err := s.rewards.Schedule(ctx, p.ID, ref.ID, rewardAmount); err != nil {
		// The purchase stands; the reward can be re-created by an operator.
		s.logger.Error("failed to schedule reward", "purchase_id", p.ID, "error", err)
	}

	s.notifyAsync(ctx, ref, p)

	if s.hub != nil {
		s.hub.Broadcast(realtime.EventPurchaseAccepted, p)
	}

	logging.L(ctx).Info("purchase accepted",
		"purchase_id", p.ID,
		"referrer_id", ref.ID,
		"amount", p.Amount,
		"fraud_score", p.FraudScore,
	)
	return p, nil
}

// Get returns one purchase.
func (s *Service) Get(ctx context.Context, id string) (*Purchase, error) {
	return s.store.Get(ctx, id)
}

// ListByReferrer returns a referrer's purchases, most recent first.
func (s *Service) ListByReferrer(ctx context.Context, referrerID string, limit int) ([]*Purchase, error) {
	return s.store.ListByReferrer(ctx, referrerID, limit)
}

// notifyAsync fans the referrer notification out in the background; delivery
// never blocks or fails the purchase response.
func (s *Service) notifyAsync(ctx context.Context, ref *referral.Referrer, p *Purchase) {
	requestID := logging.RequestID(ctx)
	go func() {
		nctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		nctx = logging.WithRequestID(nctx, requestID)

		_, err := s.notifier.NotifyPurchase(nctx, ref, p.ID, p.Amount)
		if err != nil && !errors.Is(err, notification.ErrNoContactChannel) {
			s.logger.Warn("referrer notification failed", "purchase_id", p.ID, "error", err)
		}
	}()
}

func (s *Service) broadcastRejection(rej *fraud.RejectionError) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(realtime.EventPurchaseRejected, map[string]any{
		"reason": rej.Reason,
		"score":  rej.Score,
		"flags":  rej.Flags,
	})
}
