package purchase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/perkloop/perkloop/internal/config"
	"github.com/perkloop/perkloop/internal/fraud"
	"github.com/perkloop/perkloop/internal/identity"
	"github.com/perkloop/perkloop/internal/notification"
	"github.com/perkloop/perkloop/internal/referral"
	"github.com/perkloop/perkloop/internal/reward"
)

const (
	testReferrerID = "ref_alice"
	testCode       = "ABCD2345"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	return &config.Config{
		MinPurchaseAmount: 50.00,
		RejectThreshold:   70,
		IPAllTimeLimit:    5,
		IPDailyLimit:      10,
		IdentityTimeout:   time.Second,
		FraudFailMode:     config.FailClosed,
		ValidationTimeout: 5 * time.Second,
		RewardPercent:     0.10,
	}
}

// fixture wires a full in-memory purchase pipeline. The engine's purchase
// counter can be swapped to simulate store failures without touching the
// store the service persists to.
type fixture struct {
	cfg      *config.Config
	service  *Service
	store    *MemoryStore
	rewards  *reward.Service
	rewStore *reward.MemoryStore
	notes    *notification.MemoryStore
	provider *identity.MemoryProvider
}

func newFixture(t *testing.T, cfg *config.Config, counter fraud.PurchaseCounter) *fixture {
	t.Helper()

	refs := referral.NewMemoryStore()
	err := refs.Create(context.Background(), &referral.Referrer{
		ID:        testReferrerID,
		Code:      testCode,
		Name:      "Alice",
		Email:     "alice@example.com",
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("seed referrer: %v", err)
	}
	resolver := referral.NewResolver(refs)

	store := NewMemoryStore()
	if counter == nil {
		counter = store
	}

	provider := identity.NewMemoryProvider()
	provider.SetVerified("cust_bob", true)

	engineCfg := fraud.Config{
		MinPurchaseAmount: cfg.MinPurchaseAmount,
		RejectThreshold:   cfg.RejectThreshold,
		IPAllTimeLimit:    cfg.IPAllTimeLimit,
		IPDailyLimit:      cfg.IPDailyLimit,
		IdentityTimeout:   cfg.IdentityTimeout,
		Weights:           fraud.DefaultConfig().Weights,
	}
	engine := fraud.NewEngine(engineCfg, resolver, counter, provider)

	logger := testLogger()
	rewStore := reward.NewMemoryStore()
	rewards := reward.NewService(rewStore, logger)
	notes := notification.NewMemoryStore()
	notifier := notification.NewDispatcher(notes, notification.NewLogSender(logger), logger)

	return &fixture{
		cfg:      cfg,
		service:  NewService(cfg, engine, store, resolver, rewards, notifier, logger),
		store:    store,
		rewards:  rewards,
		rewStore: rewStore,
		notes:    notes,
		provider: provider,
	}
}

func validRequest() SubmitRequest {
	return SubmitRequest{
		Amount:       100.00,
		ReferralCode: testCode,
		CustomerID:   "cust_bob",
		Email:        "bob@example.com",
		OriginIP:     "203.0.113.9",
	}
}

func TestSubmitAccepted(t *testing.T) {
	f := newFixture(t, testConfig(), nil)

	p, err := f.service.Submit(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if p.ReferrerID != testReferrerID || p.ReferralCode != testCode {
		t.Errorf("purchase = %+v", p)
	}
	if p.FraudScore != 0 {
		t.Errorf("fraud score = %d, want 0", p.FraudScore)
	}

	stored, err := f.store.Get(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("purchase was not persisted: %v", err)
	}
	if stored.Amount != 100.00 {
		t.Errorf("stored amount = %v", stored.Amount)
	}

	pending, err := f.rewards.Pending(context.Background(), 10)
	if err != nil {
		t.Fatalf("list pending rewards: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("got %d pending rewards, want 1", len(pending))
	}
	if pending[0].Amount != 10.00 {
		t.Errorf("reward amount = %v, want 10.00", pending[0].Amount)
	}
	if pending[0].PurchaseID != p.ID {
		t.Errorf("reward purchase = %s, want %s", pending[0].PurchaseID, p.ID)
	}
}

func TestSubmitRewardAmountRounded(t *testing.T) {
	f := newFixture(t, testConfig(), nil)

	req := validRequest()
	req.Amount = 66.67

	if _, err := f.service.Submit(context.Background(), req); err != nil {
		t.Fatalf("submit: %v", err)
	}

	pending, _ := f.rewards.Pending(context.Background(), 10)
	if len(pending) != 1 {
		t.Fatalf("got %d pending rewards, want 1", len(pending))
	}
	// 66.67 * 0.10 = 6.667, rounded to cents.
	if pending[0].Amount != 6.67 {
		t.Errorf("reward amount = %v, want 6.67", pending[0].Amount)
	}
}

func TestSubmitNotifiesReferrer(t *testing.T) {
	f := newFixture(t, testConfig(), nil)

	p, err := f.service.Submit(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	// Notification fan-out is async; poll briefly.
	deadline := time.Now().Add(2 * time.Second)
	for {
		list, err := f.notes.ListByReferrer(context.Background(), testReferrerID, 10)
		if err != nil {
			t.Fatalf("list notifications: %v", err)
		}
		if len(list) == 1 {
			n := list[0]
			if n.PurchaseID != p.ID {
				t.Errorf("notification purchase = %s, want %s", n.PurchaseID, p.ID)
			}
			if n.Channel != notification.ChannelEmail || n.Recipient != "alice@example.com" {
				t.Errorf("notification = %+v", n)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("referrer was never notified")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSubmitRejectionPassthrough(t *testing.T) {
	f := newFixture(t, testConfig(), nil)
	f.provider.SetVerified(testReferrerID, true)

	req := validRequest()
	req.CustomerID = testReferrerID // self-referral

	_, err := f.service.Submit(context.Background(), req)
	var rej *fraud.RejectionError
	if !errors.As(err, &rej) {
		t.Fatalf("expected *fraud.RejectionError, got %v", err)
	}
	if rej.Reason != fraud.ReasonFraudSuspected {
		t.Errorf("reason = %s", rej.Reason)
	}

	// Nothing money-bearing may have happened.
	if n, _ := f.store.CountByOriginIP(context.Background(), req.OriginIP); n != 0 {
		t.Error("rejected purchase was persisted")
	}
	if pending, _ := f.rewards.Pending(context.Background(), 10); len(pending) != 0 {
		t.Error("rejected purchase scheduled a reward")
	}
}

func TestSubmitInvalidCode(t *testing.T) {
	f := newFixture(t, testConfig(), nil)

	req := validRequest()
	req.ReferralCode = "ZZZZ9999"

	_, err := f.service.Submit(context.Background(), req)
	var rej *fraud.RejectionError
	if !errors.As(err, &rej) {
		t.Fatalf("expected *fraud.RejectionError, got %v", err)
	}
	if rej.Reason != fraud.ReasonInvalidReferralCode {
		t.Errorf("reason = %s", rej.Reason)
	}
}

// failingCounter simulates a down purchase store during fraud validation.
type failingCounter struct{}

func (failingCounter) CountByOriginIP(ctx context.Context, ip string) (int, error) {
	return 0, errors.New("connection refused")
}

func (failingCounter) CountByOriginIPSince(ctx context.Context, ip string, since time.Time) (int, error) {
	return 0, errors.New("connection refused")
}

func TestSubmitStoreDownFailsClosedEvenWhenFailOpen(t *testing.T) {
	cfg := testConfig()
	cfg.FraudFailMode = config.FailOpen

	f := newFixture(t, cfg, failingCounter{})

	_, err := f.service.Submit(context.Background(), validRequest())
	var rej *fraud.RejectionError
	if !errors.As(err, &rej) {
		t.Fatalf("expected *fraud.RejectionError, got %v", err)
	}
	if rej.Reason != fraud.ReasonCheckUnavailable {
		t.Errorf("reason = %s, want %s", rej.Reason, fraud.ReasonCheckUnavailable)
	}
}

// stalledCounter answers only once the validation budget is gone.
type stalledCounter struct{}

func (stalledCounter) CountByOriginIP(ctx context.Context, ip string) (int, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func (stalledCounter) CountByOriginIPSince(ctx context.Context, ip string, since time.Time) (int, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func TestSubmitTimeoutFailClosed(t *testing.T) {
	cfg := testConfig()
	cfg.ValidationTimeout = 30 * time.Millisecond

	f := newFixture(t, cfg, stalledCounter{})

	_, err := f.service.Submit(context.Background(), validRequest())
	var rej *fraud.RejectionError
	if !errors.As(err, &rej) {
		t.Fatalf("expected *fraud.RejectionError, got %v", err)
	}
	if rej.Reason != fraud.ReasonCheckUnavailable {
		t.Errorf("reason = %s, want %s", rej.Reason, fraud.ReasonCheckUnavailable)
	}
}

func TestSubmitTimeoutFailOpen(t *testing.T) {
	cfg := testConfig()
	cfg.ValidationTimeout = 30 * time.Millisecond
	cfg.FraudFailMode = config.FailOpen

	f := newFixture(t, cfg, stalledCounter{})

	p, err := f.service.Submit(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("fail-open submit: %v", err)
	}
	if p.FraudScore != 0 {
		t.Errorf("fraud score = %d, want 0 for an unscored acceptance", p.FraudScore)
	}
	if _, err := f.store.Get(context.Background(), p.ID); err != nil {
		t.Errorf("purchase was not persisted: %v", err)
	}
}

// stubVerifier fails or passes every payment check.
type stubVerifier struct {
	err   error
	calls int
}

func (v *stubVerifier) VerifyPayment(ctx context.Context, paymentIntentID string, amount float64) error {
	v.calls++
	return v.err
}

func TestSubmitPaymentVerification(t *testing.T) {
	f := newFixture(t, testConfig(), nil)
	verifier := &stubVerifier{err: errors.New("payment intent not settled")}
	f.service.WithVerifier(verifier)

	req := validRequest()
	req.PaymentIntentID = "pi_123"

	if _, err := f.service.Submit(context.Background(), req); err == nil {
		t.Fatal("expected a payment verification error")
	}
	if verifier.calls != 1 {
		t.Errorf("verifier called %d times, want 1", verifier.calls)
	}

	// Without a payment intent the verifier is skipped entirely.
	verifier.calls = 0
	req.PaymentIntentID = ""
	if _, err := f.service.Submit(context.Background(), req); err != nil {
		t.Fatalf("submit without payment intent: %v", err)
	}
	if verifier.calls != 0 {
		t.Error("verifier ran without a payment intent")
	}
}
