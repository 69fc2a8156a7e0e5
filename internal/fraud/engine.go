package fraud

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/perkloop/perkloop/internal/idgen"
	"github.com/perkloop/perkloop/internal/logging"
	"github.com/perkloop/perkloop/internal/metrics"
	"github.com/perkloop/perkloop/internal/referral"
	"github.com/perkloop/perkloop/internal/traces"
)

// IdentityProvider answers whether a customer identity has a verified
// primary contact channel. Lookups may fail; the engine degrades instead of
// propagating the failure.
type IdentityProvider interface {
	IsPrimaryContactVerified(ctx context.Context, identityID string) (bool, error)
}

// Engine validates purchase attempts. It is stateless between calls; every
// validation reads current store state and returns an independent decision.
type Engine struct {
	cfg      Config
	resolver *referral.Resolver
	counts   PurchaseCounter
	identity IdentityProvider
	store    Store // nil disables the audit trail
	logger   *slog.Logger
}

// NewEngine creates a validation engine.
func NewEngine(cfg Config, resolver *referral.Resolver, counts PurchaseCounter, provider IdentityProvider) *Engine {
	return &Engine{
		cfg:      cfg,
		resolver: resolver,
		counts:   counts,
		identity: provider,
		logger:   slog.Default(),
	}
}

// WithStore attaches an assessment audit store.
func (e *Engine) WithStore(store Store) *Engine {
	e.store = store
	return e
}

// WithLogger sets a custom logger.
func (e *Engine) WithLogger(logger *slog.Logger) *Engine {
	e.logger = logger
	return e
}

// Config returns the engine's tuning. Handy for callers that surface limits.
func (e *Engine) Config() Config { return e.cfg }

// Validate runs the full pipeline for one attempt: resolve the referral
// code, gather signal inputs, aggregate, decide.
//
// Outcomes:
//   - accepted: (*Decision, nil)
//   - invalid code: (nil, *RejectionError{ReasonInvalidReferralCode}) — no
//     score is computed, there is no referrer to score against
//   - fraud suspected: (nil, *RejectionError{ReasonFraudSuspected}) carrying
//     the flag list
//   - store read failure: (nil, error wrapping ErrStoreUnavailable); callers
//     must fail closed
//   - context expiry: (nil, the context error); callers resolve it with
//     their configured fail mode
func (e *Engine) Validate(ctx context.Context, attempt Attempt) (*Decision, error) {
	ctx, span := traces.StartSpan(ctx, "fraud.validate",
		traces.ReferralCode(referral.Normalize(attempt.ReferralCode)),
		traces.Amount(attempt.Amount),
	)
	defer span.End()

	ref, err := e.resolver.Resolve(ctx, attempt.ReferralCode)
	if err != nil {
		if errors.Is(err, referral.ErrCodeMalformed) || errors.Is(err, referral.ErrCodeNotFound) {
			metrics.ValidationsTotal.WithLabelValues("invalid_code").Inc()
			span.SetAttributes(traces.Outcome("invalid_code"))
			return nil, &RejectionError{Reason: ReasonInvalidReferralCode, cause: err}
		}
		if ctxExpired(err) {
			metrics.ValidationsTotal.WithLabelValues("timeout").Inc()
			return nil, err
		}
		metrics.ValidationsTotal.WithLabelValues("store_error").Inc()
		return nil, fmt.Errorf("%w: resolve referral code: %v", ErrStoreUnavailable, err)
	}
	span.SetAttributes(traces.ReferrerID(ref.ID))

	in, err := e.gatherInputs(ctx, attempt, ref)
	if err != nil {
		if ctxExpired(err) {
			metrics.ValidationsTotal.WithLabelValues("timeout").Inc()
		} else {
			metrics.ValidationsTotal.WithLabelValues("store_error").Inc()
		}
		return nil, err
	}

	signals := make([]Signal, 0, len(evaluators))
	for _, eval := range evaluators {
		s := eval(in)
		if s.Triggered {
			metrics.SignalsTriggeredTotal.WithLabelValues(s.Name).Inc()
		}
		signals = append(signals, s)
	}

	decision := Aggregate(signals, e.cfg.RejectThreshold)
	metrics.FraudScore.Observe(float64(decision.Score))
	span.SetAttributes(traces.FraudScore(decision.Score))

	e.record(ref.ID, attempt, decision)

	if !decision.Accepted {
		metrics.ValidationsTotal.WithLabelValues("fraud_suspected").Inc()
		span.SetAttributes(traces.Outcome("fraud_suspected"))
		logging.L(ctx).Warn("purchase attempt rejected",
			"referrer_id", ref.ID,
			"score", decision.Score,
			"flags", decision.Flags,
		)
		return nil, &RejectionError{
			Reason: ReasonFraudSuspected,
			Score:  decision.Score,
			Flags:  decision.Flags,
		}
	}

	metrics.ValidationsTotal.WithLabelValues("accepted").Inc()
	span.SetAttributes(traces.Outcome("accepted"))
	return &decision, nil
}

// gatherInputs prefetches everything the evaluators read. The two IP counts
// and the identity lookup are independent reads and run concurrently; the
// results land in fixed struct fields, so flag ordering never depends on
// which lookup finished first.
func (e *Engine) gatherInputs(ctx context.Context, attempt Attempt, ref *referral.Referrer) (*inputs, error) {
	in := &inputs{attempt: attempt, referrer: ref, cfg: e.cfg}

	var wg sync.WaitGroup
	var allTimeErr, dailyErr error

	if attempt.OriginIP != "" {
		wg.Add(2)
		go func() {
			defer wg.Done()
			in.ipAllTime, allTimeErr = e.counts.CountByOriginIP(ctx, attempt.OriginIP)
		}()
		go func() {
			defer wg.Done()
			since := time.Now().Add(-24 * time.Hour)
			in.ipLast24h, dailyErr = e.counts.CountByOriginIPSince(ctx, attempt.OriginIP, since)
		}()
	}

	if attempt.Customer.Present() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lookupCtx, cancel := context.WithTimeout(ctx, e.cfg.IdentityTimeout)
			defer cancel()
			verified, err := e.identity.IsPrimaryContactVerified(lookupCtx, attempt.Customer.ID)
			if err != nil {
				// Soft failure: availability over strictness. The degraded
				// signal still contributes its weight.
				in.identityDegraded = true
				metrics.IdentityLookupsDegradedTotal.Inc()
				e.logger.Warn("identity lookup degraded", "identity_id", attempt.Customer.ID, "error", err)
				return
			}
			in.identityVerified = verified
		}()
	}

	wg.Wait()

	if allTimeErr != nil {
		if ctxExpired(allTimeErr) {
			return nil, allTimeErr
		}
		return nil, fmt.Errorf("%w: count purchases by origin: %v", ErrStoreUnavailable, allTimeErr)
	}
	if dailyErr != nil {
		if ctxExpired(dailyErr) {
			return nil, dailyErr
		}
		return nil, fmt.Errorf("%w: count 24h purchases by origin: %v", ErrStoreUnavailable, dailyErr)
	}
	return in, nil
}

// ctxExpired distinguishes a blown validation budget from a store fault.
// Callers resolve the former with their fail mode; the latter always rejects.
func ctxExpired(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

// record persists the assessment asynchronously (best-effort audit trail).
func (e *Engine) record(referrerID string, attempt Attempt, d Decision) {
	if e.store == nil {
		return
	}
	a := &Assessment{
		ID:          idgen.WithPrefix("frd_"),
		ReferrerID:  referrerID,
		OriginIP:    attempt.OriginIP,
		Amount:      attempt.Amount,
		Score:       d.Score,
		Flags:       d.Flags,
		Accepted:    d.Accepted,
		EvaluatedAt: time.Now(),
	}
	go func() {
		if err := e.store.Record(context.Background(), a); err != nil {
			e.logger.Warn("failed to record fraud assessment", "error", err)
		}
	}()
}
