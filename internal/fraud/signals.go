package fraud

import (
	"github.com/perkloop/perkloop/internal/referral"
)

// inputs bundles an attempt with everything the evaluators need, prefetched
// by the engine so each evaluator stays a pure function. The two IP counts
// may be fetched concurrently; evaluators only ever see the settled values.
type inputs struct {
	attempt  Attempt
	referrer *referral.Referrer
	cfg      Config

	ipAllTime int
	ipLast24h int

	identityVerified bool
	identityDegraded bool // provider lookup failed; soft-failed in place
}

// evaluator inspects one dimension of the attempt and emits a signal.
// An untriggered condition yields {Triggered: false, Weight: 0}; evaluators
// never return errors.
type evaluator func(in *inputs) Signal

// evaluators is the canonical signal list. Flag ordering in every Decision
// follows this order exactly, independent of how the inputs were gathered.
var evaluators = []evaluator{
	evalBelowMinimum,
	evalUnverifiedIdentity,
	evalSelfReferral,
	evalIPAllTime,
	evalIPDaily,
	evalMissingOrigin,
}

func evalBelowMinimum(in *inputs) Signal {
	s := Signal{Name: SignalBelowMinimum}
	if in.attempt.Amount < in.cfg.MinPurchaseAmount {
		s.Triggered = true
		s.Weight = in.cfg.Weights.BelowMinimum
		s.Flag = "Purchase amount below minimum"
	}
	return s
}

// evalUnverifiedIdentity triggers when the customer's identity-provider
// record has no verified primary contact channel. A customer that does not
// exist yet cannot have one, so guest checkouts trigger too. A failed
// provider lookup degrades to a triggered signal with its own flag rather
// than aborting the validation.
func evalUnverifiedIdentity(in *inputs) Signal {
	s := Signal{Name: SignalUnverified}
	if in.identityDegraded {
		s.Triggered = true
		s.Weight = in.cfg.Weights.Unverified
		s.Flag = "Unable to verify identity"
		return s
	}
	if !in.identityVerified {
		s.Triggered = true
		s.Weight = in.cfg.Weights.Unverified
		s.Flag = "Customer identity is not verified"
	}
	return s
}

// evalSelfReferral only fires for customers that already exist: a freshly
// minted guest identity can never equal the referrer's.
func evalSelfReferral(in *inputs) Signal {
	s := Signal{Name: SignalSelfReferral}
	if in.attempt.Customer.Present() && in.attempt.Customer.ID == in.referrer.ID {
		s.Triggered = true
		s.Weight = in.cfg.Weights.SelfReferral
		s.Flag = "Self-referral detected"
	}
	return s
}

func evalIPAllTime(in *inputs) Signal {
	s := Signal{Name: SignalIPAllTime}
	if in.attempt.OriginIP != "" && in.ipAllTime >= in.cfg.IPAllTimeLimit {
		s.Triggered = true
		s.Weight = in.cfg.Weights.IPAllTime
		s.Flag = "Excessive purchases from origin IP"
	}
	return s
}

func evalIPDaily(in *inputs) Signal {
	s := Signal{Name: SignalIPDaily}
	if in.attempt.OriginIP != "" && in.ipLast24h >= in.cfg.IPDailyLimit {
		s.Triggered = true
		s.Weight = in.cfg.Weights.IPDaily
		s.Flag = "Excessive purchases from origin IP in the last 24 hours"
	}
	return s
}

func evalMissingOrigin(in *inputs) Signal {
	s := Signal{Name: SignalMissingOrigin}
	if in.attempt.OriginIP == "" {
		s.Triggered = true
		s.Weight = in.cfg.Weights.MissingOrigin
		s.Flag = "Origin IP address is missing"
	}
	return s
}

// Aggregate folds signals into a decision. The score is the plain sum of
// triggered weights (no cap); flags keep the signal-list order so decision
// output is reproducible. A score equal to the threshold rejects.
func Aggregate(signals []Signal, threshold int) Decision {
	d := Decision{Flags: []string{}}
	for _, s := range signals {
		if !s.Triggered {
			continue
		}
		d.Score += s.Weight
		d.Flags = append(d.Flags, s.Flag)
	}
	d.Accepted = d.Score < threshold
	return d
}
