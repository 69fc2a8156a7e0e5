// Package payments verifies that a purchase attempt is backed by a real,
// settled payment before it enters fraud validation. Verification is
// optional; deployments without Stripe configured skip it.
package payments

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
)

var (
	// ErrPaymentNotSettled indicates the payment intent has not succeeded.
	ErrPaymentNotSettled = errors.New("payment not settled")
	// ErrAmountMismatch indicates the paid amount differs from the purchase amount.
	ErrAmountMismatch = errors.New("payment amount mismatch")
)

// Verifier checks a payment reference against the claimed purchase amount.
type Verifier interface {
	VerifyPayment(ctx context.Context, paymentIntentID string, amount float64) error
}

// StripeVerifier verifies payment intents via the Stripe API.
type StripeVerifier struct {
	api *client.API
}

// NewStripeVerifier creates a verifier using the given secret key.
func NewStripeVerifier(apiKey string) *StripeVerifier {
	api := &client.API{}
	api.Init(apiKey, nil)
	return &StripeVerifier{api: api}
}

func (v *StripeVerifier) VerifyPayment(ctx context.Context, paymentIntentID string, amount float64) error {
	pi, err := v.api.PaymentIntents.Get(paymentIntentID, &stripe.PaymentIntentParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return fmt.Errorf("fetch payment intent: %w", err)
	}

	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return fmt.Errorf("%w: status %s", ErrPaymentNotSettled, pi.Status)
	}

	// Stripe amounts are in the currency's smallest unit.
	wantCents := int64(math.Round(amount * 100))
	if pi.Amount != wantCents {
		return fmt.Errorf("%w: paid %d cents, purchase claims %d", ErrAmountMismatch, pi.Amount, wantCents)
	}
	return nil
}
