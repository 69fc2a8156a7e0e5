package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/perkloop/perkloop/internal/idgen"
	"github.com/perkloop/perkloop/internal/metrics"
	"github.com/perkloop/perkloop/internal/referral"
	"github.com/perkloop/perkloop/internal/retry"
)

// Delivery retry tuning. Gateways flake; three attempts with backoff covers
// the transient cases without holding a request hostage.
const (
	maxDeliveryAttempts = 3
	deliveryBaseDelay   = 500 * time.Millisecond
)

// Dispatcher fans out notifications to referrers.
type Dispatcher struct {
	store  Store
	sender Sender
	logger *slog.Logger
}

// NewDispatcher creates a notification dispatcher.
func NewDispatcher(store Store, sender Sender, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{store: store, sender: sender, logger: logger}
}

// NotifyPurchase tells a referrer their code was used. The channel is chosen
// from the referrer's available contacts, email first. Referrers with no
// contact channel are skipped with ErrNoContactChannel; that is a data state,
// not a delivery failure.
func (d *Dispatcher) NotifyPurchase(ctx context.Context, ref *referral.Referrer, purchaseID string, amount float64) (*Notification, error) {
	channel, recipient, err := pickChannel(ref)
	if err != nil {
		return nil, err
	}

	n := &Notification{
		ID:         idgen.WithPrefix("ntf_"),
		ReferrerID: ref.ID,
		PurchaseID: purchaseID,
		Channel:    channel,
		Recipient:  recipient,
		Subject:    "Your referral code was used",
		Body:       fmt.Sprintf("A purchase of $%.2f was made with your referral code %s. Your reward is pending review.", amount, ref.DisplayCode()),
		CreatedAt:  time.Now(),
	}

	err = retry.Do(ctx, maxDeliveryAttempts, deliveryBaseDelay, func() error {
		return d.sender.Send(ctx, n.Channel, n.Recipient, n.Subject, n.Body)
	})
	if err != nil {
		n.Status = StatusFailed
		metrics.NotificationDeliveriesTotal.WithLabelValues("failed").Inc()
		d.logger.Warn("notification delivery failed", "notification_id", n.ID, "referrer_id", ref.ID, "error", err)
	} else {
		n.Status = StatusSent
		metrics.NotificationDeliveriesTotal.WithLabelValues("sent").Inc()
	}

	if storeErr := d.store.Create(ctx, n); storeErr != nil {
		d.logger.Warn("failed to record notification", "notification_id", n.ID, "error", storeErr)
	}

	if err != nil {
		return n, fmt.Errorf("deliver notification: %w", err)
	}
	return n, nil
}

// History returns a referrer's recent notifications.
func (d *Dispatcher) History(ctx context.Context, referrerID string, limit int) ([]*Notification, error) {
	return d.store.ListByReferrer(ctx, referrerID, limit)
}

func pickChannel(ref *referral.Referrer) (Channel, string, error) {
	switch {
	case ref.Email != "":
		return ChannelEmail, ref.Email, nil
	case ref.Phone != "":
		return ChannelSMS, ref.Phone, nil
	default:
		return "", "", ErrNoContactChannel
	}
}
