// Package notification records and fans out referrer notifications.
//
// Delivery transport (email/SMS gateways) is an external concern behind the
// Sender interface; this package owns the fan-out decision, retry policy,
// and the delivery audit trail.
package notification

import (
	"context"
	"errors"
	"time"
)

// Channel identifies the contact channel used for a notification.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Status is a notification's delivery state.
type Status string

const (
	StatusSent   Status = "sent"
	StatusFailed Status = "failed"
)

// ErrNoContactChannel indicates the recipient has no usable channel.
var ErrNoContactChannel = errors.New("recipient has no contact channel")

// Notification is one delivery attempt's record.
type Notification struct {
	ID         string    `json:"id"`
	ReferrerID string    `json:"referrerId"`
	PurchaseID string    `json:"purchaseId,omitempty"`
	Channel    Channel   `json:"channel"`
	Recipient  string    `json:"recipient"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Store persists notification records.
type Store interface {
	Create(ctx context.Context, n *Notification) error
	ListByReferrer(ctx context.Context, referrerID string, limit int) ([]*Notification, error)
}

// Sender delivers one message over an external gateway.
type Sender interface {
	Send(ctx context.Context, channel Channel, recipient, subject, body string) error
}
