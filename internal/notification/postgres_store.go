package notification

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore persists notifications in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed notification store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, n *Notification) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, referrer_id, purchase_id, channel, recipient, subject, body, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		n.ID,
		n.ReferrerID,
		sql.NullString{String: n.PurchaseID, Valid: n.PurchaseID != ""},
		string(n.Channel),
		n.Recipient,
		n.Subject,
		n.Body,
		string(n.Status),
		n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByReferrer(ctx context.Context, referrerID string, limit int) ([]*Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, referrer_id, purchase_id, channel, recipient, subject, body, status, created_at
		FROM notifications WHERE referrer_id = $1
		ORDER BY created_at DESC LIMIT $2
	`, referrerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Notification
	for rows.Next() {
		var n Notification
		var purchaseID sql.NullString
		var channel, status string
		if err := rows.Scan(&n.ID, &n.ReferrerID, &purchaseID, &channel, &n.Recipient, &n.Subject, &n.Body, &status, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.PurchaseID = purchaseID.String
		n.Channel = Channel(channel)
		n.Status = Status(status)
		result = append(result, &n)
	}
	return result, rows.Err()
}
