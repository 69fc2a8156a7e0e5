package purchase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PostgresStore persists purchases in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed purchase store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, p *Purchase) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO purchases (id, referrer_id, referral_code, customer_id, email, amount, origin_ip, fraud_score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		p.ID,
		p.ReferrerID,
		p.ReferralCode,
		nullable(p.CustomerID),
		nullable(p.Email),
		p.Amount,
		nullable(p.OriginIP),
		p.FraudScore,
		p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert purchase: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Purchase, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, referrer_id, referral_code, customer_id, email, amount, origin_ip, fraud_score, created_at
		FROM purchases WHERE id = $1
	`, id)

	p, err := scanPurchase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPurchaseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get purchase: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListByReferrer(ctx context.Context, referrerID string, limit int) ([]*Purchase, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, referrer_id, referral_code, customer_id, email, amount, origin_ip, fraud_score, created_at
		FROM purchases WHERE referrer_id = $1
		ORDER BY created_at DESC LIMIT $2
	`, referrerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan purchase: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (s *PostgresStore) CountByOriginIP(ctx context.Context, ip string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM purchases WHERE origin_ip = $1`, ip,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count purchases by origin: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) CountByOriginIPSince(ctx context.Context, ip string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM purchases WHERE origin_ip = $1 AND created_at >= $2`, ip, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count recent purchases by origin: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPurchase(row rowScanner) (*Purchase, error) {
	var p Purchase
	var customerID, email, originIP sql.NullString
	if err := row.Scan(&p.ID, &p.ReferrerID, &p.ReferralCode, &customerID, &email, &p.Amount, &originIP, &p.FraudScore, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.CustomerID = customerID.String
	p.Email = email.String
	p.OriginIP = originIP.String
	return &p, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
