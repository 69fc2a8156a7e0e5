package referral

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// PostgresStore persists referrers in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed referrer store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, r *Referrer) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO referrers (id, code, name, email, phone, verified, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, r.ID, r.Code, r.Name, nullable(r.Email), nullable(r.Phone), r.Verified, r.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		// 23505 = unique_violation; the code column carries a unique index.
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrCodeTaken
		}
		return fmt.Errorf("insert referrer: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Referrer, error) {
	return s.scanOne(s.db.QueryRowContext(ctx, `
		SELECT id, code, name, email, phone, verified, created_at
		FROM referrers WHERE id = $1
	`, id), ErrReferrerNotFound)
}

func (s *PostgresStore) FindByCode(ctx context.Context, code string) (*Referrer, error) {
	return s.scanOne(s.db.QueryRowContext(ctx, `
		SELECT id, code, name, email, phone, verified, created_at
		FROM referrers WHERE code = $1
	`, code), ErrCodeNotFound)
}

func (s *PostgresStore) SetVerified(ctx context.Context, id string, verified bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE referrers SET verified = $2 WHERE id = $1
	`, id, verified)
	if err != nil {
		return fmt.Errorf("update referrer: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrReferrerNotFound
	}
	return nil
}

func (s *PostgresStore) scanOne(row *sql.Row, notFound error) (*Referrer, error) {
	var r Referrer
	var email, phone sql.NullString
	err := row.Scan(&r.ID, &r.Code, &r.Name, &email, &phone, &r.Verified, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, notFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan referrer: %w", err)
	}
	r.Email = email.String
	r.Phone = phone.String
	return &r, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
