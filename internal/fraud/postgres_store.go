package fraud

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// PostgresStore persists fraud assessments in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed assessment store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Record(ctx context.Context, a *Assessment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fraud_assessments (id, referrer_id, origin_ip, amount, score, flags, accepted, evaluated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		a.ID,
		a.ReferrerID,
		sql.NullString{String: a.OriginIP, Valid: a.OriginIP != ""},
		a.Amount,
		a.Score,
		pq.Array(a.Flags),
		a.Accepted,
		a.EvaluatedAt,
	)
	if err != nil {
		return fmt.Errorf("record fraud assessment: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]*Assessment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, referrer_id, origin_ip, amount, score, flags, accepted, evaluated_at
		FROM fraud_assessments
		ORDER BY evaluated_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list fraud assessments: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanAssessments(rows)
}

func (s *PostgresStore) ListByReferrer(ctx context.Context, referrerID string, limit int) ([]*Assessment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, referrer_id, origin_ip, amount, score, flags, accepted, evaluated_at
		FROM fraud_assessments
		WHERE referrer_id = $1
		ORDER BY evaluated_at DESC
		LIMIT $2
	`, referrerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list fraud assessments by referrer: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanAssessments(rows)
}

func scanAssessments(rows *sql.Rows) ([]*Assessment, error) {
	var result []*Assessment
	for rows.Next() {
		var a Assessment
		var originIP sql.NullString
		if err := rows.Scan(&a.ID, &a.ReferrerID, &originIP, &a.Amount, &a.Score, pq.Array(&a.Flags), &a.Accepted, &a.EvaluatedAt); err != nil {
			return nil, fmt.Errorf("scan fraud assessment: %w", err)
		}
		a.OriginIP = originIP.String
		result = append(result, &a)
	}
	return result, rows.Err()
}
