package reward

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresStore persists rewards in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed reward store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, r *Reward) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rewards (id, purchase_id, referrer_id, amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, r.ID, r.PurchaseID, r.ReferrerID, r.Amount, string(r.Status), r.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert reward: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Reward, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, purchase_id, referrer_id, amount, status, reviewed_by, review_note, reviewed_at, created_at
		FROM rewards WHERE id = $1
	`, id)

	r, err := scanReward(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrRewardNotFound
	}
	return r, err
}

func (s *PostgresStore) ListByStatus(ctx context.Context, status Status, limit int) ([]*Reward, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, purchase_id, referrer_id, amount, status, reviewed_by, review_note, reviewed_at, created_at
		FROM rewards WHERE status = $1
		ORDER BY created_at DESC LIMIT $2
	`, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("list rewards by status: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return collectRewards(rows)
}

func (s *PostgresStore) ListByReferrer(ctx context.Context, referrerID string, limit int) ([]*Reward, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, purchase_id, referrer_id, amount, status, reviewed_by, review_note, reviewed_at, created_at
		FROM rewards WHERE referrer_id = $1
		ORDER BY created_at DESC LIMIT $2
	`, referrerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list rewards by referrer: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return collectRewards(rows)
}

func (s *PostgresStore) UpdateReview(ctx context.Context, id string, status Status, reviewedBy, note string, reviewedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE rewards
		SET status = $2, reviewed_by = $3, review_note = $4, reviewed_at = $5
		WHERE id = $1 AND status = 'pending'
	`, id, string(status), reviewedBy, note, reviewedAt)
	if err != nil {
		return fmt.Errorf("update reward review: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Either missing or already reviewed; disambiguate for the caller.
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
		return ErrAlreadyReviewed
	}
	return nil
}

func scanReward(scan func(dest ...any) error) (*Reward, error) {
	var r Reward
	var status string
	var reviewedBy, reviewNote sql.NullString
	var reviewedAt sql.NullTime
	if err := scan(&r.ID, &r.PurchaseID, &r.ReferrerID, &r.Amount, &status, &reviewedBy, &reviewNote, &reviewedAt, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.Status = Status(status)
	r.ReviewedBy = reviewedBy.String
	r.ReviewNote = reviewNote.String
	r.ReviewedAt = reviewedAt.Time
	return &r, nil
}

func collectRewards(rows *sql.Rows) ([]*Reward, error) {
	var result []*Reward
	for rows.Next() {
		r, err := scanReward(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}
