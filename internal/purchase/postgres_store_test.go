package purchase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/perkloop/perkloop/internal/testutil"
)

// seedPGReferrer satisfies the purchases foreign key.
func seedPGReferrer(t *testing.T, db *sql.DB, id, code string) {
	t.Helper()
	_, err := db.ExecContext(context.Background(), `
		INSERT INTO referrers (id, code, name, verified, created_at)
		VALUES ($1, $2, 'Test', false, NOW())
	`, id, code)
	if err != nil {
		t.Fatalf("seed referrer: %v", err)
	}
}

func TestPostgresStoreRoundTrip(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	seedPGReferrer(t, db, "ref_pg", "ABCD2345")
	store := NewPostgresStore(db)
	ctx := context.Background()

	p := &Purchase{
		ID:           "pur_pg1",
		ReferrerID:   "ref_pg",
		ReferralCode: "ABCD2345",
		CustomerID:   "cust_bob",
		Email:        "bob@example.com",
		Amount:       100.00,
		OriginIP:     "203.0.113.9",
		FraudScore:   30,
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
	if err := store.Create(ctx, p); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := store.Get(ctx, "pur_pg1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ReferrerID != p.ReferrerID || got.Amount != p.Amount || got.FraudScore != 30 {
		t.Errorf("got %+v", got)
	}
	if got.OriginIP != p.OriginIP || got.Email != p.Email {
		t.Errorf("got %+v", got)
	}

	if _, err := store.Get(ctx, "pur_missing"); !errors.Is(err, ErrPurchaseNotFound) {
		t.Errorf("Get = %v, want ErrPurchaseNotFound", err)
	}
}

func TestPostgresStoreNullableFields(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	seedPGReferrer(t, db, "ref_pg", "ABCD2345")
	store := NewPostgresStore(db)
	ctx := context.Background()

	// Guest purchase with no forwarded IP: optional columns are NULL.
	p := &Purchase{
		ID:           "pur_guest",
		ReferrerID:   "ref_pg",
		ReferralCode: "ABCD2345",
		Amount:       75.00,
		CreatedAt:    time.Now(),
	}
	if err := store.Create(ctx, p); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := store.Get(ctx, "pur_guest")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CustomerID != "" || got.Email != "" || got.OriginIP != "" {
		t.Errorf("got %+v, want empty optionals", got)
	}
}

func TestPostgresStoreOriginIPCounts(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	seedPGReferrer(t, db, "ref_pg", "ABCD2345")
	store := NewPostgresStore(db)
	ctx := context.Background()
	now := time.Now()

	seed := []struct {
		id  string
		ip  string
		age time.Duration
	}{
		{"pur_1", "203.0.113.9", time.Hour},
		{"pur_2", "203.0.113.9", 48 * time.Hour},
		{"pur_3", "198.51.100.7", time.Hour},
	}
	for _, s := range seed {
		p := &Purchase{
			ID:           s.id,
			ReferrerID:   "ref_pg",
			ReferralCode: "ABCD2345",
			Amount:       60,
			OriginIP:     s.ip,
			CreatedAt:    now.Add(-s.age),
		}
		if err := store.Create(ctx, p); err != nil {
			t.Fatalf("create %s: %v", s.id, err)
		}
	}

	all, err := store.CountByOriginIP(ctx, "203.0.113.9")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if all != 2 {
		t.Errorf("all-time count = %d, want 2", all)
	}

	recent, err := store.CountByOriginIPSince(ctx, "203.0.113.9", now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("count since: %v", err)
	}
	if recent != 1 {
		t.Errorf("24h count = %d, want 1", recent)
	}
}

func TestPostgresStoreListByReferrerOrder(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	seedPGReferrer(t, db, "ref_pg", "ABCD2345")
	store := NewPostgresStore(db)
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 3; i++ {
		p := &Purchase{
			ID:           fmt.Sprintf("pur_%d", i),
			ReferrerID:   "ref_pg",
			ReferralCode: "ABCD2345",
			Amount:       60,
			CreatedAt:    now.Add(time.Duration(i) * time.Second),
		}
		if err := store.Create(ctx, p); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	list, err := store.ListByReferrer(ctx, "ref_pg", 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d purchases, want 2", len(list))
	}
	if list[0].ID != "pur_2" || list[1].ID != "pur_1" {
		t.Errorf("order = [%s %s]", list[0].ID, list[1].ID)
	}
}
