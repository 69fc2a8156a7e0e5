package fraud

import (
	"context"
	"testing"
	"time"

	"github.com/perkloop/perkloop/internal/testutil"
)

func TestPostgresStoreRoundTrip(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	a := &Assessment{
		ID:          "frd_pg1",
		ReferrerID:  "ref_pg",
		OriginIP:    "203.0.113.9",
		Amount:      30.00,
		Score:       30,
		Flags:       []string{"Purchase amount below minimum"},
		Accepted:    true,
		EvaluatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	if err := store.Record(ctx, a); err != nil {
		t.Fatalf("record: %v", err)
	}

	list, err := store.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("got %d assessments, want 1", len(list))
	}
	got := list[0]
	if got.ID != a.ID || got.ReferrerID != a.ReferrerID || got.OriginIP != a.OriginIP {
		t.Errorf("got %+v", got)
	}
	if got.Score != 30 || !got.Accepted {
		t.Errorf("got score=%d accepted=%v", got.Score, got.Accepted)
	}
	if len(got.Flags) != 1 || got.Flags[0] != a.Flags[0] {
		t.Errorf("flags = %v", got.Flags)
	}
}

func TestPostgresStoreNullableOriginIP(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	a := &Assessment{
		ID:          "frd_pg2",
		ReferrerID:  "ref_pg",
		Amount:      100.00,
		Score:       20,
		Flags:       []string{"Origin IP address is missing"},
		Accepted:    true,
		EvaluatedAt: time.Now(),
	}
	if err := store.Record(ctx, a); err != nil {
		t.Fatalf("record without origin IP: %v", err)
	}

	list, err := store.ListByReferrer(ctx, "ref_pg", 10)
	if err != nil {
		t.Fatalf("list by referrer: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("got %d assessments, want 1", len(list))
	}
	if list[0].OriginIP != "" {
		t.Errorf("origin IP = %q, want empty", list[0].OriginIP)
	}
}

func TestPostgresStoreListByReferrerFilters(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	for i, ref := range []string{"ref_x", "ref_y", "ref_x"} {
		a := &Assessment{
			ID:          "frd_f" + string(rune('0'+i)),
			ReferrerID:  ref,
			Amount:      60,
			Flags:       []string{},
			Accepted:    true,
			EvaluatedAt: time.Now().Add(time.Duration(i) * time.Second),
		}
		if err := store.Record(ctx, a); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	list, err := store.ListByReferrer(ctx, "ref_x", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d assessments, want 2", len(list))
	}
	// Most recent first.
	if list[0].ID != "frd_f2" {
		t.Errorf("first = %s, want frd_f2", list[0].ID)
	}
}
