package referral

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreCreateAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	r := &Referrer{ID: "ref_1", Code: "ABCD2345", Name: "Alice", CreatedAt: time.Now()}
	if err := store.Create(ctx, r); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := store.Get(ctx, "ref_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Alice" || got.Code != "ABCD2345" {
		t.Errorf("got %+v", got)
	}
}

func TestMemoryStoreCodeCollision(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Create(ctx, &Referrer{ID: "ref_1", Code: "ABCD2345"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := store.Create(ctx, &Referrer{ID: "ref_2", Code: "ABCD2345"})
	if !errors.Is(err, ErrCodeTaken) {
		t.Errorf("create with duplicate code = %v, want ErrCodeTaken", err)
	}
}

func TestMemoryStoreNotFound(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.Get(ctx, "ref_missing"); !errors.Is(err, ErrReferrerNotFound) {
		t.Errorf("Get = %v, want ErrReferrerNotFound", err)
	}
	if _, err := store.FindByCode(ctx, "ZZZZ9999"); !errors.Is(err, ErrCodeNotFound) {
		t.Errorf("FindByCode = %v, want ErrCodeNotFound", err)
	}
	if err := store.SetVerified(ctx, "ref_missing", true); !errors.Is(err, ErrReferrerNotFound) {
		t.Errorf("SetVerified = %v, want ErrReferrerNotFound", err)
	}
}

func TestMemoryStoreSetVerified(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Create(ctx, &Referrer{ID: "ref_1", Code: "ABCD2345"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.SetVerified(ctx, "ref_1", true); err != nil {
		t.Fatalf("set verified: %v", err)
	}

	got, err := store.FindByCode(ctx, "ABCD2345")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !got.Verified {
		t.Error("verified flag did not stick")
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Create(ctx, &Referrer{ID: "ref_1", Code: "ABCD2345", Name: "Alice"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, _ := store.Get(ctx, "ref_1")
	got.Name = "Mallory"

	again, _ := store.Get(ctx, "ref_1")
	if again.Name != "Alice" {
		t.Error("store handed out its internal referrer")
	}
}
