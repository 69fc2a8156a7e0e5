package reward

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

func testService() (*Service, *MemoryStore) {
	store := NewMemoryStore()
	return NewService(store, slog.New(slog.NewTextHandler(io.Discard, nil))), store
}

func TestScheduleCreatesPending(t *testing.T) {
	svc, _ := testService()
	ctx := context.Background()

	r, err := svc.Schedule(ctx, "pur_1", "ref_a", 10.00)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if r.Status != StatusPending {
		t.Errorf("status = %s, want pending", r.Status)
	}
	if r.PurchaseID != "pur_1" || r.ReferrerID != "ref_a" || r.Amount != 10.00 {
		t.Errorf("reward = %+v", r)
	}
	if r.CreatedAt.IsZero() {
		t.Error("created-at not set")
	}

	pending, err := svc.Pending(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("got %d pending, want 1", len(pending))
	}
}

func TestApprove(t *testing.T) {
	svc, _ := testService()
	ctx := context.Background()

	r, err := svc.Schedule(ctx, "pur_1", "ref_a", 10.00)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}

	approved, err := svc.Approve(ctx, r.ID, "ops@example.com")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != StatusApproved {
		t.Errorf("status = %s, want approved", approved.Status)
	}
	if approved.ReviewedBy != "ops@example.com" {
		t.Errorf("reviewed by = %s", approved.ReviewedBy)
	}
	if approved.ReviewedAt.IsZero() {
		t.Error("reviewed-at not set")
	}

	pending, _ := svc.Pending(ctx, 10)
	if len(pending) != 0 {
		t.Errorf("approved reward still pending")
	}
}

func TestRejectWithNote(t *testing.T) {
	svc, _ := testService()
	ctx := context.Background()

	r, err := svc.Schedule(ctx, "pur_1", "ref_a", 10.00)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}

	rejected, err := svc.Reject(ctx, r.ID, "ops@example.com", "suspicious pattern")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != StatusRejected {
		t.Errorf("status = %s, want rejected", rejected.Status)
	}
	if rejected.ReviewNote != "suspicious pattern" {
		t.Errorf("note = %q", rejected.ReviewNote)
	}
}

func TestReviewIsFinal(t *testing.T) {
	svc, _ := testService()
	ctx := context.Background()

	r, err := svc.Schedule(ctx, "pur_1", "ref_a", 10.00)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if _, err := svc.Approve(ctx, r.ID, "ops@example.com"); err != nil {
		t.Fatalf("approve: %v", err)
	}

	if _, err := svc.Approve(ctx, r.ID, "other@example.com"); !errors.Is(err, ErrAlreadyReviewed) {
		t.Errorf("second approve = %v, want ErrAlreadyReviewed", err)
	}
	if _, err := svc.Reject(ctx, r.ID, "other@example.com", ""); !errors.Is(err, ErrAlreadyReviewed) {
		t.Errorf("reject after approve = %v, want ErrAlreadyReviewed", err)
	}

	// The first decision stands.
	got, err := svc.Get(ctx, r.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusApproved || got.ReviewedBy != "ops@example.com" {
		t.Errorf("reward = %+v", got)
	}
}

func TestReviewUnknownReward(t *testing.T) {
	svc, _ := testService()

	if _, err := svc.Approve(context.Background(), "rwd_missing", "ops"); !errors.Is(err, ErrRewardNotFound) {
		t.Errorf("approve = %v, want ErrRewardNotFound", err)
	}
}

func TestListByReferrer(t *testing.T) {
	svc, _ := testService()
	ctx := context.Background()

	if _, err := svc.Schedule(ctx, "pur_1", "ref_a", 5); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Schedule(ctx, "pur_2", "ref_b", 6); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Schedule(ctx, "pur_3", "ref_a", 7); err != nil {
		t.Fatal(err)
	}

	list, err := svc.ListByReferrer(ctx, "ref_a", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d rewards, want 2", len(list))
	}
	// Most recent first.
	if list[0].PurchaseID != "pur_3" {
		t.Errorf("first = %s, want pur_3", list[0].PurchaseID)
	}
}
