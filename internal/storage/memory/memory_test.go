package memory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/goodtune/parentguard/internal/storage"
)

func TestRequestStore(t *testing.T) {
	store := New()
	ctx := context.Background()
	created := time.Date(2024, 6, 3, 18, 0, 0, 0, time.UTC)

	late, err := store.Requests().Add(ctx, "kid", "daily_budget_exhausted", created)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	early, err := store.Requests().Add(ctx, "kid", "homework done", created.Add(-time.Minute))
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	list, err := store.Requests().List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != early.ID || list[1].ID != late.ID {
		t.Fatalf("list not ordered oldest first: %+v", list)
	}

	minutes := 30
	approved, err := store.Requests().Approve(ctx, late.ID, &minutes, false, created.Add(time.Minute))
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != storage.StatusApproved || approved.ApprovedDurationMinutes == nil || *approved.ApprovedDurationMinutes != 30 {
		t.Errorf("approved = %+v", approved)
	}

	if _, err := store.Requests().Deny(ctx, late.ID, created.Add(2*time.Minute)); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("second resolve error = %v, want ErrNotFound", err)
	}
	if _, err := store.Requests().Get(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("get missing error = %v, want ErrNotFound", err)
	}

	// Callers get copies.
	approved.Reason = "mutated"
	got, err := store.Requests().Get(ctx, late.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Reason != "daily_budget_exhausted" {
		t.Errorf("stored reason = %q, mutation leaked", got.Reason)
	}
}

func TestPolicyAndUsageStores(t *testing.T) {
	store := New()
	ctx := context.Background()

	record := storage.PolicyRecord{UserID: "kid", Policy: json.RawMessage(`{"enabled":true}`), UpdatedAt: time.Now()}
	if err := store.Policies().Upsert(ctx, record); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := store.Policies().Get(ctx, "kid"); err != nil {
		t.Fatalf("get: %v", err)
	}
	if err := store.Policies().Delete(ctx, "kid"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Policies().Get(ctx, "kid"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("get after delete error = %v, want ErrNotFound", err)
	}

	for _, m := range []int{10, 5} {
		if err := store.Usage().IncrementDailyUsage(ctx, "2024-06-03", "kid", m); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}
	if err := store.Usage().IncrementDailyUsage(ctx, "2024-06-04", "kid", 7); err != nil {
		t.Fatalf("increment: %v", err)
	}

	u, err := store.Usage().GetDailyUsage(ctx, "2024-06-03", "kid")
	if err != nil {
		t.Fatalf("get usage: %v", err)
	}
	if u.Minutes != 15 {
		t.Errorf("minutes = %d, want 15", u.Minutes)
	}

	day, err := store.Usage().ListDailyUsage(ctx, "2024-06-04")
	if err != nil {
		t.Fatalf("list usage: %v", err)
	}
	if len(day) != 1 || day[0].Minutes != 7 {
		t.Errorf("2024-06-04 usage = %+v", day)
	}
}
