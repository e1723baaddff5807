package store

import (
	"context"
	"testing"
	"time"

	"github.com/dinesync/dinesync/internal/schema"
)

func TestPendingQueueFIFO(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := s.EnqueueFavoriteToggle(ctx, 1, true, now); err != nil {
		t.Fatalf("EnqueueFavoriteToggle failed: %v", err)
	}
	if _, err := s.EnqueueReviewSubmission(ctx, 2, 77, now.Add(time.Second)); err != nil {
		t.Fatalf("EnqueueReviewSubmission failed: %v", err)
	}
	if err := s.EnqueueFavoriteToggle(ctx, 3, false, now.Add(2*time.Second)); err != nil {
		t.Fatalf("EnqueueFavoriteToggle failed: %v", err)
	}

	all, err := s.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 pending writes, got %d", len(all))
	}
	wantKinds := []schema.PendingKind{
		schema.PendingFavoriteToggle,
		schema.PendingReviewSubmission,
		schema.PendingFavoriteToggle,
	}
	for i, w := range all {
		if w.Kind != wantKinds[i] {
			t.Errorf("pending[%d].Kind = %q, want %q", i, w.Kind, wantKinds[i])
		}
	}

	head, err := s.HeadPending(ctx)
	if err != nil {
		t.Fatalf("HeadPending failed: %v", err)
	}
	if head == nil || head.RestaurantID != 1 {
		t.Fatalf("head = %+v, want toggle for restaurant 1", head)
	}
}

func TestHeadPendingEmptyQueue(t *testing.T) {
	s := setupTestStore(t)

	head, err := s.HeadPending(context.Background())
	if err != nil {
		t.Fatalf("HeadPending failed: %v", err)
	}
	if head != nil {
		t.Errorf("expected nil head for empty queue, got %+v", head)
	}
}

func TestToggleReplacedInPlace(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := s.EnqueueFavoriteToggle(ctx, 42, true, now); err != nil {
		t.Fatalf("first enqueue failed: %v", err)
	}
	if _, err := s.EnqueueReviewSubmission(ctx, 42, 5, now.Add(time.Second)); err != nil {
		t.Fatalf("EnqueueReviewSubmission failed: %v", err)
	}

	first, err := s.PendingToggle(ctx, 42)
	if err != nil {
		t.Fatalf("PendingToggle failed: %v", err)
	}
	if err := s.BumpPendingAttempts(ctx, first.Seq); err != nil {
		t.Fatalf("BumpPendingAttempts failed: %v", err)
	}

	// Re-toggling the same restaurant replaces the payload but keeps
	// the original queue position, still ahead of the review.
	if err := s.EnqueueFavoriteToggle(ctx, 42, false, now.Add(2*time.Second)); err != nil {
		t.Fatalf("replacing enqueue failed: %v", err)
	}

	n, err := s.PendingCount(ctx)
	if err != nil {
		t.Fatalf("PendingCount failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("PendingCount = %d, want 2", n)
	}

	replaced, err := s.PendingToggle(ctx, 42)
	if err != nil {
		t.Fatalf("PendingToggle after replace failed: %v", err)
	}
	if replaced.Seq != first.Seq {
		t.Errorf("Seq changed on replace: %d -> %d", first.Seq, replaced.Seq)
	}
	if replaced.NewValue {
		t.Error("NewValue should be the replacement value (false)")
	}
	if replaced.Attempts != 0 {
		t.Errorf("Attempts = %d, want reset to 0", replaced.Attempts)
	}

	head, err := s.HeadPending(ctx)
	if err != nil {
		t.Fatalf("HeadPending failed: %v", err)
	}
	if head.Kind != schema.PendingFavoriteToggle {
		t.Errorf("head.Kind = %q, replaced toggle should still drain first", head.Kind)
	}
}

func TestDeletePendingIfUnchanged(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := s.EnqueueFavoriteToggle(ctx, 9, true, now); err != nil {
		t.Fatalf("EnqueueFavoriteToggle failed: %v", err)
	}
	snapshot, err := s.HeadPending(ctx)
	if err != nil {
		t.Fatalf("HeadPending failed: %v", err)
	}

	// Replace while the snapshot's network call is notionally in flight.
	if err := s.EnqueueFavoriteToggle(ctx, 9, false, now.Add(time.Second)); err != nil {
		t.Fatalf("replacing enqueue failed: %v", err)
	}

	removed, err := s.DeletePendingIfUnchanged(ctx, snapshot)
	if err != nil {
		t.Fatalf("DeletePendingIfUnchanged failed: %v", err)
	}
	if removed {
		t.Error("stale snapshot should not remove the replaced entry")
	}

	current, err := s.PendingToggle(ctx, 9)
	if err != nil {
		t.Fatalf("PendingToggle failed: %v", err)
	}
	if current == nil {
		t.Fatal("replaced toggle should still be queued")
	}

	removed, err = s.DeletePendingIfUnchanged(ctx, current)
	if err != nil {
		t.Fatalf("DeletePendingIfUnchanged failed: %v", err)
	}
	if !removed {
		t.Error("matching snapshot should remove the entry")
	}

	n, err := s.PendingCount(ctx)
	if err != nil {
		t.Fatalf("PendingCount failed: %v", err)
	}
	if n != 0 {
		t.Errorf("PendingCount = %d, want 0", n)
	}
}

func TestBumpPendingAttempts(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	seq, err := s.EnqueueReviewSubmission(ctx, 1, 2, time.Now().UTC())
	if err != nil {
		t.Fatalf("EnqueueReviewSubmission failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := s.BumpPendingAttempts(ctx, seq); err != nil {
			t.Fatalf("BumpPendingAttempts failed: %v", err)
		}
	}

	head, err := s.HeadPending(ctx)
	if err != nil {
		t.Fatalf("HeadPending failed: %v", err)
	}
	if head.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", head.Attempts)
	}
	if head.ReviewLocalID != 2 {
		t.Errorf("ReviewLocalID = %d, want 2", head.ReviewLocalID)
	}
}

func TestDeletePendingIdempotent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	seq, err := s.EnqueueReviewSubmission(ctx, 1, 2, time.Now().UTC())
	if err != nil {
		t.Fatalf("EnqueueReviewSubmission failed: %v", err)
	}
	if err := s.DeletePending(ctx, seq); err != nil {
		t.Fatalf("DeletePending failed: %v", err)
	}
	if err := s.DeletePending(ctx, seq); err != nil {
		t.Errorf("second DeletePending failed: %v", err)
	}
}
