package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/dinesync/dinesync/internal/remote"
	"github.com/dinesync/dinesync/internal/schema"
)

// Drain replays the pending-write queue against the remote API in
// strict FIFO order.
//
// At most one drain runs at a time: a call that arrives while another
// is in flight returns immediately and relies on the in-flight drain,
// which re-reads the queue head on every iteration, to pick up any new
// entries.
//
// Per entry:
//   - success: the entry is removed; the optimistic local state stands.
//   - network error: the attempt counter is bumped and the whole drain
//     halts at that point, preserving causal order. Entries behind the
//     failure are retried together on the next drain.
//   - API error: the entry is permanently abandoned and surfaced via
//     the SyncFailed callback; the drain continues with the next entry.
//
// An entry whose attempt counter has reached the retry budget is
// abandoned before it is tried again, so exhaustion is always surfaced.
func (e *Engine) Drain(ctx context.Context) error {
	if !e.draining.CompareAndSwap(false, true) {
		e.config.Logger.Println("Drain already in flight, coalescing")
		return nil
	}
	defer e.draining.Store(false)

	if e.store == nil {
		return nil
	}

	for {
		head, err := e.store.HeadPending(ctx)
		if err != nil {
			return err
		}
		if head == nil {
			return nil
		}

		if head.Attempts >= e.config.MaxAttempts {
			e.abandon(ctx, head, fmt.Errorf("retry budget exhausted after %d attempts", head.Attempts))
			continue
		}

		if err := e.drainOne(ctx, head); err != nil {
			var netErr *remote.NetworkError
			if errors.As(err, &netErr) {
				if bumpErr := e.store.BumpPendingAttempts(ctx, head.Seq); bumpErr != nil {
					e.config.Logger.Printf("Warning: failed to record attempt: %v", bumpErr)
				}
				e.config.Logger.Printf("Drain halted at seq %d: %v", head.Seq, err)
				return err
			}

			var apiErr *remote.APIError
			if errors.As(err, &apiErr) {
				e.abandon(ctx, head, err)
				continue
			}

			return err
		}
	}
}

// drainOne replays a single queue entry. The queue mutex is held for
// the full step so a concurrent toggle cannot interleave with this
// entry's network call and completion bookkeeping.
func (e *Engine) drainOne(ctx context.Context, w *schema.PendingWrite) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch w.Kind {
	case schema.PendingFavoriteToggle:
		if err := e.remote.PatchFavorite(ctx, w.RestaurantID, w.NewValue); err != nil {
			return err
		}
		// Local value was applied optimistically at enqueue time.
		// The conditional delete keeps a toggle that another process
		// replaced while this call was in flight.
		removed, err := e.store.DeletePendingIfUnchanged(ctx, w)
		if err != nil {
			return err
		}
		if !removed {
			e.config.Logger.Printf("Toggle for restaurant %d replaced mid-drain, kept in queue", w.RestaurantID)
		}
		return nil

	case schema.PendingReviewSubmission:
		rev, err := e.store.GetLocalReview(ctx, w.ReviewLocalID)
		if err != nil {
			return err
		}
		if rev == nil {
			// The unconfirmed copy is gone; nothing left to replay.
			return e.store.DeletePending(ctx, w.Seq)
		}

		confirmed, err := e.remote.PostReview(ctx, rev)
		if err != nil {
			return err
		}

		// Server values are authoritative, including timestamps.
		if err := e.store.ConfirmReview(ctx, w.ReviewLocalID, confirmed); err != nil {
			return err
		}
		return e.store.DeletePending(ctx, w.Seq)

	default:
		e.config.Logger.Printf("Warning: unknown pending kind %q at seq %d, dropping", w.Kind, w.Seq)
		return e.store.DeletePending(ctx, w.Seq)
	}
}

// abandon permanently drops a queue entry and surfaces the failure.
// Review abandonment also rolls back the unconfirmed local copy, since
// the rejection is permanent; favorite abandonment leaves the local
// value and relies on the next remote refresh to correct it.
func (e *Engine) abandon(ctx context.Context, w *schema.PendingWrite, cause error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if w.Kind == schema.PendingReviewSubmission && w.ReviewLocalID != 0 {
		if err := e.store.DeleteLocalReview(ctx, w.ReviewLocalID); err != nil {
			e.config.Logger.Printf("Warning: failed to roll back review copy %d: %v", w.ReviewLocalID, err)
		}
	}
	if err := e.store.DeletePending(ctx, w.Seq); err != nil {
		e.config.Logger.Printf("Warning: failed to remove abandoned entry %d: %v", w.Seq, err)
	}

	e.config.Logger.Printf("Sync failed permanently for %s (restaurant %d): %v", w.Kind, w.RestaurantID, cause)

	if e.config.OnSyncFailed != nil {
		e.config.OnSyncFailed(SyncFailure{Write: w, Err: cause})
	}
}
