package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dinesync/dinesync/internal/schema"
)

// EnqueueFavoriteToggle queues a favorite change for a restaurant.
//
// The queue holds at most one toggle per restaurant: if one is already
// queued, its payload is replaced in place and its sequence number (and
// therefore its position relative to queued reviews) is preserved. The
// attempt counter resets because the replacement is a fresh write.
func (s *Store) EnqueueFavoriteToggle(ctx context.Context, restaurantID int64, newValue bool, queuedAt time.Time) error {
	query := `
	INSERT INTO pending_writes (kind, restaurant_id, new_value, queued_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(restaurant_id) WHERE kind = 'favorite_toggle' DO UPDATE SET
		new_value = excluded.new_value,
		queued_at = excluded.queued_at,
		attempts = 0
	`

	_, err := s.conn.ExecContext(ctx, query,
		string(schema.PendingFavoriteToggle),
		restaurantID,
		boolToInt(newValue),
		queuedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("%w: failed to enqueue favorite toggle for %d: %v", ErrStorageUnavailable, restaurantID, err)
	}
	return nil
}

// EnqueueReviewSubmission queues a review submission referencing the
// unconfirmed copy stored under reviewLocalID. Returns the assigned
// sequence number.
func (s *Store) EnqueueReviewSubmission(ctx context.Context, restaurantID, reviewLocalID int64, queuedAt time.Time) (int64, error) {
	query := `
	INSERT INTO pending_writes (kind, restaurant_id, review_local_id, queued_at)
	VALUES (?, ?, ?, ?)`

	res, err := s.conn.ExecContext(ctx, query,
		string(schema.PendingReviewSubmission),
		restaurantID,
		reviewLocalID,
		queuedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to enqueue review submission for %d: %v", ErrStorageUnavailable, restaurantID, err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: failed to read pending sequence: %v", ErrStorageUnavailable, err)
	}
	return seq, nil
}

// HeadPending returns the oldest queued write, or nil if the queue is
// empty. Drains call this repeatedly instead of snapshotting the whole
// queue so writes enqueued mid-drain are picked up in order.
func (s *Store) HeadPending(ctx context.Context) (*schema.PendingWrite, error) {
	query := `
	SELECT seq, kind, restaurant_id, new_value, review_local_id, attempts, queued_at
	FROM pending_writes ORDER BY seq LIMIT 1`

	w, err := scanPending(s.conn.QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read queue head: %v", ErrStorageUnavailable, err)
	}
	return w, nil
}

// ListPending returns the full queue in FIFO order.
func (s *Store) ListPending(ctx context.Context) ([]*schema.PendingWrite, error) {
	query := `
	SELECT seq, kind, restaurant_id, new_value, review_local_id, attempts, queued_at
	FROM pending_writes ORDER BY seq`

	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list pending writes: %v", ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var out []*schema.PendingWrite
	for rows.Next() {
		w, err := scanPending(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan pending write: %v", ErrStorageUnavailable, err)
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to iterate pending writes: %v", ErrStorageUnavailable, err)
	}
	return out, nil
}

// PendingToggle returns the queued favorite toggle for a restaurant,
// or nil if none is queued.
func (s *Store) PendingToggle(ctx context.Context, restaurantID int64) (*schema.PendingWrite, error) {
	query := `
	SELECT seq, kind, restaurant_id, new_value, review_local_id, attempts, queued_at
	FROM pending_writes WHERE kind = ? AND restaurant_id = ?`

	w, err := scanPending(s.conn.QueryRowContext(ctx, query,
		string(schema.PendingFavoriteToggle), restaurantID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read pending toggle for %d: %v", ErrStorageUnavailable, restaurantID, err)
	}
	return w, nil
}

// DeletePendingIfUnchanged removes a queue entry only if its payload
// still matches the given snapshot. A favorite toggle replaced while
// its network call was in flight stays queued with the newer value.
// Returns true if the entry was removed.
func (s *Store) DeletePendingIfUnchanged(ctx context.Context, w *schema.PendingWrite) (bool, error) {
	res, err := s.conn.ExecContext(ctx,
		"DELETE FROM pending_writes WHERE seq = ? AND new_value = ? AND queued_at = ?",
		w.Seq, boolToInt(w.NewValue), w.QueuedAt.Format(time.RFC3339Nano))
	if err != nil {
		return false, fmt.Errorf("%w: failed to delete pending write %d: %v", ErrStorageUnavailable, w.Seq, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: failed to read rows affected: %v", ErrStorageUnavailable, err)
	}
	return n > 0, nil
}

// DeletePending removes a queue entry unconditionally.
// Returns nil if the entry doesn't exist (idempotent).
func (s *Store) DeletePending(ctx context.Context, seq int64) error {
	_, err := s.conn.ExecContext(ctx, "DELETE FROM pending_writes WHERE seq = ?", seq)
	if err != nil {
		return fmt.Errorf("%w: failed to delete pending write %d: %v", ErrStorageUnavailable, seq, err)
	}
	return nil
}

// BumpPendingAttempts increments the retry counter after a transient
// failure.
func (s *Store) BumpPendingAttempts(ctx context.Context, seq int64) error {
	_, err := s.conn.ExecContext(ctx,
		"UPDATE pending_writes SET attempts = attempts + 1 WHERE seq = ?", seq)
	if err != nil {
		return fmt.Errorf("%w: failed to bump attempts for pending write %d: %v", ErrStorageUnavailable, seq, err)
	}
	return nil
}

// PendingCount returns the queue depth.
func (s *Store) PendingCount(ctx context.Context) (int, error) {
	var n int
	if err := s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM pending_writes").Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: failed to count pending writes: %v", ErrStorageUnavailable, err)
	}
	return n, nil
}

func scanPending(row rowScanner) (*schema.PendingWrite, error) {
	var (
		w           schema.PendingWrite
		kind        string
		newValue    int
		reviewLocal sql.NullInt64
		queuedAt    string
	)
	err := row.Scan(
		&w.Seq,
		&kind,
		&w.RestaurantID,
		&newValue,
		&reviewLocal,
		&w.Attempts,
		&queuedAt,
	)
	if err != nil {
		return nil, err
	}
	w.Kind = schema.PendingKind(kind)
	w.NewValue = newValue != 0
	if reviewLocal.Valid {
		w.ReviewLocalID = reviewLocal.Int64
	}
	if w.QueuedAt, err = time.Parse(time.RFC3339Nano, queuedAt); err != nil {
		return nil, fmt.Errorf("failed to parse queued_at: %w", err)
	}
	return &w, nil
}
