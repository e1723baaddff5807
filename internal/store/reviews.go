package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dinesync/dinesync/internal/schema"
)

// InsertLocalReview stores an unconfirmed review copy (no server id
// yet) and returns its local key. The copy is visible to readers the
// instant it is stored, before any network call resolves.
func (s *Store) InsertLocalReview(ctx context.Context, r *schema.Review) (int64, error) {
	query := `
	INSERT INTO reviews (server_id, restaurant_id, name, rating, comments, created_at, updated_at)
	VALUES (NULL, ?, ?, ?, ?, ?, ?)`

	res, err := s.conn.ExecContext(ctx, query,
		r.RestaurantID,
		r.Name,
		r.Rating,
		r.Comments,
		r.CreatedAt.Format(time.RFC3339),
		r.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to insert local review: %v", ErrStorageUnavailable, err)
	}

	localID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: failed to read local review id: %v", ErrStorageUnavailable, err)
	}
	return localID, nil
}

// GetLocalReview returns the review stored under the given local key,
// or nil if it no longer exists.
func (s *Store) GetLocalReview(ctx context.Context, localID int64) (*schema.Review, error) {
	query := `
	SELECT server_id, restaurant_id, name, rating, comments, created_at, updated_at
	FROM reviews WHERE local_id = ?`

	r, err := scanReview(s.conn.QueryRowContext(ctx, query, localID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get review %d: %v", ErrStorageUnavailable, localID, err)
	}
	return r, nil
}

// ConfirmReview replaces an unconfirmed local copy with the
// server-confirmed record: the server id and server timestamps
// overwrite the client's values.
func (s *Store) ConfirmReview(ctx context.Context, localID int64, confirmed *schema.Review) error {
	query := `
	UPDATE reviews SET
		server_id = ?,
		name = ?,
		rating = ?,
		comments = ?,
		created_at = ?,
		updated_at = ?
	WHERE local_id = ?`

	_, err := s.conn.ExecContext(ctx, query,
		confirmed.ID,
		confirmed.Name,
		confirmed.Rating,
		confirmed.Comments,
		confirmed.CreatedAt.Format(time.RFC3339),
		confirmed.UpdatedAt.Format(time.RFC3339),
		localID,
	)
	if err != nil {
		return fmt.Errorf("%w: failed to confirm review %d: %v", ErrStorageUnavailable, localID, err)
	}
	return nil
}

// PutConfirmedReview inserts or updates a server-confirmed review,
// keyed by its server id.
func (s *Store) PutConfirmedReview(ctx context.Context, r *schema.Review) error {
	query := `
	INSERT INTO reviews (server_id, restaurant_id, name, rating, comments, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(server_id) DO UPDATE SET
		restaurant_id = excluded.restaurant_id,
		name = excluded.name,
		rating = excluded.rating,
		comments = excluded.comments,
		created_at = excluded.created_at,
		updated_at = excluded.updated_at
	`

	_, err := s.conn.ExecContext(ctx, query,
		r.ID,
		r.RestaurantID,
		r.Name,
		r.Rating,
		r.Comments,
		r.CreatedAt.Format(time.RFC3339),
		r.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("%w: failed to upsert review %d: %v", ErrStorageUnavailable, r.ID, err)
	}
	return nil
}

// DeleteLocalReview removes a review by its local key.
// Returns nil if the review doesn't exist (idempotent).
func (s *Store) DeleteLocalReview(ctx context.Context, localID int64) error {
	_, err := s.conn.ExecContext(ctx, "DELETE FROM reviews WHERE local_id = ?", localID)
	if err != nil {
		return fmt.Errorf("%w: failed to delete review %d: %v", ErrStorageUnavailable, localID, err)
	}
	return nil
}

// ListReviews returns all reviews for a restaurant in insertion order.
// Unconfirmed copies are included, distinguishable by ID == 0.
func (s *Store) ListReviews(ctx context.Context, restaurantID int64) ([]*schema.Review, error) {
	query := `
	SELECT server_id, restaurant_id, name, rating, comments, created_at, updated_at
	FROM reviews WHERE restaurant_id = ? ORDER BY local_id`

	rows, err := s.conn.QueryContext(ctx, query, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list reviews: %v", ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var out []*schema.Review
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan review: %v", ErrStorageUnavailable, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to iterate reviews: %v", ErrStorageUnavailable, err)
	}
	return out, nil
}

// ReviewCount returns the total number of stored reviews.
func (s *Store) ReviewCount(ctx context.Context) (int, error) {
	var n int
	if err := s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM reviews").Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: failed to count reviews: %v", ErrStorageUnavailable, err)
	}
	return n, nil
}

func scanReview(row rowScanner) (*schema.Review, error) {
	var (
		r        schema.Review
		serverID sql.NullInt64
		created  string
		updated  string
	)
	err := row.Scan(
		&serverID,
		&r.RestaurantID,
		&r.Name,
		&r.Rating,
		&r.Comments,
		&created,
		&updated,
	)
	if err != nil {
		return nil, err
	}
	if serverID.Valid {
		r.ID = serverID.Int64
	}
	if r.CreatedAt, err = time.Parse(time.RFC3339, created); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if r.UpdatedAt, err = time.Parse(time.RFC3339, updated); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return &r, nil
}
