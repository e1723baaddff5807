package schema

import (
	"fmt"
	"time"
)

// Review is a restaurant review.
//
// ID is zero until the server assigns one: a review with ID == 0 is an
// unconfirmed local copy that has not yet been accepted by the remote
// API. Timestamps are client-assigned at submission time and overwritten
// with the server's values on confirmation (last-write-wins by server
// clock).
type Review struct {
	ID           int64     `json:"id,omitempty"`
	RestaurantID int64     `json:"restaurant_id"`
	Name         string    `json:"name"`
	Rating       int       `json:"rating"`
	Comments     string    `json:"comments"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Confirmed reports whether the review carries a server-assigned id.
func (r *Review) Confirmed() bool {
	return r.ID != 0
}

// Validate checks if the Review has valid field values.
//
// Malformed reviews are rejected here, before they can enter the
// pending-write queue.
func (r *Review) Validate() error {
	if r.RestaurantID <= 0 {
		return &ValidationError{Field: "restaurant_id", Reason: "must be a positive integer"}
	}
	if r.Name == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}
	if r.Rating < 1 || r.Rating > 5 {
		return &ValidationError{Field: "rating", Reason: fmt.Sprintf("must be between 1 and 5 (got %d)", r.Rating)}
	}
	if r.Comments == "" {
		return &ValidationError{Field: "comments", Reason: "is required"}
	}
	return nil
}

// ValidationError reports a malformed record rejected before queuing.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid record: %s %s", e.Field, e.Reason)
}
