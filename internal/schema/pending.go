package schema

import "time"

// PendingKind discriminates the queued mutation variants.
type PendingKind string

const (
	// PendingFavoriteToggle is a queued is_favorite change.
	PendingFavoriteToggle PendingKind = "favorite_toggle"
	// PendingReviewSubmission is a queued new review.
	PendingReviewSubmission PendingKind = "review_submission"
)

// PendingWrite is one mutation awaiting remote confirmation.
//
// Entries are ordered by Seq, which is assigned at insertion and never
// reused. Replays process entries strictly in Seq order so a user's
// successive edits to the same restaurant keep their causal order.
//
// The queue holds at most one favorite toggle per restaurant: a newer
// toggle replaces the prior entry's payload in place, keeping its Seq
// (and therefore its position relative to queued reviews).
type PendingWrite struct {
	Seq          int64       `json:"seq"`
	Kind         PendingKind `json:"kind"`
	RestaurantID int64       `json:"restaurant_id"`

	// NewValue is the target favorite state (favorite toggles only).
	NewValue bool `json:"new_value,omitempty"`

	// ReviewLocalID is the local store key of the unconfirmed review
	// copy (review submissions only).
	ReviewLocalID int64 `json:"review_local_id,omitempty"`

	// Attempts counts drain passes that failed with a transient
	// network error. Entries past the retry budget are abandoned and
	// surfaced, never silently dropped.
	Attempts int       `json:"attempts"`
	QueuedAt time.Time `json:"queued_at"`
}
