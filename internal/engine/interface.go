package engine

import (
	"context"
	"errors"

	"github.com/dinesync/dinesync/internal/schema"
)

// ErrDataUnavailable indicates both the local cache and the remote API
// failed to produce data. There is no silent empty result: callers see
// this error instead.
var ErrDataUnavailable = errors.New("data unavailable from local store and remote")

// ErrNotFound indicates a record does not exist in the synchronized
// dataset.
var ErrNotFound = errors.New("record not found")

// RemoteGateway is the engine's view of the remote API. Each call is a
// single attempt; the engine owns retries and queueing.
//
// The concrete implementation lives in internal/remote. Tests
// substitute fakes to script network and API failures.
type RemoteGateway interface {
	FetchAll(ctx context.Context) ([]*schema.Restaurant, error)
	FetchReviews(ctx context.Context, restaurantID int64) ([]*schema.Review, error)
	PostReview(ctx context.Context, review *schema.Review) (*schema.Review, error)
	PatchFavorite(ctx context.Context, restaurantID int64, favorite bool) error
}

// SyncFailure describes a queued write that was permanently abandoned:
// either the remote rejected it, or its retry budget ran out.
type SyncFailure struct {
	Write *schema.PendingWrite
	Err   error
}

// Status is a point-in-time summary of the synchronized dataset.
type Status struct {
	Restaurants int  `json:"restaurants"`
	Reviews     int  `json:"reviews"`
	Pending     int  `json:"pending"`
	Online      bool `json:"online"`
	Degraded    bool `json:"degraded"`
}
