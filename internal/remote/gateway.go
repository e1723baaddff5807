// Package remote is the thin client for the canonical restaurant API.
//
// Every call is a single attempt: the gateway carries no retry logic
// of its own (retries are the sync engine's job) and never touches the
// local store. Transport failures surface as *NetworkError, non-2xx
// responses as *APIError; no raw transport error crosses this
// boundary.
package remote

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/dinesync/dinesync/internal/schema"
)

// DefaultTimeout bounds a single request attempt.
const DefaultTimeout = 10 * time.Second

// Gateway wraps the remote API endpoints.
type Gateway struct {
	client *resty.Client
}

// New creates a Gateway for the given API base URL,
// e.g. "http://localhost:1337".
func New(baseURL string) *Gateway {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(DefaultTimeout).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(0)

	return &Gateway{client: client}
}

// FetchAll retrieves the full restaurant listing.
func (g *Gateway) FetchAll(ctx context.Context) ([]*schema.Restaurant, error) {
	var out []*schema.Restaurant

	resp, err := g.client.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/restaurants")
	if err != nil {
		return nil, &NetworkError{Op: "fetch restaurants", Err: err}
	}
	if resp.IsError() {
		return nil, &APIError{Op: "fetch restaurants", StatusCode: resp.StatusCode(), Body: resp.String()}
	}

	return out, nil
}

// FetchReviews retrieves all reviews for one restaurant.
func (g *Gateway) FetchReviews(ctx context.Context, restaurantID int64) ([]*schema.Review, error) {
	var out []*schema.Review

	resp, err := g.client.R().
		SetContext(ctx).
		SetQueryParam("restaurant_id", strconv.FormatInt(restaurantID, 10)).
		SetResult(&out).
		Get("/reviews/")
	if err != nil {
		return nil, &NetworkError{Op: "fetch reviews", Err: err}
	}
	if resp.IsError() {
		return nil, &APIError{Op: "fetch reviews", StatusCode: resp.StatusCode(), Body: resp.String()}
	}

	return out, nil
}

// PostReview submits a new review and returns the created record with
// its server-assigned id and server timestamps.
func (g *Gateway) PostReview(ctx context.Context, review *schema.Review) (*schema.Review, error) {
	// The server assigns the id; never send a client-side one.
	body := struct {
		RestaurantID int64  `json:"restaurant_id"`
		Name         string `json:"name"`
		Rating       int    `json:"rating"`
		Comments     string `json:"comments"`
	}{
		RestaurantID: review.RestaurantID,
		Name:         review.Name,
		Rating:       review.Rating,
		Comments:     review.Comments,
	}

	var out schema.Review

	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post("/reviews/")
	if err != nil {
		return nil, &NetworkError{Op: "post review", Err: err}
	}
	if resp.IsError() {
		return nil, &APIError{Op: "post review", StatusCode: resp.StatusCode(), Body: resp.String()}
	}

	return &out, nil
}

// PatchFavorite updates a restaurant's favorite flag on the server.
func (g *Gateway) PatchFavorite(ctx context.Context, restaurantID int64, favorite bool) error {
	resp, err := g.client.R().
		SetContext(ctx).
		SetQueryParam("is_favorite", strconv.FormatBool(favorite)).
		Put(fmt.Sprintf("/restaurants/%d/", restaurantID))
	if err != nil {
		return &NetworkError{Op: "patch favorite", Err: err}
	}
	if resp.IsError() {
		return &APIError{Op: "patch favorite", StatusCode: resp.StatusCode(), Body: resp.String()}
	}

	return nil
}
