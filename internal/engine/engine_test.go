package engine

import (
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dinesync/dinesync/internal/remote"
	"github.com/dinesync/dinesync/internal/schema"
	"github.com/dinesync/dinesync/internal/store"
)

type patchCall struct {
	restaurantID int64
	favorite     bool
}

// fakeRemote is a scripted RemoteGateway. Per-call errors are consumed
// in order from the err slices; calls past the end of a slice succeed.
type fakeRemote struct {
	mu sync.Mutex

	restaurants     []*schema.Restaurant
	reviews         map[int64][]*schema.Review
	fetchAllErr     error
	fetchReviewsErr error
	patchErrs       []error
	postErrs        []error

	fetchCalls int
	patches    []patchCall
	posts      []*schema.Review
	ops        []string
	nextID     int64

	// When set, PatchFavorite signals patchStarted then blocks on
	// patchRelease.
	patchStarted chan struct{}
	patchRelease chan struct{}
}

func (f *fakeRemote) FetchAll(ctx context.Context) ([]*schema.Restaurant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.fetchCalls++
	if f.fetchAllErr != nil {
		return nil, f.fetchAllErr
	}
	out := make([]*schema.Restaurant, len(f.restaurants))
	for i, r := range f.restaurants {
		cp := *r
		out[i] = &cp
	}
	return out, nil
}

func (f *fakeRemote) FetchReviews(ctx context.Context, restaurantID int64) ([]*schema.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fetchReviewsErr != nil {
		return nil, f.fetchReviewsErr
	}
	var out []*schema.Review
	for _, r := range f.reviews[restaurantID] {
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeRemote) PostReview(ctx context.Context, review *schema.Review) (*schema.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	call := len(f.posts)
	cp := *review
	f.posts = append(f.posts, &cp)
	f.ops = append(f.ops, "post")

	if call < len(f.postErrs) && f.postErrs[call] != nil {
		return nil, f.postErrs[call]
	}

	f.nextID++
	confirmed := cp
	confirmed.ID = f.nextID
	serverTime := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	confirmed.CreatedAt = serverTime
	confirmed.UpdatedAt = serverTime
	return &confirmed, nil
}

func (f *fakeRemote) PatchFavorite(ctx context.Context, restaurantID int64, favorite bool) error {
	f.mu.Lock()
	call := len(f.patches)
	f.patches = append(f.patches, patchCall{restaurantID, favorite})
	f.ops = append(f.ops, "patch")
	var err error
	if call < len(f.patchErrs) {
		err = f.patchErrs[call]
	}
	started, release := f.patchStarted, f.patchRelease
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if release != nil {
		<-release
	}
	return err
}

func (f *fakeRemote) patchCalls() []patchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]patchCall(nil), f.patches...)
}

func (f *fakeRemote) opLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ops...)
}

func netErr() error {
	return &remote.NetworkError{Op: "test", Err: errors.New("connection refused")}
}

func apiErr(status int) error {
	return &remote.APIError{Op: "test", StatusCode: status, Body: "rejected"}
}

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newTestEngine(t *testing.T, fr *fakeRemote) (*Engine, *store.Store) {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	if err := st.InitSchema(context.Background()); err != nil {
		t.Fatalf("failed to init schema: %v", err)
	}

	eng := New(st, fr, &Config{MaxAttempts: 5, Logger: testLogger()})
	return eng, st
}

func fixtureRestaurant(id int64, favorite bool) *schema.Restaurant {
	return &schema.Restaurant{
		ID:           id,
		Name:         "Katz's Delicatessen",
		CuisineType:  "American",
		Neighborhood: "Manhattan",
		IsFavorite:   schema.Favorite(favorite),
	}
}

func TestFetchRestaurantsCacheWins(t *testing.T) {
	fr := &fakeRemote{fetchAllErr: netErr()}
	eng, st := newTestEngine(t, fr)
	ctx := context.Background()

	if err := st.PutRestaurant(ctx, fixtureRestaurant(1, false)); err != nil {
		t.Fatalf("PutRestaurant failed: %v", err)
	}

	got, err := eng.FetchRestaurants(ctx)
	if err != nil {
		t.Fatalf("FetchRestaurants failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("expected cached restaurant 1, got %+v", got)
	}
	if fr.fetchCalls != 0 {
		t.Errorf("remote was called %d times, want 0 when cache is warm", fr.fetchCalls)
	}
}

func TestFetchRestaurantsRefillsEmptyCache(t *testing.T) {
	fr := &fakeRemote{restaurants: []*schema.Restaurant{
		fixtureRestaurant(1, false),
		fixtureRestaurant(2, true),
	}}
	eng, st := newTestEngine(t, fr)
	ctx := context.Background()

	got, err := eng.FetchRestaurants(ctx)
	if err != nil {
		t.Fatalf("FetchRestaurants failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 restaurants, got %d", len(got))
	}

	n, err := st.RestaurantCount(ctx)
	if err != nil {
		t.Fatalf("RestaurantCount failed: %v", err)
	}
	if n != 2 {
		t.Errorf("cache holds %d restaurants after refill, want 2", n)
	}

	// Second read is served locally.
	if _, err := eng.FetchRestaurants(ctx); err != nil {
		t.Fatalf("second FetchRestaurants failed: %v", err)
	}
	if fr.fetchCalls != 1 {
		t.Errorf("remote called %d times, want 1", fr.fetchCalls)
	}
}

func TestFetchRestaurantsBothSourcesFail(t *testing.T) {
	fr := &fakeRemote{fetchAllErr: netErr()}
	eng, _ := newTestEngine(t, fr)

	_, err := eng.FetchRestaurants(context.Background())
	if err == nil {
		t.Fatal("expected error when cache is empty and remote is down")
	}
	if !errors.Is(err, ErrDataUnavailable) {
		t.Errorf("expected ErrDataUnavailable, got: %v", err)
	}
}

func TestFetchRestaurantNotFound(t *testing.T) {
	fr := &fakeRemote{restaurants: []*schema.Restaurant{fixtureRestaurant(1, false)}}
	eng, _ := newTestEngine(t, fr)

	_, err := eng.FetchRestaurant(context.Background(), 999)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got: %v", err)
	}
}

func TestToggleFavoriteOptimisticOverlay(t *testing.T) {
	fr := &fakeRemote{}
	eng, st := newTestEngine(t, fr)
	ctx := context.Background()

	if err := st.PutRestaurant(ctx, fixtureRestaurant(1, false)); err != nil {
		t.Fatalf("PutRestaurant failed: %v", err)
	}

	// Offline: the toggle must be visible immediately without any
	// network round trip.
	got, err := eng.ToggleFavorite(ctx, 1)
	if err != nil {
		t.Fatalf("ToggleFavorite failed: %v", err)
	}
	if !got {
		t.Error("toggle from false should yield true")
	}

	listed, err := eng.FetchRestaurants(ctx)
	if err != nil {
		t.Fatalf("FetchRestaurants failed: %v", err)
	}
	if !listed[0].IsFavorite {
		t.Error("optimistic toggle not visible in listing")
	}
	if len(fr.patchCalls()) != 0 {
		t.Errorf("offline toggle reached the network: %v", fr.patchCalls())
	}
}

func TestDoubleToggleNetsToSingleWrite(t *testing.T) {
	fr := &fakeRemote{}
	eng, st := newTestEngine(t, fr)
	ctx := context.Background()

	if err := st.PutRestaurant(ctx, fixtureRestaurant(42, false)); err != nil {
		t.Fatalf("PutRestaurant failed: %v", err)
	}

	// Toggle against the effective value, not a stale snapshot:
	// false -> true -> false.
	first, err := eng.ToggleFavorite(ctx, 42)
	if err != nil {
		t.Fatalf("first toggle failed: %v", err)
	}
	if !first {
		t.Error("first toggle should yield true")
	}
	second, err := eng.ToggleFavorite(ctx, 42)
	if err != nil {
		t.Fatalf("second toggle failed: %v", err)
	}
	if second {
		t.Error("second toggle should yield false again")
	}

	pending, err := st.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("queue depth = %d, want 1 (replaced in place)", len(pending))
	}
	if pending[0].NewValue {
		t.Error("queued value should be the final state (false)")
	}
}

func TestSubmitReviewOnline(t *testing.T) {
	fr := &fakeRemote{nextID: 100}
	eng, st := newTestEngine(t, fr)
	ctx := context.Background()
	eng.SetOnline(true)

	got, err := eng.SubmitReview(ctx, &schema.Review{
		RestaurantID: 7,
		Name:         "Morgan",
		Rating:       5,
		Comments:     "Perfect pastrami",
	})
	if err != nil {
		t.Fatalf("SubmitReview failed: %v", err)
	}
	if !got.Confirmed() {
		t.Fatal("online submission should return a confirmed review")
	}
	if got.ID != 101 {
		t.Errorf("ID = %d, want server-assigned 101", got.ID)
	}

	// The confirmed record is cached; nothing is queued.
	n, err := st.PendingCount(ctx)
	if err != nil {
		t.Fatalf("PendingCount failed: %v", err)
	}
	if n != 0 {
		t.Errorf("PendingCount = %d, want 0", n)
	}
	reviews, err := st.ListReviews(ctx, 7)
	if err != nil {
		t.Fatalf("ListReviews failed: %v", err)
	}
	if len(reviews) != 1 || reviews[0].ID != 101 {
		t.Errorf("cached reviews = %+v, want one confirmed record", reviews)
	}
}

func TestSubmitReviewOfflineQueuesAndShows(t *testing.T) {
	fr := &fakeRemote{fetchReviewsErr: netErr()}
	eng, st := newTestEngine(t, fr)
	ctx := context.Background()

	got, err := eng.SubmitReview(ctx, &schema.Review{
		RestaurantID: 7,
		Name:         "Alex",
		Rating:       3,
		Comments:     "Queue was long",
	})
	if err != nil {
		t.Fatalf("SubmitReview failed: %v", err)
	}
	if got.Confirmed() {
		t.Error("offline submission should return an unconfirmed copy")
	}

	// The copy is readable before any sync happens.
	reviews, err := eng.FetchReviews(ctx, 7)
	if err != nil {
		t.Fatalf("FetchReviews failed: %v", err)
	}
	if len(reviews) != 1 {
		t.Fatalf("expected 1 review offline, got %d", len(reviews))
	}
	if reviews[0].Confirmed() {
		t.Error("review should still be unconfirmed")
	}

	n, err := st.PendingCount(ctx)
	if err != nil {
		t.Fatalf("PendingCount failed: %v", err)
	}
	if n != 1 {
		t.Errorf("PendingCount = %d, want 1", n)
	}
}

func TestSubmitReviewInvalid(t *testing.T) {
	fr := &fakeRemote{}
	eng, _ := newTestEngine(t, fr)

	_, err := eng.SubmitReview(context.Background(), &schema.Review{
		RestaurantID: 7,
		Name:         "Alex",
		Rating:       11,
		Comments:     "x",
	})
	var verr *schema.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *schema.ValidationError, got %T: %v", err, err)
	}
	if len(fr.opLog()) != 0 {
		t.Error("invalid review must not reach the network")
	}
}

func TestFetchReviewsMergesRemoteAndLocal(t *testing.T) {
	serverTime := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	fr := &fakeRemote{reviews: map[int64][]*schema.Review{
		4: {{
			ID: 9, RestaurantID: 4, Name: "Sam", Rating: 5,
			Comments: "Great", CreatedAt: serverTime, UpdatedAt: serverTime,
		}},
	}}
	eng, st := newTestEngine(t, fr)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	if _, err := st.InsertLocalReview(ctx, &schema.Review{
		RestaurantID: 4, Name: "Alex", Rating: 2,
		Comments: "Cold fries", CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("InsertLocalReview failed: %v", err)
	}

	got, err := eng.FetchReviews(ctx, 4)
	if err != nil {
		t.Fatalf("FetchReviews failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected merged remote + local reviews, got %d", len(got))
	}

	var confirmed, unconfirmed int
	for _, r := range got {
		if r.Confirmed() {
			confirmed++
		} else {
			unconfirmed++
		}
	}
	if confirmed != 1 || unconfirmed != 1 {
		t.Errorf("confirmed=%d unconfirmed=%d, want 1 and 1", confirmed, unconfirmed)
	}
}

func TestDegradedModeRemoteOnly(t *testing.T) {
	fr := &fakeRemote{restaurants: []*schema.Restaurant{fixtureRestaurant(1, true)}}
	eng := New(nil, fr, &Config{Logger: testLogger()})
	ctx := context.Background()

	if !eng.Degraded() {
		t.Fatal("engine without a store should report degraded")
	}

	got, err := eng.FetchRestaurants(ctx)
	if err != nil {
		t.Fatalf("FetchRestaurants failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 restaurant from remote, got %d", len(got))
	}

	// Online writes pass straight through.
	eng.SetOnline(true)
	if err := eng.SetFavorite(ctx, 1, false); err != nil {
		t.Fatalf("SetFavorite online in degraded mode failed: %v", err)
	}
	if len(fr.patchCalls()) != 1 {
		t.Errorf("patch calls = %d, want 1", len(fr.patchCalls()))
	}

	// Offline writes have nowhere to queue.
	eng.SetOnline(false)
	err = eng.SetFavorite(ctx, 1, true)
	if !errors.Is(err, store.ErrStorageUnavailable) {
		t.Errorf("expected ErrStorageUnavailable, got: %v", err)
	}
}

func TestStatus(t *testing.T) {
	fr := &fakeRemote{}
	eng, st := newTestEngine(t, fr)
	ctx := context.Background()

	if err := st.PutRestaurant(ctx, fixtureRestaurant(1, false)); err != nil {
		t.Fatalf("PutRestaurant failed: %v", err)
	}
	if _, err := eng.SubmitReview(ctx, &schema.Review{
		RestaurantID: 1, Name: "A", Rating: 4, Comments: "ok",
	}); err != nil {
		t.Fatalf("SubmitReview failed: %v", err)
	}

	status, err := eng.Status(ctx)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.Restaurants != 1 || status.Reviews != 1 || status.Pending != 1 {
		t.Errorf("Status = %+v, want 1 restaurant, 1 review, 1 pending", status)
	}
	if status.Online || status.Degraded {
		t.Errorf("Status flags = %+v, want offline and not degraded", status)
	}
}
