package engine

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dinesync/dinesync/internal/schema"
	"github.com/dinesync/dinesync/internal/store"
)

// Config holds engine configuration.
type Config struct {
	// MaxAttempts is the retry budget per queued write. An entry that
	// has failed with a network error this many times is abandoned on
	// the next drain and surfaced through OnSyncFailed.
	MaxAttempts int

	// OnSyncFailed is invoked for every permanently abandoned write.
	// May be nil.
	OnSyncFailed func(SyncFailure)

	// Logger for engine activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: 5,
		Logger:      log.New(os.Stderr, "[engine] ", log.LstdFlags),
	}
}

// Engine coordinates the local store, the remote gateway, and the
// pending-write queue. Dependencies are injected explicitly; there is
// no ambient shared state.
//
// A nil store puts the engine in remote-only degraded mode: reads go
// straight to the gateway and offline writes fail loudly because there
// is nowhere durable to queue them.
type Engine struct {
	store  *store.Store
	remote RemoteGateway
	config *Config

	// mu serializes queue mutations with the in-flight drain step, so
	// a toggle arriving mid-drain cannot interleave with a queue
	// entry's network call and completion bookkeeping.
	mu sync.Mutex

	// draining is the single-flight drain lock. A Drain call that
	// finds it set is coalesced into the in-flight drain, which reads
	// the queue head fresh on every iteration.
	draining atomic.Bool

	online atomic.Bool
}

// New creates an Engine. st may be nil (degraded, remote-only mode);
// gw must not be nil.
func New(st *store.Store, gw RemoteGateway, config *Config) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[engine] ", log.LstdFlags)
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultConfig().MaxAttempts
	}
	return &Engine{
		store:  st,
		remote: gw,
		config: config,
	}
}

// SetOnSyncFailed replaces the abandonment callback. Must be called
// before any drain is running.
func (e *Engine) SetOnSyncFailed(fn func(SyncFailure)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.config.OnSyncFailed = fn
}

// SetOnline records a connectivity edge from the monitor. It does not
// trigger a drain; the monitor does that once per offline-to-online
// transition.
func (e *Engine) SetOnline(online bool) {
	was := e.online.Swap(online)
	if was != online {
		e.config.Logger.Printf("Connectivity: online=%v", online)
	}
}

// Online reports the last known connectivity state.
func (e *Engine) Online() bool {
	return e.online.Load()
}

// Degraded reports whether the engine is running without local
// persistence.
func (e *Engine) Degraded() bool {
	return e.store == nil
}

// FetchRestaurants returns the full restaurant listing.
//
// Cached records win over the network; queued favorite toggles are
// overlaid on whatever source served the read (pending wins). An empty
// cache falls through to the remote API and refills the store. If both
// sources fail the caller gets ErrDataUnavailable, never a silent
// empty result.
func (e *Engine) FetchRestaurants(ctx context.Context) ([]*schema.Restaurant, error) {
	if e.store != nil {
		cached, err := e.store.ListRestaurants(ctx)
		if err != nil {
			e.config.Logger.Printf("Warning: local read failed, trying remote: %v", err)
		} else if len(cached) > 0 {
			return e.overlayPendingToggles(ctx, cached), nil
		}
	}

	fetched, err := e.remote.FetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}

	if e.store != nil {
		if err := e.store.ReplaceRestaurants(ctx, fetched); err != nil {
			e.config.Logger.Printf("Warning: failed to refill restaurant cache: %v", err)
		}
	}

	return e.overlayPendingToggles(ctx, fetched), nil
}

// FetchRestaurant returns a single restaurant by id, with any pending
// favorite toggle applied. Returns ErrNotFound if the id is absent
// from the synchronized dataset.
func (e *Engine) FetchRestaurant(ctx context.Context, id int64) (*schema.Restaurant, error) {
	restaurants, err := e.FetchRestaurants(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range restaurants {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, fmt.Errorf("restaurant %d: %w", id, ErrNotFound)
}

// FetchReviews returns all reviews for a restaurant: server-confirmed
// records plus any unconfirmed local copies (ID == 0) still awaiting
// sync. The store is refilled from the remote when it holds no
// confirmed reviews for the restaurant.
func (e *Engine) FetchReviews(ctx context.Context, restaurantID int64) ([]*schema.Review, error) {
	var local []*schema.Review
	if e.store != nil {
		var err error
		local, err = e.store.ListReviews(ctx, restaurantID)
		if err != nil {
			e.config.Logger.Printf("Warning: local review read failed: %v", err)
			local = nil
		}
	}

	for _, r := range local {
		if r.Confirmed() {
			return local, nil
		}
	}

	fetched, err := e.remote.FetchReviews(ctx, restaurantID)
	if err != nil {
		// Unconfirmed copies are still worth showing offline.
		if len(local) > 0 {
			return local, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}

	if e.store == nil {
		return fetched, nil
	}

	for _, r := range fetched {
		if err := e.store.PutConfirmedReview(ctx, r); err != nil {
			e.config.Logger.Printf("Warning: failed to cache review %d: %v", r.ID, err)
		}
	}

	merged, err := e.store.ListReviews(ctx, restaurantID)
	if err != nil {
		return fetched, nil
	}
	return merged, nil
}

// ToggleFavorite flips a restaurant's favorite flag and returns the
// new value.
//
// The negation is computed against the currently effective value (the
// stored value overlaid by any queued toggle), never against a stale
// remote snapshot, so toggling twice offline nets back to the original
// value instead of double-flipping.
func (e *Engine) ToggleFavorite(ctx context.Context, id int64) (bool, error) {
	current, err := e.effectiveFavorite(ctx, id)
	if err != nil {
		return false, err
	}
	target := !current
	if err := e.SetFavorite(ctx, id, target); err != nil {
		return false, err
	}
	return target, nil
}

// SetFavorite records the desired favorite state for a restaurant.
//
// The store is updated immediately (optimistic) and the toggle is
// queued durably, replacing any earlier queued toggle for the same id.
// If the engine believes it is online a drain is attempted right away.
// An optimistic update is never rolled back on a transient network
// failure; the queued toggle is simply retried on the next transition
// to online.
func (e *Engine) SetFavorite(ctx context.Context, id int64, value bool) error {
	if e.store == nil {
		// Degraded mode: no queue to fall back on.
		if !e.Online() {
			return fmt.Errorf("cannot queue favorite toggle offline: %w", store.ErrStorageUnavailable)
		}
		return e.remote.PatchFavorite(ctx, id, value)
	}

	e.mu.Lock()
	err := e.store.EnqueueFavoriteToggle(ctx, id, value, time.Now().UTC())
	if err == nil {
		err = e.store.SetRestaurantFavorite(ctx, id, value)
	}
	e.mu.Unlock()
	if err != nil {
		return err
	}

	if e.Online() {
		if err := e.Drain(ctx); err != nil {
			e.config.Logger.Printf("Immediate drain after toggle failed (will retry): %v", err)
		}
	}
	return nil
}

// SubmitReview submits a new review.
//
// Online, the review goes straight to the API and the confirmed record
// (with server id and server timestamps) is cached and returned.
// Offline, or when the online attempt fails, the review is queued and
// a locally-visible unconfirmed copy (ID == 0) is returned so the
// caller can render it immediately.
func (e *Engine) SubmitReview(ctx context.Context, review *schema.Review) (*schema.Review, error) {
	if err := review.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if review.CreatedAt.IsZero() {
		review.CreatedAt = now
	}
	review.UpdatedAt = now

	if e.Online() {
		confirmed, err := e.remote.PostReview(ctx, review)
		if err == nil {
			if e.store != nil {
				if err := e.store.PutConfirmedReview(ctx, confirmed); err != nil {
					e.config.Logger.Printf("Warning: failed to cache confirmed review: %v", err)
				}
			}
			return confirmed, nil
		}
		e.config.Logger.Printf("Online review submission failed, queueing: %v", err)
	}

	if e.store == nil {
		return nil, fmt.Errorf("cannot queue review offline: %w", store.ErrStorageUnavailable)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	localID, err := e.store.InsertLocalReview(ctx, review)
	if err != nil {
		return nil, err
	}
	if _, err := e.store.EnqueueReviewSubmission(ctx, review.RestaurantID, localID, now); err != nil {
		return nil, err
	}

	queued := *review
	queued.ID = 0
	return &queued, nil
}

// Status summarizes the synchronized dataset.
func (e *Engine) Status(ctx context.Context) (*Status, error) {
	st := &Status{
		Online:   e.Online(),
		Degraded: e.Degraded(),
	}
	if e.store == nil {
		return st, nil
	}

	var err error
	if st.Restaurants, err = e.store.RestaurantCount(ctx); err != nil {
		return nil, err
	}
	if st.Reviews, err = e.store.ReviewCount(ctx); err != nil {
		return nil, err
	}
	if st.Pending, err = e.store.PendingCount(ctx); err != nil {
		return nil, err
	}
	return st, nil
}

// effectiveFavorite is the value the UI sees: the queued toggle for the
// id if one exists, else the last stored value, else the remote value.
func (e *Engine) effectiveFavorite(ctx context.Context, id int64) (bool, error) {
	if e.store != nil {
		pending, err := e.store.PendingToggle(ctx, id)
		if err != nil {
			return false, err
		}
		if pending != nil {
			return pending.NewValue, nil
		}
		r, err := e.store.GetRestaurant(ctx, id)
		if err != nil {
			return false, err
		}
		if r != nil {
			return bool(r.IsFavorite), nil
		}
	}

	r, err := e.FetchRestaurant(ctx, id)
	if err != nil {
		return false, err
	}
	return bool(r.IsFavorite), nil
}

// overlayPendingToggles applies queued favorite values on top of the
// given records. Pending wins over whatever the source said.
func (e *Engine) overlayPendingToggles(ctx context.Context, rs []*schema.Restaurant) []*schema.Restaurant {
	if e.store == nil {
		return rs
	}

	pending, err := e.store.ListPending(ctx)
	if err != nil {
		e.config.Logger.Printf("Warning: failed to read pending queue for overlay: %v", err)
		return rs
	}

	toggles := make(map[int64]bool)
	for _, w := range pending {
		if w.Kind == schema.PendingFavoriteToggle {
			toggles[w.RestaurantID] = w.NewValue
		}
	}
	if len(toggles) == 0 {
		return rs
	}

	for _, r := range rs {
		if v, ok := toggles[r.ID]; ok {
			r.IsFavorite = schema.Favorite(v)
		}
	}
	return rs
}
