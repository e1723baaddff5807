// Package store provides the durable local cache for dinesync.
//
// The store is a local SQLite database with three logical tables:
// restaurants (keyed by id), reviews (keyed by a local surrogate id,
// with the server id attached on confirmation), and pending_writes
// (keyed by insertion sequence). It is the system of record while
// offline; the sync engine reconciles it with the remote API.
//
// The database runs in embedded mode using the pure-Go SQLite driver
// with WAL enabled so reads are not blocked by writes.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/dinesync/dinesync/internal/schema"
)

// SchemaVersion is the current schema version, kept in PRAGMA
// user_version. Upgrades only add missing tables and columns; they
// never drop existing data.
const SchemaVersion = 1

// ErrStorageUnavailable indicates the local persistence engine could
// not serve the request (database missing, locked out, or corrupt).
// Callers should degrade to remote-only operation rather than fail
// outright.
var ErrStorageUnavailable = errors.New("local storage unavailable")

// Store wraps the SQLite connection with typed accessors for the three
// record kinds.
type Store struct {
	conn *sql.DB
	path string
}

// Open creates a new store at the specified path.
//
// The parent directory is created if needed. The caller MUST call
// Close() when done.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: failed to create directory: %v", ErrStorageUnavailable, err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %v", ErrStorageUnavailable, err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: failed to ping database: %v", ErrStorageUnavailable, err)
	}

	s := &Store{
		conn: conn,
		path: path,
	}

	// WAL for concurrent reads, busy timeout so interleaved writers
	// wait instead of erroring.
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("%w: %s failed: %v", ErrStorageUnavailable, pragma, err)
		}
	}

	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection after checkpointing the WAL.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.conn = nil
	return nil
}

// InitSchema creates any missing tables and indexes and records the
// schema version. Idempotent: existing tables and their contents are
// left untouched, so version upgrades never destroy data.
func (s *Store) InitSchema(ctx context.Context) error {
	ddl := `
	CREATE TABLE IF NOT EXISTS restaurants (
		id              INTEGER PRIMARY KEY,
		name            TEXT NOT NULL,
		cuisine_type    TEXT NOT NULL,
		neighborhood    TEXT NOT NULL,
		address         TEXT NOT NULL DEFAULT '',
		lat             REAL NOT NULL DEFAULT 0,
		lng             REAL NOT NULL DEFAULT 0,
		operating_hours TEXT NOT NULL DEFAULT '{}',
		photograph      TEXT NOT NULL DEFAULT '',
		is_favorite     INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS reviews (
		local_id      INTEGER PRIMARY KEY AUTOINCREMENT,
		server_id     INTEGER UNIQUE,
		restaurant_id INTEGER NOT NULL,
		name          TEXT NOT NULL,
		rating        INTEGER NOT NULL,
		comments      TEXT NOT NULL,
		created_at    TEXT NOT NULL,
		updated_at    TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reviews_restaurant ON reviews(restaurant_id);

	CREATE TABLE IF NOT EXISTS pending_writes (
		seq             INTEGER PRIMARY KEY AUTOINCREMENT,
		kind            TEXT NOT NULL,
		restaurant_id   INTEGER NOT NULL,
		new_value       INTEGER NOT NULL DEFAULT 0,
		review_local_id INTEGER,
		attempts        INTEGER NOT NULL DEFAULT 0,
		queued_at       TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_pending_toggle
		ON pending_writes(restaurant_id) WHERE kind = 'favorite_toggle';
	`

	if _, err := s.conn.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("%w: failed to create schema: %v", ErrStorageUnavailable, err)
	}

	if _, err := s.conn.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version=%d", SchemaVersion)); err != nil {
		return fmt.Errorf("%w: failed to set schema version: %v", ErrStorageUnavailable, err)
	}

	return nil
}

// Version returns the stored schema version.
func (s *Store) Version(ctx context.Context) (int, error) {
	var v int
	if err := s.conn.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("%w: failed to read schema version: %v", ErrStorageUnavailable, err)
	}
	return v, nil
}

// ---- restaurants ----

// PutRestaurant inserts or updates a restaurant by id.
func (s *Store) PutRestaurant(ctx context.Context, r *schema.Restaurant) error {
	hoursJSON, err := json.Marshal(r.OperatingHours)
	if err != nil {
		return fmt.Errorf("failed to marshal operating hours: %w", err)
	}

	query := `
	INSERT INTO restaurants (
		id, name, cuisine_type, neighborhood, address,
		lat, lng, operating_hours, photograph, is_favorite
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		cuisine_type = excluded.cuisine_type,
		neighborhood = excluded.neighborhood,
		address = excluded.address,
		lat = excluded.lat,
		lng = excluded.lng,
		operating_hours = excluded.operating_hours,
		photograph = excluded.photograph,
		is_favorite = excluded.is_favorite
	`

	_, err = s.conn.ExecContext(ctx, query,
		r.ID,
		r.Name,
		r.CuisineType,
		r.Neighborhood,
		r.Address,
		r.LatLng.Lat,
		r.LatLng.Lng,
		string(hoursJSON),
		r.Photograph,
		boolToInt(bool(r.IsFavorite)),
	)
	if err != nil {
		return fmt.Errorf("%w: failed to upsert restaurant %d: %v", ErrStorageUnavailable, r.ID, err)
	}

	return nil
}

// ReplaceRestaurants replaces the entire restaurant table with the
// given snapshot in a single transaction. Restaurants are treated as
// append-mostly reference data, so a full replace on remote refresh is
// acceptable; queued favorite toggles are overlaid by the engine and
// survive the replace.
func (s *Store) ReplaceRestaurants(ctx context.Context, rs []*schema.Restaurant) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %v", ErrStorageUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM restaurants"); err != nil {
		return fmt.Errorf("%w: failed to clear restaurants: %v", ErrStorageUnavailable, err)
	}

	query := `
	INSERT INTO restaurants (
		id, name, cuisine_type, neighborhood, address,
		lat, lng, operating_hours, photograph, is_favorite
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	for _, r := range rs {
		hoursJSON, err := json.Marshal(r.OperatingHours)
		if err != nil {
			return fmt.Errorf("failed to marshal operating hours: %w", err)
		}
		_, err = tx.ExecContext(ctx, query,
			r.ID, r.Name, r.CuisineType, r.Neighborhood, r.Address,
			r.LatLng.Lat, r.LatLng.Lng, string(hoursJSON), r.Photograph,
			boolToInt(bool(r.IsFavorite)),
		)
		if err != nil {
			return fmt.Errorf("%w: failed to insert restaurant %d: %v", ErrStorageUnavailable, r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit restaurant replace: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// GetRestaurant returns the restaurant with the given id, or nil if it
// is not cached.
func (s *Store) GetRestaurant(ctx context.Context, id int64) (*schema.Restaurant, error) {
	query := `
	SELECT id, name, cuisine_type, neighborhood, address,
	       lat, lng, operating_hours, photograph, is_favorite
	FROM restaurants WHERE id = ?`

	r, err := scanRestaurant(s.conn.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get restaurant %d: %v", ErrStorageUnavailable, id, err)
	}
	return r, nil
}

// ListRestaurants returns all cached restaurants ordered by id.
func (s *Store) ListRestaurants(ctx context.Context) ([]*schema.Restaurant, error) {
	query := `
	SELECT id, name, cuisine_type, neighborhood, address,
	       lat, lng, operating_hours, photograph, is_favorite
	FROM restaurants ORDER BY id`

	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list restaurants: %v", ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var out []*schema.Restaurant
	for rows.Next() {
		r, err := scanRestaurant(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan restaurant: %v", ErrStorageUnavailable, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to iterate restaurants: %v", ErrStorageUnavailable, err)
	}
	return out, nil
}

// SetRestaurantFavorite updates only the is_favorite column, leaving
// the rest of the record as last fetched.
func (s *Store) SetRestaurantFavorite(ctx context.Context, id int64, value bool) error {
	_, err := s.conn.ExecContext(ctx,
		"UPDATE restaurants SET is_favorite = ? WHERE id = ?",
		boolToInt(value), id)
	if err != nil {
		return fmt.Errorf("%w: failed to set favorite for restaurant %d: %v", ErrStorageUnavailable, id, err)
	}
	return nil
}

// DeleteRestaurant removes a restaurant from the cache.
// Returns nil if the restaurant doesn't exist (idempotent).
func (s *Store) DeleteRestaurant(ctx context.Context, id int64) error {
	_, err := s.conn.ExecContext(ctx, "DELETE FROM restaurants WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("%w: failed to delete restaurant %d: %v", ErrStorageUnavailable, id, err)
	}
	return nil
}

// RestaurantCount returns the number of cached restaurants.
func (s *Store) RestaurantCount(ctx context.Context) (int, error) {
	var n int
	if err := s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM restaurants").Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: failed to count restaurants: %v", ErrStorageUnavailable, err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRestaurant(row rowScanner) (*schema.Restaurant, error) {
	var (
		r         schema.Restaurant
		hoursJSON string
		fav       int
	)
	err := row.Scan(
		&r.ID,
		&r.Name,
		&r.CuisineType,
		&r.Neighborhood,
		&r.Address,
		&r.LatLng.Lat,
		&r.LatLng.Lng,
		&hoursJSON,
		&r.Photograph,
		&fav,
	)
	if err != nil {
		return nil, err
	}
	if hoursJSON != "" && hoursJSON != "null" {
		if err := json.Unmarshal([]byte(hoursJSON), &r.OperatingHours); err != nil {
			return nil, fmt.Errorf("failed to unmarshal operating hours: %w", err)
		}
	}
	r.IsFavorite = schema.Favorite(fav != 0)
	return &r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
