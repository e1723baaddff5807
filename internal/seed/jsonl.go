// Package seed imports and exports restaurant records as JSONL,
// letting a deployment bootstrap its local cache without reaching the
// remote API.
package seed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dinesync/dinesync/internal/schema"
	"github.com/dinesync/dinesync/internal/store"
)

// Import reads one restaurant record per line from a JSONL file and
// upserts them into the store. Returns the number of records imported.
//
// Invalid lines abort the import: a seed file is authored, not
// streamed, so a malformed record means the file is wrong.
func Import(ctx context.Context, st *store.Store, path string) (int, error) {
	// #nosec G304 - controlled path from CLI
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	count := 0

	for {
		var r schema.Restaurant
		if err := decoder.Decode(&r); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return count, fmt.Errorf("invalid JSON at record %d: %w", count+1, err)
		}

		if err := r.Validate(); err != nil {
			return count, fmt.Errorf("invalid record %d: %w", count+1, err)
		}

		if err := st.PutRestaurant(ctx, &r); err != nil {
			return count, fmt.Errorf("failed to store record %d: %w", count+1, err)
		}
		count++
	}

	return count, nil
}

// Export writes all cached restaurants to a JSONL file, one record per
// line. Returns the number of records written.
func Export(ctx context.Context, st *store.Store, path string) (int, error) {
	restaurants, err := st.ListRestaurants(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read restaurants: %w", err)
	}

	// #nosec G304 - controlled path from CLI
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create export file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	for i, r := range restaurants {
		if err := encoder.Encode(r); err != nil {
			return i, fmt.Errorf("failed to write record %d: %w", i+1, err)
		}
	}

	if err := file.Sync(); err != nil {
		return len(restaurants), fmt.Errorf("failed to sync export file: %w", err)
	}

	return len(restaurants), nil
}
