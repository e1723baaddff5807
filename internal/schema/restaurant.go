// Package schema defines the record types shared by the local store,
// remote gateway, and sync engine.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// LatLng is a geographic coordinate pair for a restaurant location.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Favorite is a bool that tolerates the API's string encoding.
// Some server responses serialize is_favorite as "true"/"false"
// rather than a JSON boolean.
type Favorite bool

// UnmarshalJSON accepts true, false, "true" and "false".
func (f *Favorite) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	switch string(data) {
	case "true":
		*f = true
	case "false", "null", "undefined", "":
		*f = false
	default:
		return fmt.Errorf("invalid is_favorite value: %s", data)
	}
	return nil
}

// MarshalJSON always emits a JSON boolean.
func (f Favorite) MarshalJSON() ([]byte, error) {
	return json.Marshal(bool(f))
}

// Restaurant is the canonical listing record.
//
// Records are owned by the local store and refreshed wholesale from the
// remote API. IsFavorite may be mutated locally ahead of remote
// confirmation; the sync engine overlays any queued toggle on top of
// the stored value when computing what the caller sees.
type Restaurant struct {
	ID             int64             `json:"id"`
	Name           string            `json:"name"`
	CuisineType    string            `json:"cuisine_type"`
	Neighborhood   string            `json:"neighborhood"`
	Address        string            `json:"address,omitempty"`
	LatLng         LatLng            `json:"latlng"`
	OperatingHours map[string]string `json:"operating_hours,omitempty"`
	Photograph     string            `json:"photograph,omitempty"`
	IsFavorite     Favorite          `json:"is_favorite"`
}

// Validate checks if the Restaurant has valid field values.
func (r *Restaurant) Validate() error {
	if r.ID <= 0 {
		return &ValidationError{Field: "id", Reason: "must be a positive integer"}
	}
	if r.Name == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}
	if r.CuisineType == "" {
		return &ValidationError{Field: "cuisine_type", Reason: "is required"}
	}
	if r.Neighborhood == "" {
		return &ValidationError{Field: "neighborhood", Reason: "is required"}
	}
	return nil
}
