package schema

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestFavoriteUnmarshal(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{`true`, true},
		{`false`, false},
		{`"true"`, true},
		{`"false"`, false},
		{`""`, false},
	}

	for _, tc := range cases {
		var f Favorite
		if err := json.Unmarshal([]byte(tc.in), &f); err != nil {
			t.Errorf("Unmarshal(%s) failed: %v", tc.in, err)
			continue
		}
		if bool(f) != tc.want {
			t.Errorf("Unmarshal(%s) = %v, want %v", tc.in, f, tc.want)
		}
	}

	var f Favorite
	if err := json.Unmarshal([]byte(`"maybe"`), &f); err == nil {
		t.Error("expected error for invalid favorite value")
	}
}

func TestFavoriteMarshal(t *testing.T) {
	data, err := json.Marshal(Favorite(true))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != "true" {
		t.Errorf("Marshal = %s, want true", data)
	}
}

func TestRestaurantUnmarshalStringFavorite(t *testing.T) {
	// The API serializes is_favorite as a string in some responses.
	raw := `{"id": 3, "name": "Kang Ho Dong Baekjeong", "cuisine_type": "Asian",
		"neighborhood": "Manhattan", "is_favorite": "true"}`

	var r Restaurant
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !r.IsFavorite {
		t.Error("expected is_favorite to be true")
	}
	if err := r.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestReviewValidate(t *testing.T) {
	valid := Review{
		RestaurantID: 7,
		Name:         "A",
		Rating:       5,
		Comments:     "Great",
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid review rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Review)
	}{
		{"missing restaurant", func(r *Review) { r.RestaurantID = 0 }},
		{"missing name", func(r *Review) { r.Name = "" }},
		{"rating too low", func(r *Review) { r.Rating = 0 }},
		{"rating too high", func(r *Review) { r.Rating = 6 }},
		{"empty comments", func(r *Review) { r.Comments = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := valid
			tc.mutate(&r)
			err := r.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("expected *ValidationError, got %T", err)
			}
		})
	}
}

func TestReviewConfirmed(t *testing.T) {
	r := Review{}
	if r.Confirmed() {
		t.Error("review without id should be unconfirmed")
	}
	r.ID = 12
	if !r.Confirmed() {
		t.Error("review with id should be confirmed")
	}
}
