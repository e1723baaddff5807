// Package query derives filtered views over the synchronized
// restaurant dataset.
//
// All functions are pure: they consume an already-synced slice from
// the engine and perform no I/O. The wildcard "all" bypasses a filter,
// matching the filter widgets in the listing UI.
package query

import "github.com/dinesync/dinesync/internal/schema"

// Wildcard bypasses a cuisine or neighborhood filter.
const Wildcard = "all"

// ByID returns the restaurant with the given id, or nil.
func ByID(restaurants []*schema.Restaurant, id int64) *schema.Restaurant {
	for _, r := range restaurants {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// ByCuisine returns restaurants of the given cuisine type.
func ByCuisine(restaurants []*schema.Restaurant, cuisine string) []*schema.Restaurant {
	return ByCuisineAndNeighborhood(restaurants, cuisine, Wildcard)
}

// ByNeighborhood returns restaurants in the given neighborhood.
func ByNeighborhood(restaurants []*schema.Restaurant, neighborhood string) []*schema.Restaurant {
	return ByCuisineAndNeighborhood(restaurants, Wildcard, neighborhood)
}

// ByCuisineAndNeighborhood filters by both dimensions. Either argument
// may be Wildcard to skip that filter.
func ByCuisineAndNeighborhood(restaurants []*schema.Restaurant, cuisine, neighborhood string) []*schema.Restaurant {
	out := make([]*schema.Restaurant, 0, len(restaurants))
	for _, r := range restaurants {
		if cuisine != Wildcard && r.CuisineType != cuisine {
			continue
		}
		if neighborhood != Wildcard && r.Neighborhood != neighborhood {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Cuisines returns the distinct cuisine types in first-occurrence
// order.
func Cuisines(restaurants []*schema.Restaurant) []string {
	set := newOrderedSet()
	for _, r := range restaurants {
		set.add(r.CuisineType)
	}
	return set.items
}

// Neighborhoods returns the distinct neighborhoods in first-occurrence
// order.
func Neighborhoods(restaurants []*schema.Restaurant) []string {
	set := newOrderedSet()
	for _, r := range restaurants {
		set.add(r.Neighborhood)
	}
	return set.items
}

// orderedSet dedups strings while preserving first-occurrence order.
type orderedSet struct {
	seen  map[string]struct{}
	items []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]struct{})}
}

func (s *orderedSet) add(v string) {
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
}
