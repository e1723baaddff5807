package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dinesync/dinesync/internal/query"
	"github.com/dinesync/dinesync/internal/schema"
)

var (
	listCuisine      string
	listNeighborhood string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List restaurants from the synchronized dataset",
	Long: `List restaurants, served from the local cache when populated and
from the API otherwise. Queued favorite toggles are applied on top, so
the listing always reflects your latest edits, confirmed or not.`,
	Run: func(cmd *cobra.Command, args []string) {
		env, cleanup := openEnv(cmd)
		defer cleanup()

		restaurants, err := env.engine.FetchRestaurants(cmd.Context())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error fetching restaurants: %v\n", err)
			os.Exit(1)
		}

		filtered := query.ByCuisineAndNeighborhood(restaurants, listCuisine, listNeighborhood)
		for _, r := range filtered {
			printRestaurant(r)
		}
		fmt.Printf("%d restaurants", len(filtered))
		if cuisines := query.Cuisines(restaurants); listCuisine == query.Wildcard {
			fmt.Printf(" (cuisines: %s)", strings.Join(cuisines, ", "))
		}
		fmt.Println()
	},
}

var showCmd = &cobra.Command{
	Use:   "show <restaurant-id>",
	Short: "Show one restaurant and its reviews",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid restaurant id %q\n", args[0])
			os.Exit(1)
		}

		env, cleanup := openEnv(cmd)
		defer cleanup()

		r, err := env.engine.FetchRestaurant(cmd.Context(), id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		printRestaurant(r)

		reviews, err := env.engine.FetchReviews(cmd.Context(), id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: reviews unavailable: %v\n", err)
			return
		}
		for _, rev := range reviews {
			marker := ""
			if !rev.Confirmed() {
				marker = " (pending sync)"
			}
			fmt.Printf("  [%d/5] %s%s: %s\n", rev.Rating, rev.Name, marker, rev.Comments)
		}
	},
}

func printRestaurant(r *schema.Restaurant) {
	fav := " "
	if r.IsFavorite {
		fav = "*"
	}
	fmt.Printf("%s %4d  %-30s %-12s %s\n", fav, r.ID, r.Name, r.CuisineType, r.Neighborhood)
}

func init() {
	listCmd.Flags().StringVar(&listCuisine, "cuisine", query.Wildcard, "filter by cuisine type")
	listCmd.Flags().StringVar(&listNeighborhood, "neighborhood", query.Wildcard, "filter by neighborhood")
}
