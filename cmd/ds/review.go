package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dinesync/dinesync/internal/schema"
)

var (
	reviewName     string
	reviewRating   int
	reviewComments string
)

var reviewCmd = &cobra.Command{
	Use:   "review <restaurant-id>",
	Short: "Submit a review for a restaurant",
	Long: `Submit a review. Online, the review goes straight to the API;
offline it is queued and shown as pending until the next sync.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid restaurant id %q\n", args[0])
			os.Exit(1)
		}

		env, cleanup := openEnv(cmd)
		defer cleanup()

		review := &schema.Review{
			RestaurantID: id,
			Name:         reviewName,
			Rating:       reviewRating,
			Comments:     reviewComments,
		}

		saved, err := env.engine.SubmitReview(cmd.Context(), review)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error submitting review: %v\n", err)
			os.Exit(1)
		}

		if saved.Confirmed() {
			fmt.Printf("Review %d submitted\n", saved.ID)
		} else {
			fmt.Println("Review queued, will sync when online")
		}
	},
}

func init() {
	reviewCmd.Flags().StringVar(&reviewName, "name", "", "reviewer name (required)")
	reviewCmd.Flags().IntVar(&reviewRating, "rating", 0, "rating from 1 to 5 (required)")
	reviewCmd.Flags().StringVar(&reviewComments, "comments", "", "review text (required)")
	_ = reviewCmd.MarkFlagRequired("name")
	_ = reviewCmd.MarkFlagRequired("rating")
	_ = reviewCmd.MarkFlagRequired("comments")
}
