package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

var favoriteCmd = &cobra.Command{
	Use:   "favorite <restaurant-id>",
	Short: "Toggle a restaurant's favorite flag",
	Long: `Toggle a restaurant's favorite flag. The change is applied to the
local cache immediately and synced to the API; while offline it is
queued durably and replayed on the next sync.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid restaurant id %q\n", args[0])
			os.Exit(1)
		}

		env, cleanup := openEnv(cmd)
		defer cleanup()

		value, err := env.engine.ToggleFavorite(cmd.Context(), id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error toggling favorite: %v\n", err)
			os.Exit(1)
		}

		if value {
			fmt.Printf("Restaurant %d is now a favorite\n", id)
		} else {
			fmt.Printf("Restaurant %d is no longer a favorite\n", id)
		}
	},
}
