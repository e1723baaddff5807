package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Drain the pending-write queue now",
	Long: `Replay queued favorite toggles and review submissions against the
API in order. Stops at the first transient network failure; rejected
writes are abandoned and reported.`,
	Run: func(cmd *cobra.Command, args []string) {
		env, cleanup := openEnv(cmd)
		defer cleanup()

		before, err := env.engine.Status(cmd.Context())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading status: %v\n", err)
			os.Exit(1)
		}
		if before.Pending == 0 {
			fmt.Println("Nothing to sync")
			return
		}

		if err := env.engine.Drain(cmd.Context()); err != nil {
			fmt.Fprintf(os.Stderr, "Sync halted: %v\n", err)
			os.Exit(1)
		}

		after, err := env.engine.Status(cmd.Context())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading status: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Synced %d writes, %d remaining\n", before.Pending-after.Pending, after.Pending)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cache and queue status",
	Run: func(cmd *cobra.Command, args []string) {
		env, cleanup := openEnv(cmd)
		defer cleanup()

		status, err := env.engine.Status(cmd.Context())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading status: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Database:       %s\n", env.cfg.DBPath)
		if status.Degraded {
			fmt.Println("Local storage:  UNAVAILABLE (remote-only mode)")
			return
		}
		fmt.Printf("Restaurants:    %d\n", status.Restaurants)
		fmt.Printf("Reviews:        %d\n", status.Reviews)
		fmt.Printf("Pending writes: %d\n", status.Pending)
	},
}
