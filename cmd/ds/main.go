// Command ds is the dinesync CLI: a local-first client for the
// restaurant listings API with an offline pending-write queue.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dinesync/dinesync/internal/config"
	"github.com/dinesync/dinesync/internal/engine"
	"github.com/dinesync/dinesync/internal/remote"
	"github.com/dinesync/dinesync/internal/store"
)

var (
	cfgFile string
	offline bool
)

var rootCmd = &cobra.Command{
	Use:   "ds",
	Short: "Local-first restaurant listings client",
	Long: `dinesync keeps a durable local cache of restaurant listings and
reviews, queues favorite toggles and review submissions made while
offline, and replays them against the API once connectivity returns.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./dinesync.yaml)")
	rootCmd.PersistentFlags().BoolVar(&offline, "offline", false, "treat the network as unavailable")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(favoriteCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
}

// cliEnv bundles the dependencies a one-shot command needs.
type cliEnv struct {
	cfg    *config.Config
	store  *store.Store // nil when local storage is unavailable
	engine *engine.Engine
}

// openEnv loads config and wires the store, gateway, and engine.
// A failed store open degrades to remote-only mode instead of
// aborting; the returned cleanup must always be called.
func openEnv(cmd *cobra.Command) (*cliEnv, func()) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v (continuing remote-only)\n", err)
		st = nil
	} else if err := st.InitSchema(cmd.Context()); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v (continuing remote-only)\n", err)
		_ = st.Close()
		st = nil
	}

	gw := remote.New(cfg.APIBaseURL)
	eng := engine.New(st, gw, &engine.Config{
		MaxAttempts: cfg.MaxAttempts,
		OnSyncFailed: func(f engine.SyncFailure) {
			fmt.Fprintf(os.Stderr, "Sync failed permanently: %s for restaurant %d: %v\n",
				f.Write.Kind, f.Write.RestaurantID, f.Err)
		},
	})
	// One-shot commands assume the network is there and let the
	// failure paths sort it out; --offline skips the attempt entirely.
	eng.SetOnline(!offline)

	cleanup := func() {
		if st != nil {
			_ = st.Close()
		}
	}
	return &cliEnv{cfg: cfg, store: st, engine: eng}, cleanup
}
