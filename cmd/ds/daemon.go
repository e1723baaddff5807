package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dinesync/dinesync/internal/connectivity"
	"github.com/dinesync/dinesync/internal/daemon"
	"github.com/dinesync/dinesync/internal/dashboard"
)

var daemonDashboardPort int

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the background sync daemon",
	Long: `Run the sync daemon: watches connectivity, drains the pending queue
on every transition to online (and periodically as a safety net), and
optionally serves a live status dashboard over WebSocket.`,
	Run: func(cmd *cobra.Command, args []string) {
		runDaemon(cmd)
	},
}

func init() {
	daemonCmd.Flags().IntVar(&daemonDashboardPort, "dashboard-port", 0,
		"serve the status dashboard on this port (overrides config)")
}

func runDaemon(cmd *cobra.Command) {
	env, cleanup := openEnv(cmd)
	defer cleanup()
	cfg := env.cfg
	if daemonDashboardPort > 0 {
		cfg.DashboardPort = daemonDashboardPort
	}

	var dash *dashboard.Server
	if cfg.DashboardPort > 0 {
		dash = dashboard.NewServer(&dashboard.Config{Port: cfg.DashboardPort})
		if err := dash.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Error starting dashboard: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = dash.Stop() }()
	}

	monitor := connectivity.New(&connectivity.Config{
		Probe:         probeFor(cfg.ProbeURL),
		ProbeInterval: cfg.ProbeInterval,
		Debounce:      cfg.Debounce,
		NetstateFile:  cfg.NetstateFile,
	})

	d, err := daemon.New(env.engine, monitor, dash, &daemon.Config{
		DrainInterval: cfg.DrainInterval,
		LogFile:       cfg.LogFile,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating daemon: %v\n", err)
		os.Exit(1)
	}

	// The daemon owns failure reporting once it is up.
	env.engine.SetOnSyncFailed(d.BroadcastSyncFailure)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := d.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Daemon error: %v\n", err)
		os.Exit(1)
	}
}

// probeFor builds a connectivity probe that treats any HTTP response,
// even an error status, as proof of reachability.
func probeFor(url string) connectivity.Probe {
	if url == "" {
		return nil
	}
	client := &http.Client{Timeout: 5 * time.Second}
	return func(ctx context.Context) bool {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
		if err != nil {
			return false
		}
		resp, err := client.Do(req)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return true
	}
}
