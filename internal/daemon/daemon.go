// Package daemon runs the background sync process.
//
// The daemon:
//  1. Warms the local cache with an initial read
//  2. Tracks connectivity and drains the pending queue on every
//     settled transition to online
//  3. Periodically drains as a safety net for missed edges
//  4. Optionally broadcasts sync events to a dashboard
//  5. Handles graceful shutdown
package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dinesync/dinesync/internal/connectivity"
	"github.com/dinesync/dinesync/internal/dashboard"
	"github.com/dinesync/dinesync/internal/engine"
)

// Config holds configuration for the daemon.
type Config struct {
	// DrainInterval is how often to attempt a drain regardless of
	// connectivity edges.
	DrainInterval time.Duration

	// StatusInterval is how often to broadcast a status summary when a
	// dashboard is attached.
	StatusInterval time.Duration

	// LogFile, when set, routes daemon logs to a size-rotated file
	// instead of stderr.
	LogFile string

	// Logger for daemon activity. Overridden by LogFile.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DrainInterval:  time.Minute,
		StatusInterval: 10 * time.Second,
		Logger:         log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon orchestrates the connectivity monitor, sync engine, and
// optional dashboard.
type Daemon struct {
	engine  *engine.Engine
	monitor *connectivity.Monitor
	dash    *dashboard.Server // may be nil
	config  *Config

	abandoned atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Daemon. The dashboard may be nil.
func New(eng *engine.Engine, mon *connectivity.Monitor, dash *dashboard.Server, config *Config) (*Daemon, error) {
	if eng == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if mon == nil {
		return nil, fmt.Errorf("monitor cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = DefaultConfig().Logger
	}
	if config.LogFile != "" {
		config.Logger = log.New(&lumberjack.Logger{
			Filename:   config.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}, "[daemon] ", log.LstdFlags)
	}
	if config.DrainInterval <= 0 {
		config.DrainInterval = DefaultConfig().DrainInterval
	}
	if config.StatusInterval <= 0 {
		config.StatusInterval = DefaultConfig().StatusInterval
	}

	return &Daemon{
		engine:  eng,
		monitor: mon,
		dash:    dash,
		config:  config,
	}, nil
}

// Start begins the daemon's operation. Blocks until ctx is cancelled.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Println("Starting daemon")
	d.ctx, d.cancel = context.WithCancel(ctx)

	// Warm the cache so the first offline read has data to serve. A
	// failure here is not fatal: the remote may simply be down.
	if _, err := d.engine.FetchRestaurants(d.ctx); err != nil {
		d.config.Logger.Printf("Warning: initial fetch failed: %v", err)
	}

	d.monitor.OnOnline(d.onOnline)
	d.monitor.OnOffline(d.onOffline)

	if err := d.monitor.Start(d.ctx); err != nil {
		return fmt.Errorf("failed to start connectivity monitor: %w", err)
	}

	d.wg.Add(1)
	go d.drainLoop()

	if d.dash != nil {
		d.wg.Add(1)
		go d.statusLoop()
	}

	<-d.ctx.Done()
	return d.Stop()
}

// Stop gracefully shuts down the daemon.
func (d *Daemon) Stop() error {
	d.config.Logger.Println("Stopping daemon")

	d.cancel()
	d.monitor.Stop()
	d.wg.Wait()

	d.config.Logger.Println("Daemon stopped")
	return nil
}

// onOnline handles a settled transition to online.
func (d *Daemon) onOnline() {
	d.engine.SetOnline(true)
	if d.dash != nil {
		d.dash.Broadcast(dashboard.MessageTypeConnectivity, dashboard.ConnectivityData{Online: true})
	}
	d.drain("online transition")
}

// onOffline handles a transition to offline.
func (d *Daemon) onOffline() {
	d.engine.SetOnline(false)
	if d.dash != nil {
		d.dash.Broadcast(dashboard.MessageTypeConnectivity, dashboard.ConnectivityData{Online: false})
	}
}

// drainLoop periodically retries the queue while online.
func (d *Daemon) drainLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.DrainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			if d.engine.Online() {
				d.drain("periodic")
			}
		}
	}
}

// drain runs one drain pass and broadcasts the outcome. Abandoned
// writes are counted through BroadcastSyncFailure and subtracted from
// the queue delta so Applied reflects only confirmed writes.
func (d *Daemon) drain(reason string) {
	before, _ := d.engine.Status(d.ctx)
	abandonedBefore := d.abandoned.Load()

	start := time.Now()
	err := d.engine.Drain(d.ctx)
	if err != nil {
		d.config.Logger.Printf("Drain (%s) halted: %v", reason, err)
	}

	if d.dash == nil || before == nil {
		return
	}

	after, statusErr := d.engine.Status(d.ctx)
	if statusErr != nil {
		return
	}

	abandoned := int(d.abandoned.Load() - abandonedBefore)
	applied := before.Pending - after.Pending - abandoned
	if applied < 0 {
		applied = 0
	}
	d.dash.Broadcast(dashboard.MessageTypeDrainComplete, dashboard.DrainCompleteData{
		Applied:   applied,
		Abandoned: abandoned,
		Remaining: after.Pending,
		Halted:    err != nil,
		Duration:  time.Since(start),
	})
}

// statusLoop periodically broadcasts a dataset summary.
func (d *Daemon) statusLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.StatusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			status, err := d.engine.Status(d.ctx)
			if err != nil {
				d.config.Logger.Printf("Status read failed: %v", err)
				continue
			}
			d.dash.Broadcast(dashboard.MessageTypeStatus, status)
		}
	}
}

// BroadcastSyncFailure forwards a permanently failed write to the
// dashboard. Intended as the engine's OnSyncFailed callback.
func (d *Daemon) BroadcastSyncFailure(f engine.SyncFailure) {
	d.abandoned.Add(1)
	d.config.Logger.Printf("Abandoned %s for restaurant %d: %v", f.Write.Kind, f.Write.RestaurantID, f.Err)
	if d.dash != nil {
		d.dash.Broadcast(dashboard.MessageTypeSyncFailed, dashboard.SyncFailedData{
			Kind:         string(f.Write.Kind),
			RestaurantID: f.Write.RestaurantID,
			Reason:       f.Err.Error(),
		})
	}
}
