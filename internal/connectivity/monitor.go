// Package connectivity tracks online/offline transitions and notifies
// subscribers once per edge.
//
// Signals come from three places, any of which may be wired:
//   - Set, for a host environment that already knows its state;
//   - an optional probe function polled on an interval;
//   - an optional netstate override file ("online"/"offline") watched
//     with fsnotify, letting an operator force offline mode.
//
// Online edges are debounced: rapid offline/online flapping collapses
// into a single notification, so subscribers (the sync engine's drain)
// are triggered at most once per settled transition.
package connectivity

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Probe reports whether the remote is reachable right now.
type Probe func(ctx context.Context) bool

// Config holds monitor configuration.
type Config struct {
	// Probe is polled every ProbeInterval when non-nil.
	Probe Probe

	// ProbeInterval is how often to poll the probe (default 30s).
	ProbeInterval time.Duration

	// Debounce is how long the state must hold before an online edge
	// is delivered (default 500ms).
	Debounce time.Duration

	// NetstateFile, when set, is watched for the words "online" or
	// "offline". The file's contents override probe results until it
	// is removed.
	NetstateFile string

	// Logger for monitor activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ProbeInterval: 30 * time.Second,
		Debounce:      500 * time.Millisecond,
		Logger:        log.New(os.Stderr, "[monitor] ", log.LstdFlags),
	}
}

// Monitor tracks connectivity state and fans out edge notifications.
type Monitor struct {
	config *Config

	mu        sync.Mutex
	online    bool
	forced    *bool // netstate file override, nil when absent
	running   bool
	onOnline  []func()
	onOffline []func()
	timer     *time.Timer // pending debounced online notification

	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a Monitor. The initial state is offline until a signal
// says otherwise.
func New(config *Config) *Monitor {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[monitor] ", log.LstdFlags)
	}
	if config.ProbeInterval <= 0 {
		config.ProbeInterval = DefaultConfig().ProbeInterval
	}
	if config.Debounce <= 0 {
		config.Debounce = DefaultConfig().Debounce
	}
	return &Monitor{config: config}
}

// OnOnline registers a callback fired once per settled offline-to-online
// transition. Must be called before Start.
func (m *Monitor) OnOnline(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onOnline = append(m.onOnline, fn)
}

// OnOffline registers a callback fired once per online-to-offline
// transition. Must be called before Start.
func (m *Monitor) OnOffline(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onOffline = append(m.onOffline, fn)
}

// Online reports the current settled state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Set records a connectivity signal from the host environment.
func (m *Monitor) Set(online bool) {
	m.mu.Lock()
	if m.forced != nil && *m.forced != online {
		// Netstate override wins over host signals.
		m.mu.Unlock()
		return
	}
	m.transitionLocked(online)
	m.mu.Unlock()
}

// Start begins background probing and netstate watching. It returns
// immediately; Stop must be called to release resources.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("monitor already running")
	}
	m.running = true
	m.mu.Unlock()

	ctx, m.cancel = context.WithCancel(ctx)

	if m.config.NetstateFile != "" {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("failed to create netstate watcher: %w", err)
		}
		// Watch the directory: editors and operators often replace the
		// file rather than write it in place.
		if err := watcher.Add(filepath.Dir(m.config.NetstateFile)); err != nil {
			_ = watcher.Close()
			return fmt.Errorf("failed to watch netstate directory: %w", err)
		}
		m.watcher = watcher
		m.applyNetstateFile()

		m.wg.Add(1)
		go m.watchNetstate(ctx)
	}

	if m.config.Probe != nil {
		m.wg.Add(1)
		go m.probeLoop(ctx)
	}

	return nil
}

// Stop shuts down the monitor and waits for its goroutines.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.mu.Unlock()

	if m.cancel != nil {
		m.cancel()
	}
	if m.watcher != nil {
		_ = m.watcher.Close()
	}
	m.wg.Wait()
}

// transitionLocked applies a state change and schedules notifications.
// Caller holds m.mu.
func (m *Monitor) transitionLocked(online bool) {
	if online == m.online {
		return
	}
	m.online = online

	if !online {
		// Going offline cancels any not-yet-delivered online edge, so
		// a flap inside the debounce window delivers nothing.
		if m.timer != nil {
			m.timer.Stop()
			m.timer = nil
		}
		m.config.Logger.Println("Transition: offline")
		for _, fn := range m.onOffline {
			go fn()
		}
		return
	}

	m.config.Logger.Println("Transition: online (debouncing)")
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.config.Debounce, m.fireOnline)
}

// fireOnline delivers the debounced online edge if the state held.
func (m *Monitor) fireOnline() {
	m.mu.Lock()
	if !m.online {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	callbacks := make([]func(), len(m.onOnline))
	copy(callbacks, m.onOnline)
	m.mu.Unlock()

	m.config.Logger.Println("Transition: online")
	for _, fn := range callbacks {
		fn()
	}
}

// probeLoop polls the probe on an interval.
func (m *Monitor) probeLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			online := m.config.Probe(ctx)
			m.Set(online)
		}
	}
}

// watchNetstate reacts to changes of the override file.
func (m *Monitor) watchNetstate(ctx context.Context) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(m.config.NetstateFile) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			m.applyNetstateFile()

		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.config.Logger.Printf("Netstate watcher error: %v", err)
		}
	}
}

// applyNetstateFile reads the override file and applies it. A missing
// file clears the override.
func (m *Monitor) applyNetstateFile() {
	data, err := os.ReadFile(m.config.NetstateFile)
	if err != nil {
		m.mu.Lock()
		m.forced = nil
		m.mu.Unlock()
		return
	}

	var online bool
	switch strings.TrimSpace(string(data)) {
	case "online":
		online = true
	case "offline":
		online = false
	default:
		m.config.Logger.Printf("Ignoring netstate file with unknown contents %q", strings.TrimSpace(string(data)))
		return
	}

	m.mu.Lock()
	m.forced = &online
	m.transitionLocked(online)
	m.mu.Unlock()
}
