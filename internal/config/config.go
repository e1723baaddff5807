// Package config loads dinesync configuration from file, environment,
// and defaults.
//
// Lookup order: explicit file path, then dinesync.yaml in the working
// directory or $HOME/.config/dinesync, then DINESYNC_* environment
// variables, then defaults. A missing config file is not an error.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the resolved runtime configuration.
type Config struct {
	// APIBaseURL is the canonical restaurant API,
	// e.g. "http://localhost:1337".
	APIBaseURL string `mapstructure:"api_base_url"`

	// DBPath is the local SQLite cache location.
	DBPath string `mapstructure:"db_path"`

	// ProbeURL is polled to detect connectivity. Empty disables the
	// probe (the daemon then relies on manual signals and the
	// netstate file).
	ProbeURL string `mapstructure:"probe_url"`

	// NetstateFile optionally overrides connectivity ("online" or
	// "offline").
	NetstateFile string `mapstructure:"netstate_file"`

	ProbeInterval time.Duration `mapstructure:"probe_interval"`
	DrainInterval time.Duration `mapstructure:"drain_interval"`
	Debounce      time.Duration `mapstructure:"debounce"`

	// MaxAttempts is the retry budget per queued write.
	MaxAttempts int `mapstructure:"max_attempts"`

	// DashboardPort serves the sync dashboard when > 0.
	DashboardPort int `mapstructure:"dashboard_port"`

	// LogFile routes daemon logs to a rotated file when set.
	LogFile string `mapstructure:"log_file"`
}

// Load resolves configuration. path may be empty to use the default
// search locations.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("api_base_url", "http://localhost:1337")
	v.SetDefault("db_path", ".dinesync/cache.db")
	v.SetDefault("probe_url", "")
	v.SetDefault("netstate_file", "")
	v.SetDefault("probe_interval", 30*time.Second)
	v.SetDefault("drain_interval", time.Minute)
	v.SetDefault("debounce", 500*time.Millisecond)
	v.SetDefault("max_attempts", 5)
	v.SetDefault("dashboard_port", 0)
	v.SetDefault("log_file", "")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("dinesync")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/dinesync")
	}

	v.SetEnvPrefix("DINESYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.APIBaseURL == "" {
		return nil, fmt.Errorf("api_base_url cannot be empty")
	}
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db_path cannot be empty")
	}

	return &cfg, nil
}
