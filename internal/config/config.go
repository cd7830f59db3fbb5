// Package config loads the repository-level configuration for the status
// core. Settings come from .wptrack/config.yaml in the repository (or the
// user config directory), with WPTRACK_* environment variables layered on
// top via viper. The core treats all of this as read-only input.
package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config represents the complete wptrack configuration.
type Config struct {
	Status    StatusConfig    `mapstructure:"status"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// StatusConfig controls the migration phase machinery.
type StatusConfig struct {
	// Phase is the repository-wide operating phase:
	// 0 hardening, 1 dual-write, 2 read-cutover.
	Phase int `mapstructure:"phase"`
	// GroupOverrides maps a unit-group prefix (e.g. "WP1") to a phase that
	// takes precedence over the repository setting for units in that group.
	GroupOverrides map[string]int `mapstructure:"group_overrides"`
	// ReleaseChannel identifies the deployment line this checkout runs on.
	ReleaseChannel string `mapstructure:"release_channel"`
	// TrustedChannels lists release channels allowed to run at any
	// configured phase. Other channels are capped at read-cutover.
	TrustedChannels []string `mapstructure:"trusted_channels"`
}

// TelemetryConfig controls the best-effort status fan-out.
type TelemetryConfig struct {
	// Enabled controls whether emissions are forwarded at all (default: true).
	Enabled bool `mapstructure:"enabled"`
	// Endpoint is the collector URL. Empty disables forwarding without
	// disabling the in-process bus.
	Endpoint string `mapstructure:"endpoint"`
	// TimeoutMs bounds a single collector POST (default: 2000).
	TimeoutMs int `mapstructure:"timeout_ms"`
}

// LoggingConfig controls debug logging behavior.
type LoggingConfig struct {
	// Enabled controls whether debug logging is enabled (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
}

// Default returns the built-in configuration. The default phase is
// dual-write: the canonical log is authoritative and the legacy views are
// kept in sync on every emission.
func Default() *Config {
	return &Config{
		Status: StatusConfig{
			Phase:           1,
			GroupOverrides:  map[string]int{},
			ReleaseChannel:  "stable",
			TrustedChannels: []string{"stable"},
		},
		Telemetry: TelemetryConfig{
			Enabled:   true,
			Endpoint:  "",
			TimeoutMs: 2000,
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   "info",
		},
	}
}

// SetDefaults registers default values with viper.
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("status.phase", defaults.Status.Phase)
	viper.SetDefault("status.group_overrides", defaults.Status.GroupOverrides)
	viper.SetDefault("status.release_channel", defaults.Status.ReleaseChannel)
	viper.SetDefault("status.trusted_channels", defaults.Status.TrustedChannels)

	viper.SetDefault("telemetry.enabled", defaults.Telemetry.Enabled)
	viper.SetDefault("telemetry.endpoint", defaults.Telemetry.Endpoint)
	viper.SetDefault("telemetry.timeout_ms", defaults.Telemetry.TimeoutMs)

	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
}

// Load reads the configuration from viper into a Config struct and
// validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return &cfg, nil
}

// Get returns the current configuration, falling back to defaults if
// unmarshaling fails.
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// IsTrustedChannel reports whether the configured release channel is in the
// trusted set. Untrusted channels are capped at read-cutover by the phase
// resolver.
func (c *Config) IsTrustedChannel() bool {
	for _, ch := range c.Status.TrustedChannels {
		if ch == c.Status.ReleaseChannel {
			return true
		}
	}
	return false
}

// ConfigDir returns the path to the user's config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "wptrack")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".wptrack"
	}
	return filepath.Join(home, ".config", "wptrack")
}

// ConfigFile returns the path to the user config file.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
