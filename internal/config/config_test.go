package config

import (
	"testing"

	"github.com/spf13/viper"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.Status.Phase != 1 {
		t.Errorf("default phase = %d, want 1 (dual-write)", cfg.Status.Phase)
	}
	if cfg.Status.ReleaseChannel != "stable" {
		t.Errorf("default release channel = %q, want stable", cfg.Status.ReleaseChannel)
	}
	if !cfg.IsTrustedChannel() {
		t.Error("default channel should be trusted")
	}
	if !cfg.Telemetry.Enabled || cfg.Telemetry.TimeoutMs != 2000 {
		t.Errorf("unexpected telemetry defaults: %+v", cfg.Telemetry)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("default log level = %q, want info", cfg.Logging.Level)
	}
}

func TestLoadFromViper(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	SetDefaults()

	viper.Set("status.phase", 2)
	viper.Set("status.group_overrides", map[string]int{"WP7": 0})
	viper.Set("status.release_channel", "nightly")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Status.Phase != 2 {
		t.Errorf("phase = %d, want 2", cfg.Status.Phase)
	}
	if cfg.Status.GroupOverrides["WP7"] != 0 {
		t.Errorf("group overrides not loaded: %+v", cfg.Status.GroupOverrides)
	}
	if cfg.IsTrustedChannel() {
		t.Error("nightly should not be trusted by default")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(cfg *Config) {}, true},
		{"negative phase", func(cfg *Config) { cfg.Status.Phase = -1 }, false},
		{"negative group override", func(cfg *Config) { cfg.Status.GroupOverrides["WP1"] = -2 }, false},
		{"zero telemetry timeout", func(cfg *Config) { cfg.Telemetry.TimeoutMs = 0 }, false},
		{"bad log level", func(cfg *Config) { cfg.Logging.Level = "loud" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			errs := cfg.Validate()
			if tt.ok && len(errs) > 0 {
				t.Errorf("Validate() = %v, want none", errs)
			}
			if !tt.ok && len(errs) == 0 {
				t.Error("Validate() found nothing, want an error")
			}
		})
	}
}
