// Package cmd implements the wptrack command-line interface. Every command
// is a thin wrapper over the internal packages: it parses flags, loads the
// configuration, runs one operation, and renders the structured result.
package cmd

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Priivacy-ai/spec-kitty-sub010/internal/config"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/emit"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/logging"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/telemetry"
)

var rootCmd = &cobra.Command{
	Use:   "wptrack",
	Short: "Work-package status tracking over append-only event logs",
	Long: `Wptrack records work-package lifecycle transitions as immutable events in
per-work-stream append-only logs, materializes deterministic snapshots from
them, and keeps the legacy document views in sync during the migration
phases.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is .wptrack/config.yaml)")
	rootCmd.PersistentFlags().String("root", "", "repository root (default is the working directory)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("root", rootCmd.PersistentFlags().Lookup("root"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(filepath.Join(repoRoot(), ".wptrack"))
		viper.AddConfigPath(config.ConfigDir())
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("WPTRACK")
	// Replace dots with underscores for nested keys in env vars
	// e.g., WPTRACK_STATUS_PHASE for status.phase
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

// repoRoot resolves the repository root for this invocation.
func repoRoot() string {
	if root := viper.GetString("root"); root != "" {
		return root
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return cwd
}

// newLogger builds the configured logger. Disabled logging yields a no-op
// logger so command code never branches on it.
func newLogger(cfg *config.Config, command string) *logging.Logger {
	if !cfg.Logging.Enabled {
		return logging.NopLogger()
	}
	logDir := filepath.Join(repoRoot(), ".wptrack", "logs")
	log, err := logging.NewLogger(logDir, cfg.Logging.Level)
	if err != nil {
		return logging.NopLogger()
	}
	return log.WithCommand(command)
}

// newEmitter wires an Emitter with the collector attached to its bus.
func newEmitter(cfg *config.Config, log *logging.Logger) *emit.Emitter {
	bus := telemetry.NewBus()
	telemetry.NewCollector(&cfg.Telemetry, log).Attach(bus)
	return emit.New(repoRoot(), cfg, log, bus)
}
