// Package commands implements the evercast command-line interface.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/stwalsh4118/evercast/internal/config"
	"github.com/stwalsh4118/evercast/internal/db"
	"github.com/stwalsh4118/evercast/internal/logger"
)

var (
	configFile string
	logLevel   string
)

// NewRootCmd creates the root command with every subcommand attached
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evercast",
		Short: "Unattended playback for signage and lobby screens",
		Long: `Evercast keeps a screen playing without anyone at the controls.

It picks streams and slides from a catalogue, covers every change with a
short bumper clip, and exposes the playback state machine over HTTP so a
renderer can follow along.

Examples:
  evercast serve
  evercast import catalogue.json
  evercast content`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (default searches ./config.yaml, ./config/, /etc/evercast/)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewImportCmd())
	cmd.AddCommand(NewContentCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig reads configuration and initialises the global logger
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid --log-level: %w", err)
		}
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Pretty)
	return cfg, nil
}

// openDatabase opens and migrates the configured database
func openDatabase(cfg *config.Config) (*db.DB, error) {
	database, err := db.Open(cfg.Database.Path, db.Options{
		WAL:         cfg.Database.EnableWAL,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := database.Migrate(cfg.Database.MigrationsPath); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	return database, nil
}
