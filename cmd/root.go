package cmd

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/spf13/cobra"

	"github.com/arcfield/geoimport-go/internal/config"
	"github.com/arcfield/geoimport-go/internal/logger"
)

var (
	cfg             = config.Default()
	cfgFile         string
	verbose         bool
	logFile         string
	metricsInterval time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "geoimport",
	Short: "Streaming GeoJSON importer for PostgreSQL/PostGIS",
	Long: `geoimport loads large GeoJSON feature collections into PostgreSQL/PostGIS
in constant memory.

Features:
  - Incremental feature-stream parsing, no document buffering
  - Category-driven mapping onto typed spatial tables
  - Batched multi-row inserts returning generated ids
  - Set-based region and country linking after each load
  - Offline transform to Parquet and a job-management HTTP API`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			fileCfg, err := config.Load(cfgFile)
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
				os.Exit(1)
			}
			applyFlagOverrides(cmd, fileCfg)
			cfg = fileCfg
		}

		cfg.Log.Verbose = verbose
		cfg.Log.File = logFile
		cfg.MetricsInterval = metricsInterval

		logger.Init(logger.Options{Verbose: cfg.Log.Verbose, File: cfg.Log.File})

		if err := cfg.Finalize(); err != nil {
			exitWithError("invalid configuration", err)
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Path to YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	// Logging and metrics flags
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Path to log file for persistent logging (JSON format)")
	rootCmd.PersistentFlags().DurationVar(&metricsInterval, "metrics-interval", 30*time.Second, "Interval for system metrics logging (e.g., 10s, 1m)")

	// Database flags (persistent so they're available to all subcommands)
	rootCmd.PersistentFlags().StringVar(&cfg.Database.Host, "db-host", cfg.Database.Host, "PostgreSQL host")
	rootCmd.PersistentFlags().IntVar(&cfg.Database.Port, "db-port", cfg.Database.Port, "PostgreSQL port")
	rootCmd.PersistentFlags().StringVarP(&cfg.Database.Name, "db-name", "d", cfg.Database.Name, "PostgreSQL database name")
	rootCmd.PersistentFlags().StringVarP(&cfg.Database.User, "db-user", "U", cfg.Database.User, "PostgreSQL user")
	rootCmd.PersistentFlags().StringVarP(&cfg.Database.Password, "db-password", "W", cfg.Database.Password, "PostgreSQL password")
	rootCmd.PersistentFlags().StringVar(&cfg.Database.Schema, "db-schema", cfg.Database.Schema, "PostgreSQL schema")
	rootCmd.PersistentFlags().IntVar(&cfg.Database.MaxConns, "db-max-conns", cfg.Database.MaxConns, "Maximum pooled connections")
}

// applyFlagOverrides copies values of explicitly set database flags onto a
// config loaded from file, so flags win over file settings.
func applyFlagOverrides(cmd *cobra.Command, to *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("db-host") {
		to.Database.Host = cfg.Database.Host
	}
	if flags.Changed("db-port") {
		to.Database.Port = cfg.Database.Port
	}
	if flags.Changed("db-name") {
		to.Database.Name = cfg.Database.Name
	}
	if flags.Changed("db-user") {
		to.Database.User = cfg.Database.User
	}
	if flags.Changed("db-password") {
		to.Database.Password = cfg.Database.Password
	}
	if flags.Changed("db-schema") {
		to.Database.Schema = cfg.Database.Schema
	}
	if flags.Changed("db-max-conns") {
		to.Database.MaxConns = cfg.Database.MaxConns
	}
}

func exitWithError(msg string, err error) {
	log := logger.Get()
	if err != nil {
		log.Error(msg, zap.Error(err))
	} else {
		log.Error(msg)
	}
	os.Exit(1)
}
