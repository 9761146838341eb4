// =============================================================================
// filingsync - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. Every subcommand is
// attached to it and shares its persistent flags.
//
// COBRA CLI STRUCTURE:
//   rootCmd (filingsync)
//   ├── reconcileCmd (filingsync reconcile)
//   ├── validateCmd  (filingsync validate)
//   ├── serveCmd     (filingsync serve)
//   ├── schemasCmd   (filingsync schemas)
//   └── versionCmd   (filingsync version)
//
// CONFIGURATION PRECEDENCE (highest first):
//   1. Command-line flags
//   2. FILINGSYNC_* environment variables (.env and .env.local are loaded
//      into the environment first)
//   3. The YAML configuration file
//   4. Built-in defaults
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ginjaninja78/filingsync/internal/config"
	"github.com/ginjaninja78/filingsync/internal/logging"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// envPrefix prefixes every environment variable the CLI reads.
const envPrefix = "FILINGSYNC"

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "filingsync",
	Short: "Reconcile filing-authority cases against the accounting platform export",
	Long: `filingsync reconciles the filing-authority case list (source A) against the
accounting platform's report export (source B) for one tax year and report
category, and produces the files needed to bring the platform up to date.

Outputs:
  - An import workbook with updated statuses and dates
  - A change report listing every changed field
  - An exceptions report for records needing a human decision

Example Usage:
  filingsync validate  --category financial --year 2024 --source-a idom.xlsx --source-b export.xlsx
  filingsync reconcile --category financial --year 2024 --source-a idom.xlsx --source-b export.xlsx
  filingsync serve --listen :8080`,

	SilenceUsage: true,

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	cobra.OnInitialize(initConfig)

	// ==========================================================================
	// PERSISTENT FLAGS
	// ==========================================================================

	flags := rootCmd.PersistentFlags()
	flags.String("config", "config.yaml", "Path to the main configuration file")
	flags.BoolP("verbose", "v", false, "Enable debug logging")
	flags.BoolP("quiet", "q", false, "Only log warnings and errors")
	flags.String("log-level", "", "Log level (trace, debug, info, warn, error)")
	flags.String("log-format", "", "Log format (json, console, auto)")
	flags.String("data-dir", "", "Root directory for run files and the database")

	for key, flag := range map[string]string{
		"config":     "config",
		"verbose":    "verbose",
		"quiet":      "quiet",
		"log_level":  "log-level",
		"log_format": "log-format",
		"data_dir":   "data-dir",
	} {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			fmt.Fprintf(os.Stderr, "Error binding %s flag: %v\n", flag, err)
		}
	}
}

// initConfig loads .env files and enables FILINGSYNC_* environment lookups.
func initConfig() {
	for _, envFile := range []string{".env", ".env.local"} {
		// Missing files are fine; the environment may already be set.
		_ = godotenv.Load(envFile)
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

// loadConfig reads the YAML configuration and layers flags and environment
// variables on top of it.
func loadConfig() (*config.MainConfig, error) {
	cfg, err := config.ReadMainConfig(viper.GetString("config"))
	if err != nil {
		return nil, err
	}

	if viper.IsSet("data_dir") {
		derived := strings.TrimSuffix(cfg.DataDir, "/") + "/filingsync.db"
		cfg.DataDir = viper.GetString("data_dir")
		if cfg.DatabasePath == derived && !viper.IsSet("database_path") {
			cfg.DatabasePath = filepath.Join(cfg.DataDir, "filingsync.db")
		}
	}
	for key, dst := range map[string]*string{
		"database_path":      &cfg.DatabasePath,
		"log_level":          &cfg.LogLevel,
		"log_format":         &cfg.LogFormat,
		"log_output":         &cfg.LogOutput,
		"listen_addr":        &cfg.ListenAddr,
		"output_name_format": &cfg.OutputNameFormat,
	} {
		if viper.IsSet(key) {
			*dst = viper.GetString(key)
		}
	}
	if viper.GetBool("verbose") {
		cfg.LogLevel = "debug"
	}
	if viper.GetBool("quiet") {
		cfg.LogLevel = "warn"
	}

	if err := config.ValidateMainConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger. The returned function releases a log
// file when one is configured.
func newLogger(cfg *config.MainConfig) (zerolog.Logger, func() error) {
	return logging.New(logging.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Output:  cfg.LogOutput,
		NoColor: os.Getenv("NO_COLOR") != "",
	})
}
