// =============================================================================
// filingsync - Configuration Module
// =============================================================================
//
// This module is responsible for loading the main application configuration.
// A configuration file is optional: every setting has a default, and the CLI
// layers flags and FILINGSYNC_* environment variables on top of the file.
//
// CONFIGURATION FILE (config.yaml):
//   data_dir: ./data
//   database_path: ./data/filingsync.db
//   log_level: info
//   output_name_format: "{kind}_{category}_{year}_{timestamp}.xlsx"
//   listen_addr: ":8080"
//   categories:
//     financial:
//       min_expected_records: 50
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
type MainConfig struct {
	// =========================================================================
	// STORAGE SETTINGS
	// =========================================================================

	// DataDir is the root of run-scoped upload and output directories.
	// Default: "./data"
	DataDir string `yaml:"data_dir"`

	// DatabasePath is the SQLite database file used by the server.
	// Default: "<data_dir>/filingsync.db"
	DatabasePath string `yaml:"database_path"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogLevel controls the verbosity of logging.
	// Valid values: "trace", "debug", "info", "warn", "error"
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	// LogFormat is "json", "console" or "auto".
	// Default: "auto"
	LogFormat string `yaml:"log_format"`

	// LogOutput is "stderr", "stdout", "discard" or a file path.
	// Default: "stderr"
	LogOutput string `yaml:"log_output"`

	// =========================================================================
	// OUTPUT SETTINGS
	// =========================================================================

	// OutputNameFormat defines the format for output workbook names.
	// Placeholders:
	//   {kind}      - import, change_report or exceptions
	//   {category}  - Report category
	//   {year}      - Tax year
	//   {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
	//   {uuid}      - A random UUID
	// Default: "{kind}_{category}_{year}_{timestamp}.xlsx"
	OutputNameFormat string `yaml:"output_name_format"`

	// =========================================================================
	// SERVER SETTINGS
	// =========================================================================

	// ListenAddr is the HTTP listen address.
	// Default: ":8080"
	ListenAddr string `yaml:"listen_addr"`

	// AllowedOrigins lists CORS origins allowed to call the API.
	// Default: ["*"]
	AllowedOrigins []string `yaml:"allowed_origins"`

	// MaxUploadMB caps the size of one uploaded file.
	// Default: 50
	MaxUploadMB int `yaml:"max_upload_mb"`

	// =========================================================================
	// PARSING SETTINGS
	// =========================================================================

	// CSV contains settings for inputs delivered as CSV.
	CSV CSVSettings `yaml:"csv"`

	// Categories holds per-category overrides, keyed by category name.
	Categories map[string]CategorySettings `yaml:"categories"`
}

// CategorySettings overrides registry defaults for one report category.
type CategorySettings struct {
	// MinExpectedRecords below which a source B export is suspected to be
	// filtered. Zero keeps the registry default.
	MinExpectedRecords int `yaml:"min_expected_records"`
}

// =============================================================================
// CSV SETTINGS STRUCTURE
// =============================================================================

// CSVSettings contains settings for parsing CSV files.
type CSVSettings struct {
	// Delimiter is the character used to separate fields.
	// Empty means sniff it from the first line.
	Delimiter string `yaml:"delimiter"`

	// HeaderRows is the number of header rows to merge.
	// Default: 1
	HeaderRows int `yaml:"header_rows"`

	// DataStartRow is the 1-based row where data begins.
	// Default: HeaderRows + 1
	DataStartRow int `yaml:"data_start_row"`
}

// DefaultCSVSettings returns the CSV settings used when none are configured.
func DefaultCSVSettings() CSVSettings {
	return CSVSettings{HeaderRows: 1, DataStartRow: 2}
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// Default returns a configuration with every default applied.
func Default() *MainConfig {
	cfg := &MainConfig{}
	applyMainConfigDefaults(cfg)
	return cfg
}

// LoadMainConfig loads the main application configuration from a YAML file.
//
// PARAMETERS:
//   - configPath: The path to the config.yaml file. A missing file yields
//     the defaults.
//
// RETURNS:
//   - A pointer to the MainConfig struct.
//   - An error if the file cannot be parsed or fails validation.
func LoadMainConfig(configPath string) (*MainConfig, error) {
	config, err := ReadMainConfig(configPath)
	if err != nil {
		return nil, err
	}

	if err := ValidateMainConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// ReadMainConfig parses the file and applies defaults without validating,
// so callers can layer overrides before ValidateMainConfig runs.
func ReadMainConfig(configPath string) (*MainConfig, error) {
	var config MainConfig

	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyMainConfigDefaults(&config)
	return &config, nil
}

// applyMainConfigDefaults sets default values for any unset configuration options.
func applyMainConfigDefaults(config *MainConfig) {
	if config.DataDir == "" {
		config.DataDir = "./data"
	}
	if config.DatabasePath == "" {
		config.DatabasePath = strings.TrimSuffix(config.DataDir, "/") + "/filingsync.db"
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.LogFormat == "" {
		config.LogFormat = "auto"
	}
	if config.LogOutput == "" {
		config.LogOutput = "stderr"
	}
	if config.OutputNameFormat == "" {
		config.OutputNameFormat = "{kind}_{category}_{year}_{timestamp}.xlsx"
	}
	if config.ListenAddr == "" {
		config.ListenAddr = ":8080"
	}
	if len(config.AllowedOrigins) == 0 {
		config.AllowedOrigins = []string{"*"}
	}
	if config.MaxUploadMB == 0 {
		config.MaxUploadMB = 50
	}
	if config.CSV.HeaderRows == 0 {
		config.CSV.HeaderRows = 1
	}
	if config.CSV.DataStartRow == 0 {
		config.CSV.DataStartRow = config.CSV.HeaderRows + 1
	}
}

// ValidateMainConfig checks the configuration and creates the data
// directory if it does not exist.
func ValidateMainConfig(config *MainConfig) error {
	if config.MaxUploadMB < 0 {
		return fmt.Errorf("max_upload_mb must not be negative")
	}
	if config.CSV.DataStartRow <= config.CSV.HeaderRows {
		return fmt.Errorf("csv.data_start_row must come after the header rows")
	}
	if !strings.Contains(config.OutputNameFormat, "{kind}") {
		return fmt.Errorf("output_name_format must contain {kind}")
	}
	for name, c := range config.Categories {
		if c.MinExpectedRecords < 0 {
			return fmt.Errorf("categories.%s.min_expected_records must not be negative", name)
		}
	}

	if _, err := os.Stat(config.DataDir); os.IsNotExist(err) {
		if err := os.MkdirAll(config.DataDir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", config.DataDir, err)
		}
	}
	return nil
}

// MinExpectedFor returns the configured threshold for a category, or zero
// when the registry default applies.
func (c *MainConfig) MinExpectedFor(category string) int {
	if c == nil {
		return 0
	}
	return c.Categories[category].MinExpectedRecords
}

// MaxUploadBytes returns the upload cap in bytes.
func (c *MainConfig) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}
