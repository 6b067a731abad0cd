// =============================================================================
// Invoice Combiner - Configuration Module
// =============================================================================
//
// This module handles loading and validating the application configuration.
// All keys are optional; a missing config file means "all defaults".
//
// CONFIGURATION FILE (config.yaml):
//
//   input_dir: ./input                 # where `process` looks for exports
//   output_dir: ./output               # where the combined file is written
//   input_archive_dir: ./input_archive # where processed inputs are moved
//   archive_on_success: false          # move inputs after a successful file
//   output_format: csv                 # csv | xlsx | xml
//   output_file_format: "combined_invoices.{ext}"
//   schema: evse                       # evse | company
//   max_missing_roles: 2               # undetected roles tolerated per file
//   database_url: ""                   # empty = in-memory store
//   log_level: info                    # debug | info | warn | error
//   log_format: text                   # text | json
//   metrics_file: ""                   # Prometheus text file, empty = off
//   transformation_rules: []           # see internal/standardize
//
// ENVIRONMENT:
//   A .env file in the working directory is loaded first if present.
//   DATABASE_URL, LOG_LEVEL and COMBINER_SCHEMA override the file.
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ginjaninja78/invoice-combiner/internal/logging"
	"github.com/ginjaninja78/invoice-combiner/internal/schema"
)

// Output formats accepted by output_format.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
	FormatXML  = "xml"
)

// Environment variables that override the file.
const (
	EnvDatabaseURL = "DATABASE_URL"
	EnvLogLevel    = "LOG_LEVEL"
	EnvSchema      = "COMBINER_SCHEMA"
)

// =============================================================================
// MAIN CONFIGURATION
// =============================================================================

// MainConfig represents the main application configuration.
type MainConfig struct {
	// InputDir is scanned for .csv, .xlsx and .xls files when `process` is
	// called without arguments.
	InputDir string `yaml:"input_dir"`

	// OutputDir receives the combined export.
	OutputDir string `yaml:"output_dir"`

	// InputArchiveDir receives inputs that were processed successfully, when
	// ArchiveOnSuccess is set.
	InputArchiveDir string `yaml:"input_archive_dir"`

	ArchiveOnSuccess bool `yaml:"archive_on_success"`

	// OutputFormat is csv, xlsx or xml.
	OutputFormat string `yaml:"output_format"`

	// OutputFileFormat names the combined export.
	//
	// PLACEHOLDERS:
	//   - {uuid}: A random UUID
	//   - {timestamp}: Current timestamp (YYYYMMDD_HHMMSS)
	//   - {schema}: The schema name
	//   - {ext}: The extension of OutputFormat
	OutputFileFormat string `yaml:"output_file_format"`

	// Schema selects the output layout and classifier set.
	Schema string `yaml:"schema"`

	// MaxMissingRoles is the number of undetected roles tolerated per file.
	// Nil means the schema default.
	MaxMissingRoles *int `yaml:"max_missing_roles"`

	// DatabaseURL is a PostgreSQL connection string. Empty selects the
	// in-memory store, which forgets everything at exit.
	DatabaseURL string `yaml:"database_url"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// MetricsFile, if set, receives the run's metrics in Prometheus text
	// exposition format.
	MetricsFile string `yaml:"metrics_file"`

	// TransformationRules post-process standardized text fields.
	TransformationRules []TransformationRule `yaml:"transformation_rules"`
}

// TransformationRule defines how to transform one output field.
type TransformationRule struct {
	// Field is the output column name (e.g. "currency", "evse_id").
	Field string `yaml:"field"`

	// Actions are applied in order.
	Actions []TransformationAction `yaml:"actions"`
}

// TransformationAction defines a single transformation action.
//
// SUPPORTED TYPES:
//   - prepend_string, append_string: Value is the string to add
//   - trim, uppercase, lowercase, normalize_whitespace
//   - replace: Find is replaced by Value
//   - regex_replace: Find is a regular expression, Value the replacement
//   - pad_zeros_to_length: Value is the target length
//   - lookup: LookupTable maps old to new values
//   - lookup_with_default: as lookup, Value for unmatched values
//   - if_empty_use_default: Value replaces blank values
type TransformationAction struct {
	Type string `yaml:"type"`

	Value string `yaml:"value"`

	Find string `yaml:"find,omitempty"`

	LookupTable map[string]string `yaml:"lookup_table,omitempty"`
}

// =============================================================================
// CONFIGURATION LOADING
// =============================================================================

// LoadMainConfig loads the main configuration from a YAML file.
//
// PARAMETERS:
//   - configPath: The path to the config.yaml file. A missing file is not
//     an error.
//
// RETURNS:
//   - A pointer to the MainConfig struct.
//   - An error if the file cannot be parsed or is invalid.
func LoadMainConfig(configPath string) (*MainConfig, error) {
	// Load .env if present; real environment variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var config MainConfig

	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// All defaults.
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&config)
	applyMainConfigDefaults(&config)

	if err := validateMainConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// applyEnvOverrides replaces file values with set environment variables.
func applyEnvOverrides(config *MainConfig) {
	if v := os.Getenv(EnvDatabaseURL); v != "" {
		config.DatabaseURL = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		config.LogLevel = v
	}
	if v := os.Getenv(EnvSchema); v != "" {
		config.Schema = v
	}
}

// applyMainConfigDefaults sets default values for missing configuration options.
func applyMainConfigDefaults(config *MainConfig) {
	if config.InputDir == "" {
		config.InputDir = "./input"
	}
	if config.OutputDir == "" {
		config.OutputDir = "./output"
	}
	if config.InputArchiveDir == "" {
		config.InputArchiveDir = "./input_archive"
	}
	if config.OutputFormat == "" {
		config.OutputFormat = FormatCSV
	}
	config.OutputFormat = strings.ToLower(config.OutputFormat)
	if config.OutputFileFormat == "" {
		config.OutputFileFormat = "combined_invoices.{ext}"
	}
	if config.Schema == "" {
		config.Schema = "evse"
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.LogFormat == "" {
		config.LogFormat = "text"
	}
}

// validateMainConfig validates the main configuration and creates the
// working directories.
func validateMainConfig(config *MainConfig) error {
	if _, err := schema.Lookup(config.Schema); err != nil {
		return err
	}

	switch config.OutputFormat {
	case FormatCSV, FormatXLSX, FormatXML:
	default:
		return fmt.Errorf("unknown output_format %q (want csv, xlsx or xml)", config.OutputFormat)
	}

	if config.MaxMissingRoles != nil && *config.MaxMissingRoles < 0 {
		return fmt.Errorf("max_missing_roles must not be negative, got %d", *config.MaxMissingRoles)
	}

	if !logging.ValidLevel(config.LogLevel) {
		return fmt.Errorf("unknown log_level %q", config.LogLevel)
	}

	switch strings.ToLower(config.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log_format %q (want text or json)", config.LogFormat)
	}

	for _, rule := range config.TransformationRules {
		if rule.Field == "" {
			return errors.New("transformation rule without field")
		}
	}

	dirs := []string{
		config.InputDir,
		config.OutputDir,
		config.InputArchiveDir,
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// ResolveSchema returns the configured schema with MaxMissingRoles applied.
func (c *MainConfig) ResolveSchema() (*schema.Schema, error) {
	s, err := schema.Lookup(c.Schema)
	if err != nil {
		return nil, err
	}
	if c.MaxMissingRoles != nil {
		s.MaxMissing = *c.MaxMissingRoles
	}
	return s, nil
}
