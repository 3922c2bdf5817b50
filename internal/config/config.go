// Package config loads stagehand configuration.
//
// Precedence, lowest first: built-in defaults, an optional YAML file, then
// STAGEHAND_* environment variables.
package config

import (
	"bytes"
	"fmt"
	"os"
	"regexp"

	"github.com/caarlos0/env/v11"
	"github.com/go-sql-driver/mysql"
	"gopkg.in/yaml.v3"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// ValidDrivers lists the accepted values for Config.Driver.
var ValidDrivers = []string{DriverSQLite, DriverPostgres, DriverMySQL}

// ValidLogFormats lists the accepted values for Config.LogFormat.
var ValidLogFormats = []string{"text", "json"}

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Config holds everything the runtime and the harness need to boot.
type Config struct {
	// Driver selects the database backend: sqlite, postgres or mysql.
	Driver string `yaml:"driver" env:"STAGEHAND_DB_DRIVER"`

	// DSN is the driver-specific data source name. MySQL DSNs must enable
	// multiStatements=true for batched truncation.
	DSN string `yaml:"dsn" env:"STAGEHAND_DB_DSN"`

	// MigrationLedger names the table recording applied migrations. It is
	// never truncated.
	MigrationLedger string `yaml:"migration_ledger" env:"STAGEHAND_MIGRATION_LEDGER"`

	// PolicyFile is an optional YAML file declaring system roles.
	PolicyFile string `yaml:"policy_file" env:"STAGEHAND_POLICY_FILE"`

	// FixturesTag marks scenarios that need a database reset.
	FixturesTag string `yaml:"fixtures_tag" env:"STAGEHAND_FIXTURES_TAG"`

	// LogFormat is "text" or "json".
	LogFormat string `yaml:"log_format" env:"STAGEHAND_LOG_FORMAT"`

	Verbose bool `yaml:"verbose" env:"STAGEHAND_VERBOSE"`
}

// Default returns the built-in configuration: a SQLite file in the working
// directory.
func Default() Config {
	return Config{
		Driver:          DriverSQLite,
		DSN:             "stagehand.db",
		MigrationLedger: "migration_status",
		FixturesTag:     "@fixtures",
		LogFormat:       "text",
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and the environment, then validates it.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// loadFile decodes path over cfg, rejecting unknown keys.
func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// Validate checks required fields and enumerations.
func (c Config) Validate() error {
	if !contains(ValidDrivers, c.Driver) {
		return fmt.Errorf("driver %q: must be one of %v", c.Driver, ValidDrivers)
	}
	if c.DSN == "" {
		return fmt.Errorf("dsn is required")
	}
	if c.Driver == DriverMySQL && !mysqlMultiStatements(c.DSN) {
		return fmt.Errorf("dsn: mysql requires multiStatements=true for batched truncation")
	}
	if !tableName.MatchString(c.MigrationLedger) {
		return fmt.Errorf("migration_ledger %q: must be a plain table name", c.MigrationLedger)
	}
	if c.FixturesTag == "" {
		return fmt.Errorf("fixtures_tag is required")
	}
	if !contains(ValidLogFormats, c.LogFormat) {
		return fmt.Errorf("log_format %q: must be one of %v", c.LogFormat, ValidLogFormats)
	}
	return nil
}

// mysqlMultiStatements reports whether dsn parses and enables
// multiStatements.
func mysqlMultiStatements(dsn string) bool {
	cfg, err := mysql.ParseDSN(dsn)
	return err == nil && cfg.MultiStatements
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
