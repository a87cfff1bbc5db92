package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/plasmareport/plasmareport/pkg/nesting"
	"github.com/plasmareport/plasmareport/pkg/stores"
	"github.com/plasmareport/plasmareport/pkg/telemetry"
)

// DefaultFile is the configuration file looked up when none is given.
const DefaultFile = "plasmareport.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PLASMA_"

// Config is the complete PlasmaReport configuration.
type Config struct {
	Database  DatabaseConfig   `yaml:"database"`
	Nesting   NestingConfig    `yaml:"nesting"`
	Telemetry telemetry.Config `yaml:"telemetry"`
	Display   DisplayConfig    `yaml:"display"`
}

// DisplayConfig controls human-readable CLI output.
type DisplayConfig struct {
	// Language selects status and action labels in tables. JSON output
	// always carries identifiers.
	Language string `yaml:"language" validate:"oneof=en ru"`
}

// DatabaseConfig configures the local SQLite store.
type DatabaseConfig struct {
	// Path is the SQLite database file.
	Path string `yaml:"path" validate:"required"`

	MaxOpenConns    int           `yaml:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `yaml:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" validate:"gte=0"`

	// AutoMigrate applies pending migrations whenever the store opens.
	AutoMigrate bool `yaml:"auto_migrate"`
}

// NestingConfig selects and configures the nesting source.
type NestingConfig struct {
	// Kind is "sql" for the SQL Server database or "files" for an export
	// directory.
	Kind string `yaml:"kind" validate:"oneof=sql files"`

	// DSN is the sqlserver connection string, used with kind "sql".
	DSN string `yaml:"dsn" validate:"required_if=Kind sql"`

	// ExportDir holds JSON or YAML exports, used with kind "files" and by
	// "sync watch".
	ExportDir string `yaml:"export_dir" validate:"required_if=Kind files"`

	// ProgramNamesQuery and RecordsQuery override the built-in SQL.
	ProgramNamesQuery string `yaml:"program_names_query"`
	RecordsQuery      string `yaml:"records_query"`

	MaxOpenConns    int           `yaml:"max_open_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" validate:"gte=0"`

	// SettleDelay collapses bursts of export file events in "sync watch".
	SettleDelay time.Duration `yaml:"settle_delay" validate:"gte=0"`

	// SkipContract disables record validation against the CUE contract.
	SkipContract bool `yaml:"skip_contract"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "plasmareport.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			AutoMigrate:     true,
		},
		Nesting: NestingConfig{
			Kind:            "files",
			ExportDir:       "exports",
			MaxOpenConns:    4,
			ConnMaxLifetime: 10 * time.Minute,
			SettleDelay:     nesting.DefaultSettleDelay,
		},
		Telemetry: *telemetry.DefaultConfig(),
		Display:   DisplayConfig{Language: "en"},
	}
}

// Load reads the configuration: defaults, then the YAML file when path is
// set or DefaultFile exists, then environment overrides. The result is
// validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	file := path
	if file == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			file = DefaultFile
		}
	}
	if file != "" {
		if err := cfg.loadFile(file); err != nil {
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	// An empty file keeps the defaults.
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// LookupFunc resolves an environment variable.
type LookupFunc func(key string) (string, bool)

type envBinding struct {
	key string
	set func(c *Config, value string) error
}

var envBindings = []envBinding{
	{"DB_PATH", func(c *Config, v string) error { c.Database.Path = v; return nil }},
	{"DB_AUTO_MIGRATE", func(c *Config, v string) error { return setBool(&c.Database.AutoMigrate, v) }},
	{"NESTING_KIND", func(c *Config, v string) error { c.Nesting.Kind = v; return nil }},
	{"NESTING_DSN", func(c *Config, v string) error { c.Nesting.DSN = v; return nil }},
	{"NESTING_EXPORT_DIR", func(c *Config, v string) error { c.Nesting.ExportDir = v; return nil }},
	{"NESTING_SETTLE_DELAY", func(c *Config, v string) error { return setDuration(&c.Nesting.SettleDelay, v) }},
	{"LOG_LEVEL", func(c *Config, v string) error { c.Telemetry.Logging.Level = strings.ToLower(v); return nil }},
	{"LOG_FORMAT", func(c *Config, v string) error { c.Telemetry.Logging.Format = v; return nil }},
	{"LOG_OUTPUT", func(c *Config, v string) error { c.Telemetry.Logging.Output = v; return nil }},
	{"ENVIRONMENT", func(c *Config, v string) error { c.Telemetry.Environment = v; return nil }},
	{"METRICS_ENABLED", func(c *Config, v string) error { return setBool(&c.Telemetry.Metrics.Enabled, v) }},
	{"METRICS_ADDRESS", func(c *Config, v string) error { c.Telemetry.Metrics.ListenAddress = v; return nil }},
	{"TRACING_ENABLED", func(c *Config, v string) error { return setBool(&c.Telemetry.Tracing.Enabled, v) }},
	{"TRACING_EXPORTER", func(c *Config, v string) error { c.Telemetry.Tracing.Exporter = v; return nil }},
	{"TRACING_ENDPOINT", func(c *Config, v string) error { c.Telemetry.Tracing.Endpoint = v; return nil }},
	{"LANGUAGE", func(c *Config, v string) error { c.Display.Language = strings.ToLower(v); return nil }},
}

// ApplyEnv overrides fields from PLASMA_* variables.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	for _, b := range envBindings {
		value, ok := lookup(EnvPrefix + b.key)
		if !ok {
			continue
		}
		if err := b.set(c, value); err != nil {
			return fmt.Errorf("invalid %s%s: %w", EnvPrefix, b.key, err)
		}
	}
	return nil
}

// EnvKeys lists the recognised environment variables.
func EnvKeys() []string {
	keys := make([]string, 0, len(envBindings))
	for _, b := range envBindings {
		keys = append(keys, EnvPrefix+b.key)
	}
	return keys
}

func setBool(dst *bool, v string) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return err
	}
	*dst = b
	return nil
}

func setDuration(dst *time.Duration, v string) error {
	d, err := time.ParseDuration(v)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

// Validate checks struct constraints and the telemetry rules.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			problems := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				problems = append(problems, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("invalid telemetry configuration: %w", err)
	}
	return nil
}

// Write stores the configuration as YAML, creating parent directories.
func (c *Config) Write(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// StoreConfig maps the database section onto the store configuration.
func (c *Config) StoreConfig() stores.Config {
	return stores.Config{
		Path:            c.Database.Path,
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
	}
}

// SQLConfig maps the nesting section onto the SQL source configuration.
func (c *Config) SQLConfig() nesting.SQLConfig {
	return nesting.SQLConfig{
		DSN:               c.Nesting.DSN,
		ProgramNamesQuery: c.Nesting.ProgramNamesQuery,
		RecordsQuery:      c.Nesting.RecordsQuery,
		MaxOpenConns:      c.Nesting.MaxOpenConns,
		ConnMaxLifetime:   c.Nesting.ConnMaxLifetime,
	}
}
