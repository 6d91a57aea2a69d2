// Package config loads the service configuration from config.toml, an
// optional config.<env>.toml overlay, and VETRECORDS_* environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/JaimeStill/vetrecords/internal/calibration"
	"github.com/JaimeStill/vetrecords/internal/extraction"
	"github.com/JaimeStill/vetrecords/internal/runs"
	"github.com/JaimeStill/vetrecords/pkg/database"
	"github.com/JaimeStill/vetrecords/pkg/storage"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvVetrecordsEnv             = "VETRECORDS_ENV"
	EnvVetrecordsShutdownTimeout = "VETRECORDS_SHUTDOWN_TIMEOUT"
	EnvVetrecordsVersion         = "VETRECORDS_VERSION"
)

var databaseEnv = &database.Env{
	URL:             "VETRECORDS_DATABASE_URL",
	Host:            "VETRECORDS_DB_HOST",
	Port:            "VETRECORDS_DB_PORT",
	Name:            "VETRECORDS_DB_NAME",
	User:            "VETRECORDS_DB_USER",
	Password:        "VETRECORDS_DB_PASSWORD",
	SSLMode:         "VETRECORDS_DB_SSL_MODE",
	MaxOpenConns:    "VETRECORDS_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "VETRECORDS_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "VETRECORDS_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "VETRECORDS_DB_CONN_TIMEOUT",
}

// DatabaseEnv returns the environment variable names of the database
// section, for tools that connect without loading the full config.
func DatabaseEnv() *database.Env {
	env := *databaseEnv
	return &env
}

var storageEnv = &storage.Env{
	Provider:         "VETRECORDS_STORAGE_PROVIDER",
	Root:             "VETRECORDS_STORAGE_ROOT",
	ContainerName:    "VETRECORDS_STORAGE_CONTAINER_NAME",
	ConnectionString: "VETRECORDS_STORAGE_CONNECTION_STRING",
	ServiceURL:       "VETRECORDS_STORAGE_SERVICE_URL",
}

var schedulerEnv = &runs.Env{
	Enabled:       "VETRECORDS_SCHEDULER_ENABLED",
	TickInterval:  "VETRECORDS_SCHEDULER_TICK_INTERVAL",
	BatchSize:     "VETRECORDS_SCHEDULER_BATCH_SIZE",
	MaxConcurrent: "VETRECORDS_SCHEDULER_MAX_CONCURRENT",
	RunTimeout:    "VETRECORDS_SCHEDULER_RUN_TIMEOUT",
	SweepRetry:    "VETRECORDS_SCHEDULER_SWEEP_RETRY",
}

var extractionEnv = &extraction.Env{
	ParseTimeout:   "VETRECORDS_EXTRACTION_PARSE_TIMEOUT",
	MaxTokens:      "VETRECORDS_EXTRACTION_MAX_TOKENS",
	MaxArrayItems:  "VETRECORDS_EXTRACTION_MAX_ARRAY_ITEMS",
	MaxStreamSize:  "VETRECORDS_EXTRACTION_MAX_STREAM_SIZE",
	PrimaryEnabled: "VETRECORDS_EXTRACTION_PRIMARY_ENABLED",
}

var calibrationEnv = &calibration.Env{
	PolicyVersion:       "VETRECORDS_CALIBRATION_POLICY_VERSION",
	LowBandCutoff:       "VETRECORDS_CALIBRATION_LOW_BAND_CUTOFF",
	MidBandCutoff:       "VETRECORDS_CALIBRATION_MID_BAND_CUTOFF",
	NeutralConfidence:   "VETRECORDS_CALIBRATION_NEUTRAL_CONFIDENCE",
	ContextVersion:      "VETRECORDS_CALIBRATION_CONTEXT_VERSION",
	DefaultDocumentType: "VETRECORDS_CALIBRATION_DEFAULT_DOCUMENT_TYPE",
	DefaultLanguage:     "VETRECORDS_CALIBRATION_DEFAULT_LANGUAGE",
}

// Config is the root configuration for the vetrecords service.
type Config struct {
	Server          ServerConfig       `toml:"server"`
	Database        database.Config    `toml:"database"`
	Storage         storage.Config     `toml:"storage"`
	API             APIConfig          `toml:"api"`
	Scheduler       runs.Config        `toml:"scheduler"`
	Extraction      extraction.Config  `toml:"extraction"`
	Calibration     calibration.Config `toml:"calibration"`
	Logging         LoggingConfig      `toml:"logging"`
	ShutdownTimeout string             `toml:"shutdown_timeout"`
	Version         string             `toml:"version"`
}

// Env returns the VETRECORDS_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvVetrecordsEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads the base config (if present), applies any environment overlay,
// and finalizes all values. If no config.toml exists, defaults and environment
// variables provide all configuration.
func Load() (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(BaseConfigFile); err == nil {
		loaded, err := load(BaseConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if path := overlayPath(); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.Finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Parse decodes TOML data into a Config without finalizing it.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Server.Merge(&overlay.Server)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.API.Merge(&overlay.API)
	c.Scheduler.Merge(&overlay.Scheduler)
	c.Extraction.Merge(&overlay.Extraction)
	c.Calibration.Merge(&overlay.Calibration)
	c.Logging.Merge(&overlay.Logging)
}

// Finalize applies defaults, environment overrides and validation to the
// root values and every section.
func (c *Config) Finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}

	sections := []struct {
		name     string
		finalize func() error
	}{
		{"server", c.Server.Finalize},
		{"database", func() error { return c.Database.Finalize(databaseEnv) }},
		{"storage", func() error { return c.Storage.Finalize(storageEnv) }},
		{"api", c.API.Finalize},
		{"scheduler", func() error { return c.Scheduler.Finalize(schedulerEnv) }},
		{"extraction", func() error { return c.Extraction.Finalize(extractionEnv) }},
		{"calibration", func() error { return c.Calibration.Finalize(calibrationEnv) }},
		{"logging", c.Logging.Finalize},
	}
	for _, s := range sections {
		if err := s.finalize(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvVetrecordsShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvVetrecordsVersion); v != "" {
		c.Version = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

func overlayPath() string {
	if env := os.Getenv(EnvVetrecordsEnv); env != "" {
		path := fmt.Sprintf(OverlayConfigPattern, env)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
