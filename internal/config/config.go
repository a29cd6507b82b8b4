// Package config handles configuration loading for the HL7 gateway.
//
// Configuration is loaded from a YAML file with support for environment
// variable expansion (${VAR} or $VAR syntax). This allows sensitive values
// like database credentials to be injected at runtime. Container
// deployments that carry no config file can use [FromEnv] instead, which
// reads the same settings from flat environment variables.
//
// # Configuration Sections
//
//   - storage: audit backend selection (memory or mongodb) and retention
//   - providers: per-protocol timeout defaults and HTTP TLS floor
//   - logging: diagnostic log level
//
// # Example Configuration
//
//	storage:
//	  backend: mongodb
//	  retentionDays: 2555
//	  mongodb:
//	    uri: ${MONGODB_URI}
//	    database: hl7gateway
//	    collection: transmission_logs
//
//	providers:
//	  httpTimeoutSeconds: 30
//	  mllpTimeoutSeconds: 10
//	  sftpTimeoutSeconds: 15
//
//	logging:
//	  level: info
//
// See [Load] for loading configuration from a file.
package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"
)

// Backend names selectable in the storage section.
const (
	BackendMemory  = "memory"
	BackendMongoDB = "mongodb"
)

// Config is the root configuration structure.
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Providers ProvidersConfig `yaml:"providers"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// StorageConfig selects and parameterizes the audit backend.
type StorageConfig struct {
	// Backend is "memory" or "mongodb". Selection happens here, never by
	// runtime type inspection.
	Backend       string        `yaml:"backend"`
	RetentionDays int           `yaml:"retentionDays"`
	MongoDB       MongoDBConfig `yaml:"mongodb"`
}

// MongoDBConfig holds MongoDB connection settings.
type MongoDBConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

// ProvidersConfig holds per-protocol defaults.
type ProvidersConfig struct {
	HTTPTimeoutSeconds int `yaml:"httpTimeoutSeconds"`
	MLLPTimeoutSeconds int `yaml:"mllpTimeoutSeconds"`
	SFTPTimeoutSeconds int `yaml:"sftpTimeoutSeconds"`
}

// LoggingConfig holds diagnostic logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// SlogLevel maps the configured level name onto its slog level.
func (l LoggingConfig) SlogLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// envConfig mirrors Config as flat environment variables.
type envConfig struct {
	StorageBackend     string `env:"HL7GW_STORAGE_BACKEND" envDefault:"memory"`
	RetentionDays      int    `env:"HL7GW_RETENTION_DAYS" envDefault:"2555"`
	MongoURI           string `env:"HL7GW_MONGODB_URI"`
	MongoDatabase      string `env:"HL7GW_MONGODB_DATABASE" envDefault:"hl7gateway"`
	MongoCollection    string `env:"HL7GW_MONGODB_COLLECTION" envDefault:"transmission_logs"`
	HTTPTimeoutSeconds int    `env:"HL7GW_HTTP_TIMEOUT_SECONDS" envDefault:"30"`
	MLLPTimeoutSeconds int    `env:"HL7GW_MLLP_TIMEOUT_SECONDS" envDefault:"10"`
	SFTPTimeoutSeconds int    `env:"HL7GW_SFTP_TIMEOUT_SECONDS" envDefault:"15"`
	LogLevel           string `env:"HL7GW_LOG_LEVEL" envDefault:"info"`
}

// FromEnv builds configuration from environment variables only.
func FromEnv() (*Config, error) {
	var ec envConfig
	if err := env.Parse(&ec); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	cfg := &Config{
		Storage: StorageConfig{
			Backend:       ec.StorageBackend,
			RetentionDays: ec.RetentionDays,
			MongoDB: MongoDBConfig{
				URI:        ec.MongoURI,
				Database:   ec.MongoDatabase,
				Collection: ec.MongoCollection,
			},
		},
		Providers: ProvidersConfig{
			HTTPTimeoutSeconds: ec.HTTPTimeoutSeconds,
			MLLPTimeoutSeconds: ec.MLLPTimeoutSeconds,
			SFTPTimeoutSeconds: ec.SFTPTimeoutSeconds,
		},
		Logging: LoggingConfig{Level: ec.LogLevel},
	}
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendMemory
	}
	if c.Storage.RetentionDays == 0 {
		c.Storage.RetentionDays = 2555 // seven years
	}
	if c.Storage.MongoDB.Database == "" {
		c.Storage.MongoDB.Database = "hl7gateway"
	}
	if c.Storage.MongoDB.Collection == "" {
		c.Storage.MongoDB.Collection = "transmission_logs"
	}
	if c.Providers.HTTPTimeoutSeconds == 0 {
		c.Providers.HTTPTimeoutSeconds = 30
	}
	if c.Providers.MLLPTimeoutSeconds == 0 {
		c.Providers.MLLPTimeoutSeconds = 10
	}
	if c.Providers.SFTPTimeoutSeconds == 0 {
		c.Providers.SFTPTimeoutSeconds = 15
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func (c *Config) validate() error {
	var problems []string

	switch c.Storage.Backend {
	case BackendMemory, BackendMongoDB:
	default:
		problems = append(problems, fmt.Sprintf("storage.backend %q is not one of memory, mongodb", c.Storage.Backend))
	}
	if c.Storage.Backend == BackendMongoDB && c.Storage.MongoDB.URI == "" {
		problems = append(problems, "storage.mongodb.uri is required for the mongodb backend")
	}
	if c.Storage.RetentionDays < 0 {
		problems = append(problems, "storage.retentionDays must not be negative")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%d problem(s): %v", len(problems), problems)
	}
	return nil
}
