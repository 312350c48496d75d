// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Entitlement EntitlementConfig `yaml:"entitlement"`
	PlayStore   PlayStoreConfig   `yaml:"playstore"`
	Redis       RedisConfig       `yaml:"redis"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	OpenAPI     OpenAPIConfig     `yaml:"openapi"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig configures the database.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite"
	DSN    string `yaml:"dsn"`
}

// EntitlementConfig configures quota enforcement.
type EntitlementConfig struct {
	// FreeMessagesPerWindow is the free-tier message allowance.
	FreeMessagesPerWindow int `yaml:"free_messages_per_window"`

	// Window is both the free-window length and the paid period.
	Window time.Duration `yaml:"window"`

	// CancelThreshold is how many cancellations permanently disable the
	// free tier for a device.
	CancelThreshold int `yaml:"cancel_threshold"`

	// MaxRetries bounds conditional-write retry loops.
	MaxRetries int `yaml:"max_retries"`
}

// PlayStoreConfig configures purchase verification.
// Use "none" (deny all), "fake" (development), or "google".
type PlayStoreConfig struct {
	Mode            string `yaml:"mode"` // "none", "fake", "google"
	PackageName     string `yaml:"package_name,omitempty"`
	CredentialsFile string `yaml:"credentials_file,omitempty"`
	FakeTokenPrefix string `yaml:"fake_token_prefix,omitempty"`
	Environment     string `yaml:"environment"` // "development" or "production"
}

// RedisConfig configures the Redis-backed webhook dedup store. When
// disabled, an in-process store is used instead.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password,omitempty"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // Enable /metrics endpoint
	Path    string `yaml:"path"`    // Custom path (default: /metrics)
}

// OpenAPIConfig configures OpenAPI/Swagger documentation.
type OpenAPIConfig struct {
	Enabled bool `yaml:"enabled"` // Enable OpenAPI endpoints
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(&cfg)

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
// This is useful for Docker deployments where no config file is needed.
//
// Environment variables:
//
//	REPLYGATE_DATABASE_DSN        - Database path (default: replygate.db)
//	REPLYGATE_SERVER_HOST         - Server host (default: 0.0.0.0)
//	REPLYGATE_SERVER_PORT         - Server port (default: 8080)
//	REPLYGATE_FREE_LIMIT          - Free messages per window (default: 50)
//	REPLYGATE_WINDOW              - Window length (default: 720h)
//	REPLYGATE_CANCEL_THRESHOLD    - Cancellations before free-tier bar (default: 3)
//	REPLYGATE_PLAYSTORE_MODE      - Verification mode: none, fake, google (default: none)
//	REPLYGATE_REDIS_ENABLED       - Use Redis for webhook dedup (default: false)
//	REPLYGATE_LOG_LEVEL           - Log level: debug, info, warn, error (default: info)
//	REPLYGATE_LOG_FORMAT          - Log format: json or console (default: json)
//	REPLYGATE_METRICS_ENABLED     - Enable /metrics endpoint (default: true)
//	REPLYGATE_OPENAPI_ENABLED     - Enable OpenAPI/Swagger (default: true)
func LoadFromEnv() (*Config, error) {
	var cfg Config

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback tries to load from file, falls back to environment
// variables. This is the recommended method for Docker deployments.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return LoadFromEnv()
}

// applyEnvOverrides applies REPLYGATE_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	// Server configuration
	if v := os.Getenv("REPLYGATE_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("REPLYGATE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("REPLYGATE_SERVER_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if v := os.Getenv("REPLYGATE_SERVER_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}

	// Database configuration
	if v := os.Getenv("REPLYGATE_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("REPLYGATE_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}

	// Entitlement configuration
	if v := os.Getenv("REPLYGATE_FREE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Entitlement.FreeMessagesPerWindow = n
		}
	}
	if v := os.Getenv("REPLYGATE_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Entitlement.Window = d
		}
	}
	if v := os.Getenv("REPLYGATE_CANCEL_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Entitlement.CancelThreshold = n
		}
	}
	if v := os.Getenv("REPLYGATE_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Entitlement.MaxRetries = n
		}
	}

	// Play Store configuration
	if v := os.Getenv("REPLYGATE_PLAYSTORE_MODE"); v != "" {
		cfg.PlayStore.Mode = v
	}
	if v := os.Getenv("REPLYGATE_PLAYSTORE_PACKAGE"); v != "" {
		cfg.PlayStore.PackageName = v
	}
	if v := os.Getenv("REPLYGATE_PLAYSTORE_CREDENTIALS"); v != "" {
		cfg.PlayStore.CredentialsFile = v
	}
	if v := os.Getenv("REPLYGATE_PLAYSTORE_FAKE_PREFIX"); v != "" {
		cfg.PlayStore.FakeTokenPrefix = v
	}
	if v := os.Getenv("REPLYGATE_ENVIRONMENT"); v != "" {
		cfg.PlayStore.Environment = v
	}

	// Redis configuration
	if v := os.Getenv("REPLYGATE_REDIS_ENABLED"); v != "" {
		cfg.Redis.Enabled = parseBool(v)
	}
	if v := os.Getenv("REPLYGATE_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REPLYGATE_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("REPLYGATE_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = n
		}
	}
	if v := os.Getenv("REPLYGATE_REDIS_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Redis.TTL = d
		}
	}

	// Logging configuration
	if v := os.Getenv("REPLYGATE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("REPLYGATE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// Metrics configuration
	if v := os.Getenv("REPLYGATE_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("REPLYGATE_METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}

	// OpenAPI configuration
	if v := os.Getenv("REPLYGATE_OPENAPI_ENABLED"); v != "" {
		cfg.OpenAPI.Enabled = parseBool(v)
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "replygate.db"
	}

	if cfg.Entitlement.FreeMessagesPerWindow == 0 {
		cfg.Entitlement.FreeMessagesPerWindow = 50
	}
	if cfg.Entitlement.Window == 0 {
		cfg.Entitlement.Window = 720 * time.Hour
	}
	if cfg.Entitlement.CancelThreshold == 0 {
		cfg.Entitlement.CancelThreshold = 3
	}
	if cfg.Entitlement.MaxRetries == 0 {
		cfg.Entitlement.MaxRetries = 5
	}

	if cfg.PlayStore.Mode == "" {
		cfg.PlayStore.Mode = "none"
	}
	if cfg.PlayStore.Environment == "" {
		cfg.PlayStore.Environment = "development"
	}

	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Redis.TTL == 0 {
		cfg.Redis.TTL = 72 * time.Hour
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func validate(cfg *Config) error {
	validModes := map[string]bool{"none": true, "fake": true, "google": true}
	if !validModes[cfg.PlayStore.Mode] {
		return fmt.Errorf("playstore.mode must be 'none', 'fake' or 'google', got %q", cfg.PlayStore.Mode)
	}
	if cfg.PlayStore.Mode == "google" {
		if cfg.PlayStore.PackageName == "" {
			return fmt.Errorf("playstore.package_name is required when playstore.mode is 'google'")
		}
		if cfg.PlayStore.CredentialsFile == "" {
			return fmt.Errorf("playstore.credentials_file is required when playstore.mode is 'google'")
		}
	}
	if cfg.PlayStore.Mode == "fake" && cfg.PlayStore.Environment == "production" {
		return fmt.Errorf("playstore.mode 'fake' is not allowed when environment is 'production'")
	}

	if cfg.Entitlement.FreeMessagesPerWindow < 0 {
		return fmt.Errorf("entitlement.free_messages_per_window must not be negative")
	}
	if cfg.Entitlement.Window < 0 {
		return fmt.Errorf("entitlement.window must not be negative")
	}

	if cfg.Database.Driver != "sqlite" {
		return fmt.Errorf("database.driver must be 'sqlite', got %q", cfg.Database.Driver)
	}

	return nil
}
