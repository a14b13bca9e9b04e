// Package config provides configuration loading, validation and hot
// reload.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Modules  ModulesConfig  `yaml:"modules"`
	Cluster  ClusterConfig  `yaml:"cluster"`
	Admin    AdminConfig    `yaml:"admin"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port" validate:"gte=0,lte=65535"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig configures the settings store backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver" validate:"oneof=sqlite memory"`
	DSN    string `yaml:"dsn"`
}

// ModulesConfig configures module lifecycle behavior.
type ModulesConfig struct {
	// Disabled lists modules excluded at this node, by canonical path
	// "<area>/<name>", bare name, or "*" for all toggleable modules.
	Disabled []string `yaml:"disabled"`

	HealthPeriod   time.Duration `yaml:"health_period"`
	BootstrapGrace time.Duration `yaml:"bootstrap_grace"`
	LoadingPoll    time.Duration `yaml:"loading_poll"`

	// StrictCommandGating excludes commands whose declared dependencies
	// are unhealthy instead of keeping them assembled.
	StrictCommandGating bool `yaml:"strict_command_gating"`

	// UpdateSettleDelay is how long the settings API waits after an
	// update before computing the snapshot it answers with.
	UpdateSettleDelay time.Duration `yaml:"update_settle_delay"`
}

// ClusterConfig configures the node role. Only the primary persists
// settings and runs module hooks.
type ClusterConfig struct {
	Role string `yaml:"role" validate:"oneof=primary secondary"`
}

// AdminConfig configures the settings API credential.
type AdminConfig struct {
	// TokenHash is the bcrypt hash of the admin bearer token. Empty
	// disables authentication (local development only).
	TokenHash string `yaml:"token_hash"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json console"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// IsPrimary reports whether this node is the designated side-effecting
// one.
func (c *Config) IsPrimary() bool {
	return c.Cluster.Role != "secondary"
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

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
// Useful for container deployments where no config file is mounted.
//
// Environment variables:
//
//	SOGEBOT_SERVER_HOST       - Server host (default: 0.0.0.0)
//	SOGEBOT_SERVER_PORT       - Server port (default: 8080)
//	SOGEBOT_DATABASE_DRIVER   - Settings store: sqlite or memory (default: sqlite)
//	SOGEBOT_DATABASE_DSN      - Database path (default: sogebot.db)
//	SOGEBOT_DISABLE_MODULES   - Comma-separated module disable list
//	SOGEBOT_STRICT_GATING     - Exclude commands with unhealthy dependencies
//	SOGEBOT_NODE_ROLE         - Cluster role: primary or secondary (default: primary)
//	SOGEBOT_ADMIN_TOKEN_HASH  - bcrypt hash of the admin bearer token
//	SOGEBOT_LOG_LEVEL         - Log level: debug, info, warn, error (default: info)
//	SOGEBOT_LOG_FORMAT        - Log format: json or console (default: json)
//	SOGEBOT_METRICS_ENABLED   - Enable /metrics endpoint (default: true)
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
// variables.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return LoadFromEnv()
}

// applyEnvOverrides applies SOGEBOT_* environment variables to the
// config. Environment variables always override file-based
// configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SOGEBOT_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SOGEBOT_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SOGEBOT_SERVER_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if v := os.Getenv("SOGEBOT_SERVER_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}

	if v := os.Getenv("SOGEBOT_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("SOGEBOT_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}

	if v := os.Getenv("SOGEBOT_DISABLE_MODULES"); v != "" {
		cfg.Modules.Disabled = splitList(v)
	}
	if v := os.Getenv("SOGEBOT_STRICT_GATING"); v != "" {
		cfg.Modules.StrictCommandGating = parseBool(v)
	}
	if v := os.Getenv("SOGEBOT_HEALTH_PERIOD"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Modules.HealthPeriod = d
		}
	}
	if v := os.Getenv("SOGEBOT_BOOTSTRAP_GRACE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Modules.BootstrapGrace = d
		}
	}

	if v := os.Getenv("SOGEBOT_NODE_ROLE"); v != "" {
		cfg.Cluster.Role = v
	}
	if v := os.Getenv("SOGEBOT_ADMIN_TOKEN_HASH"); v != "" {
		cfg.Admin.TokenHash = v
	}

	if v := os.Getenv("SOGEBOT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SOGEBOT_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	if v := os.Getenv("SOGEBOT_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("SOGEBOT_METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
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
		cfg.Database.DSN = "sogebot.db"
	}

	if cfg.Modules.HealthPeriod == 0 {
		cfg.Modules.HealthPeriod = time.Second
	}
	if cfg.Modules.BootstrapGrace == 0 {
		cfg.Modules.BootstrapGrace = 5 * time.Second
	}
	if cfg.Modules.LoadingPoll == 0 {
		cfg.Modules.LoadingPoll = 100 * time.Millisecond
	}
	if cfg.Modules.UpdateSettleDelay == 0 {
		cfg.Modules.UpdateSettleDelay = 500 * time.Millisecond
	}

	if cfg.Cluster.Role == "" {
		cfg.Cluster.Role = "primary"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

var structValidator = validator.New()

func validate(cfg *Config) error {
	if err := structValidator.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			f := verrs[0]
			return fmt.Errorf("field %s failed %q validation", f.Namespace(), f.Tag())
		}
		return err
	}
	if cfg.Database.Driver == "sqlite" && cfg.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required for the sqlite driver")
	}
	return nil
}
