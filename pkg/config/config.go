package config

import (
	"fmt"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/ekaya-inc/ekaya-advisor/pkg/apperrors"
)

// Config holds all configuration for the index advisor.
// Configuration can come from a YAML file or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords) must only come from environment variables.
type Config struct {
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`

	// Advisor tunes the index heuristics.
	Advisor AdvisorConfig `yaml:"advisor"`

	// Introspection selects and connects the adapter that supplies EXPLAIN
	// output, table descriptions and column statistics.
	Introspection IntrospectionConfig `yaml:"introspection"`
}

// AdvisorConfig holds the thresholds used by the optimizer.
type AdvisorConfig struct {
	// IndexScoreThreshold: a candidate is suggested only when its score is strictly below this.
	IndexScoreThreshold float64 `yaml:"index_score_threshold" env:"ADVISOR_INDEX_SCORE_THRESHOLD" env-default:"0.3"`

	// OptimizationThreshold: a query is worth attention when rows examined / total rows exceeds this for any table.
	OptimizationThreshold float64 `yaml:"optimization_threshold" env:"ADVISOR_OPTIMIZATION_THRESHOLD" env-default:"0.1"`

	// DefaultCardinality is assumed for columns with no known cardinality.
	DefaultCardinality float64 `yaml:"default_cardinality" env:"ADVISOR_DEFAULT_CARDINALITY" env-default:"2"`

	// PrimaryKeyColumn is never suggested.
	PrimaryKeyColumn string `yaml:"primary_key_column" env:"ADVISOR_PRIMARY_KEY_COLUMN" env-default:"name"`
}

// IntrospectionConfig holds the introspection adapter settings.
type IntrospectionConfig struct {
	Type                  string `yaml:"type" env:"INTROSPECTION_TYPE" env-default:"mysql"`
	Host                  string `yaml:"host" env:"INTROSPECTION_HOST" env-default:"localhost"`
	Port                  int    `yaml:"port" env:"INTROSPECTION_PORT"` // 0 means the adapter's default port
	User                  string `yaml:"user" env:"INTROSPECTION_USER" env-default:"root"`
	Password              string `yaml:"-" env:"INTROSPECTION_PASSWORD"` // Secret - not in YAML
	Database              string `yaml:"database" env:"INTROSPECTION_DATABASE" env-default:""`
	SSLMode               string `yaml:"ssl_mode" env:"INTROSPECTION_SSL_MODE" env-default:"disable"`
	ConnectTimeoutSeconds int    `yaml:"connect_timeout_seconds" env:"INTROSPECTION_CONNECT_TIMEOUT_SECONDS" env-default:"10"`

	// SnapshotPath is the captured introspection file read by the snapshot adapter.
	SnapshotPath string `yaml:"snapshot_path" env:"INTROSPECTION_SNAPSHOT_PATH" env-default:""`
}

// IntrospectionTypes are the adapter types the advisor ships with.
var IntrospectionTypes = []string{"mysql", "mariadb", "postgres", "snapshot"}

// Load reads configuration from the YAML file at path with environment
// variable overrides. An empty path reads environment variables only.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path == "" {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the thresholds and adapter settings.
func (c *Config) Validate() error {
	if err := c.Advisor.Validate(); err != nil {
		return err
	}
	return c.Introspection.Validate()
}

// Validate checks the thresholds are usable ratios.
func (c *AdvisorConfig) Validate() error {
	if c.IndexScoreThreshold <= 0 || c.IndexScoreThreshold > 1 {
		return fmt.Errorf("%w: index_score_threshold must be in (0, 1], got %v", apperrors.ErrConfiguration, c.IndexScoreThreshold)
	}
	if c.OptimizationThreshold <= 0 || c.OptimizationThreshold > 1 {
		return fmt.Errorf("%w: optimization_threshold must be in (0, 1], got %v", apperrors.ErrConfiguration, c.OptimizationThreshold)
	}
	if c.DefaultCardinality < 1 {
		return fmt.Errorf("%w: default_cardinality must be at least 1, got %v", apperrors.ErrConfiguration, c.DefaultCardinality)
	}
	return nil
}

// Validate checks the adapter type is known and has what it needs to connect.
func (c *IntrospectionConfig) Validate() error {
	known := false
	for _, t := range IntrospectionTypes {
		if c.Type == t {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("%w: unknown introspection type %q (expected one of %s)",
			apperrors.ErrConfiguration, c.Type, strings.Join(IntrospectionTypes, ", "))
	}

	if c.Type == "snapshot" {
		if c.SnapshotPath == "" {
			return fmt.Errorf("%w: snapshot_path is required for snapshot introspection", apperrors.ErrConfiguration)
		}
		return nil
	}

	if c.Host == "" {
		return fmt.Errorf("%w: introspection host is required", apperrors.ErrConfiguration)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: introspection port out of range: %d", apperrors.ErrConfiguration, c.Port)
	}
	if c.Database == "" {
		return fmt.Errorf("%w: introspection database is required", apperrors.ErrConfiguration)
	}
	return nil
}

// AdapterConfig returns the settings in the map form adapter factories take.
// An unset port is left out so each adapter applies its own default.
func (c *IntrospectionConfig) AdapterConfig() map[string]any {
	m := map[string]any{
		"host":                    c.Host,
		"user":                    c.User,
		"password":                c.Password,
		"database":                c.Database,
		"ssl_mode":                c.SSLMode,
		"connect_timeout_seconds": c.ConnectTimeoutSeconds,
		"snapshot_path":           c.SnapshotPath,
	}
	if c.Port > 0 {
		m["port"] = c.Port
	}
	return m
}
