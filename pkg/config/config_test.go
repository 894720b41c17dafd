package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ekaya-inc/ekaya-advisor/pkg/apperrors"
)

var advisorEnvVars = []string{
	"ENVIRONMENT",
	"LOG_LEVEL",
	"ADVISOR_INDEX_SCORE_THRESHOLD",
	"ADVISOR_OPTIMIZATION_THRESHOLD",
	"ADVISOR_DEFAULT_CARDINALITY",
	"ADVISOR_PRIMARY_KEY_COLUMN",
	"INTROSPECTION_TYPE",
	"INTROSPECTION_HOST",
	"INTROSPECTION_PORT",
	"INTROSPECTION_USER",
	"INTROSPECTION_PASSWORD",
	"INTROSPECTION_DATABASE",
	"INTROSPECTION_SSL_MODE",
	"INTROSPECTION_CONNECT_TIMEOUT_SECONDS",
	"INTROSPECTION_SNAPSHOT_PATH",
}

// clearEnv unsets every variable Load reads; t.Setenv restores them afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range advisorEnvVars {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
env: "test"
advisor:
  index_score_threshold: 0.25
introspection:
  type: "mariadb"
  host: "db.example.com"
  port: 3306
  user: "frappe"
  password: "from-yaml"
  database: "site1"
`)

	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("INTROSPECTION_PORT", "3307")
	t.Setenv("INTROSPECTION_PASSWORD", "secret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Env != "production" {
		t.Errorf("expected Env=production (from env), got %s", cfg.Env)
	}
	if cfg.Introspection.Port != 3307 {
		t.Errorf("expected Port=3307 (from env), got %d", cfg.Introspection.Port)
	}
	if cfg.Introspection.Host != "db.example.com" {
		t.Errorf("expected Host=db.example.com (from yaml), got %s", cfg.Introspection.Host)
	}
	if cfg.Introspection.Type != "mariadb" {
		t.Errorf("expected Type=mariadb (from yaml), got %s", cfg.Introspection.Type)
	}
	if cfg.Advisor.IndexScoreThreshold != 0.25 {
		t.Errorf("expected IndexScoreThreshold=0.25 (from yaml), got %v", cfg.Advisor.IndexScoreThreshold)
	}
	if cfg.Introspection.Password != "secret" {
		t.Errorf("expected password from env only, got %q", cfg.Introspection.Password)
	}
}

func TestLoad_PasswordNeverFromYAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
introspection:
  password: "from-yaml"
  database: "site1"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Introspection.Password != "" {
		t.Errorf("expected empty password, got %q", cfg.Introspection.Password)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("INTROSPECTION_DATABASE", "site1")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Env != "local" {
		t.Errorf("expected Env=local, got %s", cfg.Env)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected LogLevel=info, got %s", cfg.LogLevel)
	}
	if cfg.Advisor.IndexScoreThreshold != 0.3 {
		t.Errorf("expected IndexScoreThreshold=0.3, got %v", cfg.Advisor.IndexScoreThreshold)
	}
	if cfg.Advisor.OptimizationThreshold != 0.1 {
		t.Errorf("expected OptimizationThreshold=0.1, got %v", cfg.Advisor.OptimizationThreshold)
	}
	if cfg.Advisor.DefaultCardinality != 2 {
		t.Errorf("expected DefaultCardinality=2, got %v", cfg.Advisor.DefaultCardinality)
	}
	if cfg.Advisor.PrimaryKeyColumn != "name" {
		t.Errorf("expected PrimaryKeyColumn=name, got %s", cfg.Advisor.PrimaryKeyColumn)
	}
	if cfg.Introspection.Type != "mysql" || cfg.Introspection.Host != "localhost" || cfg.Introspection.Port != 0 {
		t.Errorf("unexpected introspection defaults: %+v", cfg.Introspection)
	}
	if cfg.Introspection.ConnectTimeoutSeconds != 10 {
		t.Errorf("expected ConnectTimeoutSeconds=10, got %d", cfg.Introspection.ConnectTimeoutSeconds)
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config file, got nil")
	}
}

func TestLoad_InvalidConfigRejected(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
advisor:
  index_score_threshold: 1.5
introspection:
  database: "site1"
`)

	_, err := Load(path)
	if !errors.Is(err, apperrors.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestAdvisorConfig_Validate(t *testing.T) {
	valid := AdvisorConfig{IndexScoreThreshold: 0.3, OptimizationThreshold: 0.1, DefaultCardinality: 2}

	tests := []struct {
		name    string
		mutate  func(c *AdvisorConfig)
		wantErr bool
	}{
		{"defaults", func(c *AdvisorConfig) {}, false},
		{"score threshold of one", func(c *AdvisorConfig) { c.IndexScoreThreshold = 1 }, false},
		{"zero score threshold", func(c *AdvisorConfig) { c.IndexScoreThreshold = 0 }, true},
		{"score threshold above one", func(c *AdvisorConfig) { c.IndexScoreThreshold = 1.01 }, true},
		{"negative optimization threshold", func(c *AdvisorConfig) { c.OptimizationThreshold = -0.1 }, true},
		{"default cardinality below one", func(c *AdvisorConfig) { c.DefaultCardinality = 0.5 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				if !errors.Is(err, apperrors.ErrConfiguration) {
					t.Errorf("expected configuration error, got %v", err)
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestIntrospectionConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     IntrospectionConfig
		wantErr bool
	}{
		{"mysql", IntrospectionConfig{Type: "mysql", Host: "localhost", Port: 3306, Database: "site1"}, false},
		{"postgres", IntrospectionConfig{Type: "postgres", Host: "localhost", Port: 5432, Database: "app"}, false},
		{"snapshot", IntrospectionConfig{Type: "snapshot", SnapshotPath: "capture.yaml"}, false},
		{"unknown type", IntrospectionConfig{Type: "oracle", Host: "localhost", Port: 1521, Database: "x"}, true},
		{"snapshot without path", IntrospectionConfig{Type: "snapshot"}, true},
		{"missing host", IntrospectionConfig{Type: "mysql", Port: 3306, Database: "site1"}, true},
		{"bad port", IntrospectionConfig{Type: "mysql", Host: "localhost", Port: 70000, Database: "site1"}, true},
		{"negative port", IntrospectionConfig{Type: "mysql", Host: "localhost", Port: -1, Database: "site1"}, true},
		{"adapter default port", IntrospectionConfig{Type: "postgres", Host: "localhost", Database: "app"}, false},
		{"missing database", IntrospectionConfig{Type: "mysql", Host: "localhost", Port: 3306}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				if !errors.Is(err, apperrors.ErrConfiguration) {
					t.Errorf("expected configuration error, got %v", err)
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestIntrospectionConfig_AdapterConfig(t *testing.T) {
	cfg := IntrospectionConfig{
		Type:                  "mysql",
		Host:                  "db",
		Port:                  3306,
		User:                  "root",
		Password:              "pw",
		Database:              "site1",
		SSLMode:               "disable",
		ConnectTimeoutSeconds: 5,
	}

	m := cfg.AdapterConfig()
	if m["host"] != "db" || m["port"] != 3306 || m["password"] != "pw" || m["database"] != "site1" {
		t.Errorf("unexpected adapter config: %v", m)
	}
	if m["connect_timeout_seconds"] != 5 {
		t.Errorf("expected connect_timeout_seconds=5, got %v", m["connect_timeout_seconds"])
	}
}

func TestIntrospectionConfig_AdapterConfigOmitsUnsetPort(t *testing.T) {
	cfg := IntrospectionConfig{Type: "postgres", Host: "db", User: "u", Database: "app"}

	m := cfg.AdapterConfig()
	if _, ok := m["port"]; ok {
		t.Errorf("expected no port in adapter config, got %v", m["port"])
	}
}
