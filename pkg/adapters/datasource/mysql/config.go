package mysql

import (
	"fmt"
	"time"
)

// Config contains MySQL/MariaDB connection options.
type Config struct {
	Host           string
	Port           int
	User           string
	Password       string
	Database       string
	SSLMode        string // "disable", "require", "verify-ca", "verify-full"
	ConnectTimeout time.Duration
}

// DefaultPort returns the default MySQL port.
func DefaultPort() int {
	return 3306
}

// DefaultConnectTimeout bounds the dial of a single connection attempt.
func DefaultConnectTimeout() time.Duration {
	return 10 * time.Second
}

// FromMap creates a Config from a generic config map.
func FromMap(config map[string]any) (*Config, error) {
	cfg := &Config{
		Port:           DefaultPort(),
		SSLMode:        "disable",
		ConnectTimeout: DefaultConnectTimeout(),
	}

	if host, ok := config["host"].(string); ok && host != "" {
		cfg.Host = host
	} else {
		return nil, fmt.Errorf("host is required")
	}

	if port, ok := config["port"].(float64); ok { // JSON numbers are float64
		cfg.Port = int(port)
	} else if port, ok := config["port"].(int); ok {
		cfg.Port = port
	}

	if user, ok := config["user"].(string); ok && user != "" {
		cfg.User = user
	} else {
		return nil, fmt.Errorf("user is required")
	}

	if password, ok := config["password"].(string); ok {
		cfg.Password = password
	}

	if database, ok := config["database"].(string); ok && database != "" {
		cfg.Database = database
	} else {
		return nil, fmt.Errorf("database is required")
	}

	if sslMode, ok := config["ssl_mode"].(string); ok && sslMode != "" {
		cfg.SSLMode = sslMode
	}

	if seconds, ok := config["connect_timeout_seconds"].(float64); ok && seconds > 0 {
		cfg.ConnectTimeout = time.Duration(seconds * float64(time.Second))
	} else if seconds, ok := config["connect_timeout_seconds"].(int); ok && seconds > 0 {
		cfg.ConnectTimeout = time.Duration(seconds) * time.Second
	}

	return cfg, nil
}
