// Package postgres introspects PostgreSQL databases. Plans and catalog data
// are reshaped into the MySQL-style records the advisor reads.
package postgres

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-advisor/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-advisor/pkg/config"
	"github.com/ekaya-inc/ekaya-advisor/pkg/logging"
	"github.com/ekaya-inc/ekaya-advisor/pkg/retry"
)

// Adapter provides PostgreSQL introspection.
type Adapter struct {
	config *Config
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// buildConnectionString builds a PostgreSQL URL with proper escaping.
// IMPORTANT: All user-provided fields must be URL-escaped to handle special characters
// in passwords (e.g., @, /, #, ?) that would otherwise break URL parsing.
// The address goes through config.ResolveAddress, which brackets IPv6 hosts.
func buildConnectionString(cfg *Config) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = DefaultSSLMode()
	}

	connStr := fmt.Sprintf(
		"postgresql://%s:%s@%s/%s?sslmode=%s",
		url.QueryEscape(cfg.User),
		url.QueryEscape(cfg.Password),
		config.ResolveAddress(cfg.Host, cfg.Port),
		url.QueryEscape(cfg.Database),
		sslMode,
	)
	if seconds := int(cfg.ConnectTimeout.Seconds()); seconds > 0 {
		connStr += fmt.Sprintf("&connect_timeout=%d", seconds)
	}
	return connStr
}

// NewAdapter creates a connection pool and waits until the server answers,
// retrying while it is still starting up. If logger is nil, a no-op logger is used.
func NewAdapter(ctx context.Context, cfg *Config, logger *zap.Logger) (*Adapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	connStr := buildConnectionString(cfg)

	pool, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (*pgxpool.Pool, error) {
		pool, err := pgxpool.New(ctx, connStr)
		if err != nil {
			return nil, err
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return pool, nil
	})
	if err != nil {
		logger.Error("Failed to connect to PostgreSQL",
			zap.String("conn_str", logging.SanitizeConnectionString(connStr)),
			zap.String("error", logging.SanitizeError(err)))
		return nil, datasource.IntrospectionError("connect to postgres", err)
	}

	logger.Debug("Connected to PostgreSQL",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Database))

	return &Adapter{
		config: cfg,
		pool:   pool,
		logger: logger,
	}, nil
}

// TestConnection verifies the database is reachable with valid credentials.
// It checks:
// 1. Server connectivity (ping)
// 2. Correct database name (to prevent connecting to wrong/default database)
func (a *Adapter) TestConnection(ctx context.Context) error {
	if err := a.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	var currentDB string
	if err := a.pool.QueryRow(ctx, "SELECT current_database()").Scan(&currentDB); err != nil {
		return fmt.Errorf("failed to get current database name: %w", err)
	}

	// PostgreSQL database names are case-sensitive, but unquoted names fold to
	// lower case, so compare case-insensitively.
	if !strings.EqualFold(currentDB, a.config.Database) {
		return fmt.Errorf("connected to wrong database: expected %q but connected to %q", a.config.Database, currentDB)
	}

	return nil
}

// Close releases the connection pool.
func (a *Adapter) Close() error {
	if a.pool != nil {
		a.pool.Close()
	}
	return nil
}

var (
	_ datasource.Introspector     = (*Adapter)(nil)
	_ datasource.ConnectionTester = (*Adapter)(nil)
)
