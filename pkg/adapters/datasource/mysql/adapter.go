// Package mysql introspects MySQL and MariaDB databases: EXPLAIN output,
// information_schema table descriptions and MariaDB engine-independent
// column statistics.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"

	mysqldriver "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-advisor/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-advisor/pkg/config"
	"github.com/ekaya-inc/ekaya-advisor/pkg/logging"
	"github.com/ekaya-inc/ekaya-advisor/pkg/retry"
)

// Adapter provides MySQL/MariaDB introspection over database/sql.
type Adapter struct {
	config *Config
	db     *sql.DB
	logger *zap.Logger
}

// tlsConfigName maps the shared ssl_mode vocabulary onto the driver's tls parameter.
func tlsConfigName(sslMode string) string {
	switch sslMode {
	case "", "disable":
		return ""
	case "verify-ca", "verify-full":
		return "true"
	default:
		return "skip-verify"
	}
}

// buildDSN builds a go-sql-driver DSN. The driver's Config handles escaping of
// credentials. Loopback hosts are redirected to the Docker host gateway when
// running in a container.
func buildDSN(cfg *Config) string {
	mc := mysqldriver.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = config.ResolveAddress(cfg.Host, cfg.Port)
	mc.DBName = cfg.Database
	mc.Timeout = cfg.ConnectTimeout
	mc.TLSConfig = tlsConfigName(cfg.SSLMode)
	return mc.FormatDSN()
}

// NewAdapter opens a connection pool and waits until the server answers,
// retrying transient failures such as a server that is still starting.
// If logger is nil, a no-op logger is used.
func NewAdapter(ctx context.Context, cfg *Config, logger *zap.Logger) (*Adapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dsn := buildDSN(cfg)
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, datasource.IntrospectionError("open mysql", err)
	}
	db.SetMaxOpenConns(2)

	err = retry.DoIfRetryable(ctx, retry.DefaultConfig(), func() error {
		return db.PingContext(ctx)
	})
	if err != nil {
		_ = db.Close()
		logger.Error("Failed to connect to MySQL",
			zap.String("dsn", logging.SanitizeConnectionString(dsn)),
			zap.String("error", logging.SanitizeError(err)))
		return nil, datasource.IntrospectionError("connect to mysql", err)
	}

	logger.Debug("Connected to MySQL",
		zap.String("addr", net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))),
		zap.String("database", cfg.Database))

	return &Adapter{
		config: cfg,
		db:     db,
		logger: logger,
	}, nil
}

// TestConnection verifies the server is reachable and the configured
// database is the one selected.
func (a *Adapter) TestConnection(ctx context.Context) error {
	if err := a.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	var currentDB sql.NullString
	if err := a.db.QueryRowContext(ctx, "SELECT DATABASE()").Scan(&currentDB); err != nil {
		return fmt.Errorf("failed to get current database name: %w", err)
	}
	if currentDB.String != a.config.Database {
		return fmt.Errorf("connected to wrong database: expected %q but connected to %q", a.config.Database, currentDB.String)
	}
	return nil
}

// Close releases the connection pool.
func (a *Adapter) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

var (
	_ datasource.Introspector     = (*Adapter)(nil)
	_ datasource.ConnectionTester = (*Adapter)(nil)
)
