// Package testhelpers starts shared database containers for integration tests.
package testhelpers

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	_ "github.com/go-sql-driver/mysql" // MariaDB driver for database/sql (seeding)
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// MariaDBImage supports DECODE_HISTOGRAM and persistent column statistics.
	MariaDBImage = "mariadb:11.4"

	// PostgresImage is the PostgreSQL server used by adapter integration tests.
	PostgresImage = "postgres:17-alpine"

	testUser     = "advisor"
	testPassword = "test_password"
	testDatabase = "advisor_test"
)

// TestDB holds a shared test database container and its connection settings.
type TestDB struct {
	Container testcontainers.Container
	Host      string
	Port      int
	User      string
	Password  string
	Database  string
}

// AdapterConfig returns the connection settings in the form introspection
// adapter factories take.
func (db *TestDB) AdapterConfig() map[string]any {
	return map[string]any{
		"host":     db.Host,
		"port":     db.Port,
		"user":     db.User,
		"password": db.Password,
		"database": db.Database,
		"ssl_mode": "disable",
	}
}

// MariaDB holds the shared MariaDB container with a database/sql handle for seeding.
type MariaDB struct {
	*TestDB
	DB *sql.DB
}

// Postgres holds the shared PostgreSQL container with a pool for seeding.
type Postgres struct {
	*TestDB
	Pool *pgxpool.Pool
}

var (
	sharedMariaDB     *MariaDB
	sharedMariaDBOnce sync.Once
	sharedMariaDBErr  error

	sharedPostgres     *Postgres
	sharedPostgresOnce sync.Once
	sharedPostgresErr  error
)

// GetTestMariaDB returns a shared MariaDB container for integration tests.
// The container is created once and reused across all tests in the run.
func GetTestMariaDB(t *testing.T) *MariaDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedMariaDBOnce.Do(func() {
		sharedMariaDB, sharedMariaDBErr = setupMariaDB()
	})

	if sharedMariaDBErr != nil {
		t.Fatalf("Failed to setup MariaDB: %v", sharedMariaDBErr)
	}

	return sharedMariaDB
}

// GetTestPostgres returns a shared PostgreSQL container for integration tests.
func GetTestPostgres(t *testing.T) *Postgres {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedPostgresOnce.Do(func() {
		sharedPostgres, sharedPostgresErr = setupPostgres()
	})

	if sharedPostgresErr != nil {
		t.Fatalf("Failed to setup PostgreSQL: %v", sharedPostgresErr)
	}

	return sharedPostgres
}

func startContainer(ctx context.Context, req testcontainers.ContainerRequest, port nat.Port) (*TestDB, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	mapped, err := container.MappedPort(ctx, port)
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}
	portNum, err := strconv.Atoi(mapped.Port())
	if err != nil {
		return nil, fmt.Errorf("invalid container port %q: %w", mapped.Port(), err)
	}

	return &TestDB{
		Container: container,
		Host:      host,
		Port:      portNum,
		User:      testUser,
		Password:  testPassword,
		Database:  testDatabase,
	}, nil
}

func setupMariaDB() (*MariaDB, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        MariaDBImage,
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MARIADB_ROOT_PASSWORD": testPassword,
			"MARIADB_DATABASE":      testDatabase,
			"MARIADB_USER":          testUser,
			"MARIADB_PASSWORD":      testPassword,
		},
		// The entrypoint starts a temporary server for initialization first.
		WaitingFor: wait.ForAll(
			wait.ForLog("ready for connections").WithOccurrence(2),
			wait.ForListeningPort("3306/tcp"),
		).WithStartupTimeout(120 * time.Second),
	}

	testDB, err := startContainer(ctx, req, "3306")
	if err != nil {
		return nil, err
	}

	// Root can read mysql.column_stats; the application user cannot by default.
	testDB.User = "root"

	dsn := fmt.Sprintf("root:%s@tcp(%s:%d)/%s", testPassword, testDB.Host, testDB.Port, testDatabase)
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MariaDB connection: %w", err)
	}

	// Verify connection with retry
	for i := 0; i < 20; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	if err != nil {
		return nil, fmt.Errorf("MariaDB not reachable: %w", err)
	}

	return &MariaDB{TestDB: testDB, DB: db}, nil
}

func setupPostgres() (*Postgres, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        PostgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       testDatabase,
			"POSTGRES_USER":     testUser,
			"POSTGRES_PASSWORD": testPassword,
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	testDB, err := startContainer(ctx, req, "5432")
	if err != nil {
		return nil, err
	}

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		testUser, testPassword, testDB.Host, testDB.Port, testDatabase)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection with retry
	for i := 0; i < 10; i++ {
		if err = pool.Ping(ctx); err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	if err != nil {
		return nil, fmt.Errorf("PostgreSQL not reachable: %w", err)
	}

	return &Postgres{TestDB: testDB, Pool: pool}, nil
}
