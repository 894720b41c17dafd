package datasource

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/ekaya-advisor/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-advisor/pkg/payload"
)

// Introspector fetches the raw material the index advisor works from.
// Records use the field names of the MySQL/MariaDB EXPLAIN output and of the
// table description shape understood by models.TableFromRecord.
// Each implementation owns its connection and must be closed when done.
type Introspector interface {
	// ExplainQueries returns the EXPLAIN rows for each query, keyed by the
	// query text as given. Queries the database refuses to explain are left
	// out of the result; a connection-level failure fails the whole call.
	ExplainQueries(ctx context.Context, queries []string) (map[string][]payload.Record, error)

	// DescribeTable returns the table's row count, columns and index rows.
	// A table that does not exist yields an error matching apperrors.ErrNotFound.
	DescribeTable(ctx context.Context, table string) (payload.Record, error)

	// ColumnStatistics returns engine-collected column statistics. Tables
	// without statistics yield an empty slice.
	ColumnStatistics(ctx context.Context, table string) ([]payload.Record, error)

	// Close releases the database connection.
	Close() error
}

// ConnectionTester is implemented by introspectors backed by a live database.
type ConnectionTester interface {
	// TestConnection verifies the database is reachable with valid credentials.
	TestConnection(ctx context.Context) error
}

// IntrospectionError wraps err as an introspection failure for the given step.
func IntrospectionError(step string, err error) error {
	return fmt.Errorf("%w: %s: %w", apperrors.ErrIntrospection, step, err)
}

// TableNotFoundError reports a table unknown to the database.
func TableNotFoundError(table string) error {
	return fmt.Errorf("%w: table %q: %w", apperrors.ErrIntrospection, table, apperrors.ErrNotFound)
}
