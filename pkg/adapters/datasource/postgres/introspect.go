package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-advisor/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-advisor/pkg/logging"
	"github.com/ekaya-inc/ekaya-advisor/pkg/payload"
	advisorsql "github.com/ekaya-inc/ekaya-advisor/pkg/sql"
)

// Tables are looked up along the search path, like unqualified names in a query.
const tableQuery = `
	SELECT c.relname AS table_name,
	       n.nspname AS table_schema,
	       GREATEST(c.reltuples, 0)::bigint AS total_rows
	FROM pg_class c
	JOIN pg_namespace n ON n.oid = c.relnamespace
	WHERE c.relname = $1
	  AND c.relkind IN ('r', 'p', 'm')
	  AND n.nspname = ANY(current_schemas(false))
	ORDER BY array_position(current_schemas(false), n.nspname)
	LIMIT 1`

const columnsQuery = `
	SELECT column_name AS "column",
	       is_nullable,
	       column_default AS "default",
	       data_type AS "type"
	FROM information_schema.columns
	WHERE table_schema = $1 AND table_name = $2
	ORDER BY ordinal_position`

const indexesQuery = `
	SELECT i.relname AS name,
	       ix.indisunique AS "unique",
	       k.ord AS sequence,
	       a.attname AS "column",
	       NOT a.attnotnull AS nullable
	FROM pg_index ix
	JOIN pg_class t ON t.oid = ix.indrelid
	JOIN pg_class i ON i.oid = ix.indexrelid
	JOIN pg_namespace n ON n.oid = t.relnamespace
	CROSS JOIN LATERAL unnest(ix.indkey::int2[]) WITH ORDINALITY AS k(attnum, ord)
	JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum
	WHERE n.nspname = $1 AND t.relname = $2
	ORDER BY ix.indisprimary DESC, i.relname, k.ord`

// avg_frequency is rows per distinct value. A negative n_distinct is the
// negated fraction of distinct rows. Histogram bounds are only exported for
// numeric columns.
const columnStatsQuery = `
	SELECT s.attname AS column_name,
	       CASE
	           WHEN s.n_distinct > 0 THEN GREATEST(c.reltuples, 1) / s.n_distinct
	           WHEN s.n_distinct < 0 THEN -1.0 / s.n_distinct
	       END::float8 AS avg_frequency,
	       s.avg_width::float8 AS avg_length,
	       s.null_frac::float8 AS nulls_ratio,
	       CASE
	           WHEN a.atttypid IN ('int2'::regtype, 'int4'::regtype, 'int8'::regtype,
	                               'float4'::regtype, 'float8'::regtype, 'numeric'::regtype)
	           THEN array_to_string(s.histogram_bounds, ',')
	       END AS histogram
	FROM pg_stats s
	JOIN pg_namespace n ON n.nspname = s.schemaname
	JOIN pg_class c ON c.relname = s.tablename AND c.relnamespace = n.oid
	JOIN pg_attribute a ON a.attrelid = c.oid AND a.attname = s.attname
	WHERE s.schemaname = $1 AND s.tablename = $2`

// ExplainQueries runs EXPLAIN (FORMAT JSON) for each query. A query the server
// rejects is logged and left out; connection failures fail the batch.
func (a *Adapter) ExplainQueries(ctx context.Context, queries []string) (map[string][]payload.Record, error) {
	result := make(map[string][]payload.Record, len(queries))

	for _, query := range queries {
		if _, done := result[query]; done {
			continue
		}

		stmt, err := advisorsql.NormalizeStatement(query)
		if err != nil {
			a.logger.Warn("Skipping query that cannot be explained",
				zap.String("query", logging.SanitizeQuery(query)),
				zap.Error(err))
			continue
		}

		var raw []byte
		if err := a.pool.QueryRow(ctx, "EXPLAIN (FORMAT JSON) "+stmt).Scan(&raw); err != nil {
			if isConnectionError(ctx, err) {
				return nil, datasource.IntrospectionError("explain", err)
			}
			a.logger.Warn("EXPLAIN failed",
				zap.String("query", logging.SanitizeQuery(query)),
				zap.String("error", logging.SanitizeError(err)))
			continue
		}

		records, err := planRecords(raw)
		if err != nil {
			return nil, datasource.IntrospectionError("explain", err)
		}
		result[query] = records
	}

	return result, nil
}

// DescribeTable returns the planner's row estimate, columns and index rows.
func (a *Adapter) DescribeTable(ctx context.Context, table string) (payload.Record, error) {
	tables, err := a.queryRecords(ctx, tableQuery, table)
	if err != nil {
		return nil, datasource.IntrospectionError("describe "+table, err)
	}
	if len(tables) == 0 {
		return nil, datasource.TableNotFoundError(table)
	}
	description := tables[0]
	schema := description.String("table_schema")

	columns, err := a.queryRecords(ctx, columnsQuery, schema, table)
	if err != nil {
		return nil, datasource.IntrospectionError("columns of "+table, err)
	}
	indexes, err := a.queryRecords(ctx, indexesQuery, schema, table)
	if err != nil {
		return nil, datasource.IntrospectionError("indexes of "+table, err)
	}

	description["schema"] = columns
	description["indexes"] = indexes
	return description, nil
}

// ColumnStatistics reads pg_stats for the table. Tables never analyzed
// report no statistics.
func (a *Adapter) ColumnStatistics(ctx context.Context, table string) ([]payload.Record, error) {
	tables, err := a.queryRecords(ctx, tableQuery, table)
	if err != nil {
		return nil, datasource.IntrospectionError("column statistics of "+table, err)
	}
	if len(tables) == 0 {
		return []payload.Record{}, nil
	}

	stats, err := a.queryRecords(ctx, columnStatsQuery, tables[0].String("table_schema"), table)
	if err != nil {
		return nil, datasource.IntrospectionError("column statistics of "+table, err)
	}
	return stats, nil
}

func (a *Adapter) queryRecords(ctx context.Context, query string, args ...any) ([]payload.Record, error) {
	rows, err := a.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, err
	}

	records := make([]payload.Record, len(maps))
	for i, m := range maps {
		records[i] = payload.Record(m)
	}
	return records, nil
}

// isConnectionError separates failures of the connection from failures of a
// single statement, which the server reports as a PgError.
func isConnectionError(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	var pgErr *pgconn.PgError
	return !errors.As(err, &pgErr)
}
