package mysql

import (
	"context"
	"database/sql"
	"errors"

	mysqldriver "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-advisor/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-advisor/pkg/logging"
	"github.com/ekaya-inc/ekaya-advisor/pkg/payload"
	advisorsql "github.com/ekaya-inc/ekaya-advisor/pkg/sql"
)

const (
	errNoSuchTable       = 1146 // ER_NO_SUCH_TABLE
	errTableAccessDenied = 1142 // ER_TABLEACCESS_DENIED_ERROR
)

const tableQuery = `
	SELECT TABLE_NAME AS table_name, COALESCE(TABLE_ROWS, 0) AS total_rows
	FROM information_schema.TABLES
	WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?`

// Cardinality of a column is taken from the indexes it leads.
const columnsQuery = `
	SELECT
		c.COLUMN_NAME AS ` + "`column`" + `,
		c.IS_NULLABLE AS is_nullable,
		c.COLUMN_DEFAULT AS ` + "`default`" + `,
		c.COLUMN_TYPE AS ` + "`type`" + `,
		(SELECT MAX(s.CARDINALITY)
		 FROM information_schema.STATISTICS s
		 WHERE s.TABLE_SCHEMA = c.TABLE_SCHEMA
		   AND s.TABLE_NAME = c.TABLE_NAME
		   AND s.COLUMN_NAME = c.COLUMN_NAME
		   AND s.SEQ_IN_INDEX = 1) AS cardinality
	FROM information_schema.COLUMNS c
	WHERE c.TABLE_SCHEMA = DATABASE() AND c.TABLE_NAME = ?
	ORDER BY c.ORDINAL_POSITION`

const indexesQuery = `
	SELECT
		INDEX_NAME AS name,
		NON_UNIQUE = 0 AS ` + "`unique`" + `,
		CARDINALITY AS cardinality,
		SEQ_IN_INDEX AS sequence,
		NULLABLE = 'YES' AS nullable,
		COLUMN_NAME AS ` + "`column`" + `
	FROM information_schema.STATISTICS
	WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?
	ORDER BY INDEX_NAME <> 'PRIMARY', INDEX_NAME, SEQ_IN_INDEX`

// Only the binary histogram types decode to bucket boundaries; JSON_HB
// histograms are left out.
const columnStatsQuery = `
	SELECT
		column_name,
		avg_frequency,
		avg_length,
		nulls_ratio,
		CASE WHEN hist_type IN ('SINGLE_PREC_HB', 'DOUBLE_PREC_HB')
			THEN DECODE_HISTOGRAM(hist_type, histogram)
		END AS histogram
	FROM mysql.column_stats
	WHERE db_name = DATABASE() AND table_name = ?`

// ExplainQueries runs EXPLAIN for each query. A query the server refuses is
// logged and left out; context cancellation and lost connections fail the batch.
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

		rows, err := a.db.QueryContext(ctx, "EXPLAIN "+stmt)
		if err == nil {
			var records []payload.Record
			records, err = scanRecords(rows)
			if err == nil {
				result[query] = planRows(records)
				continue
			}
		}

		if isConnectionError(ctx, err) {
			return nil, datasource.IntrospectionError("explain", err)
		}
		a.logger.Warn("EXPLAIN failed",
			zap.String("query", logging.SanitizeQuery(query)),
			zap.String("error", logging.SanitizeError(err)))
	}

	return result, nil
}

// planRows drops rows without a table (e.g. "No tables used").
func planRows(records []payload.Record) []payload.Record {
	out := records[:0]
	for _, rec := range records {
		if rec.Has("table") {
			out = append(out, rec)
		}
	}
	return out
}

// DescribeTable returns the table's row estimate, columns and index rows.
func (a *Adapter) DescribeTable(ctx context.Context, table string) (payload.Record, error) {
	rows, err := a.db.QueryContext(ctx, tableQuery, table)
	if err != nil {
		return nil, datasource.IntrospectionError("describe "+table, err)
	}
	tables, err := scanRecords(rows)
	if err != nil {
		return nil, datasource.IntrospectionError("describe "+table, err)
	}
	if len(tables) == 0 {
		return nil, datasource.TableNotFoundError(table)
	}
	description := tables[0]

	rows, err = a.db.QueryContext(ctx, columnsQuery, table)
	if err != nil {
		return nil, datasource.IntrospectionError("columns of "+table, err)
	}
	columns, err := scanRecords(rows)
	if err != nil {
		return nil, datasource.IntrospectionError("columns of "+table, err)
	}

	rows, err = a.db.QueryContext(ctx, indexesQuery, table)
	if err != nil {
		return nil, datasource.IntrospectionError("indexes of "+table, err)
	}
	indexes, err := scanRecords(rows)
	if err != nil {
		return nil, datasource.IntrospectionError("indexes of "+table, err)
	}

	description["schema"] = columns
	description["indexes"] = indexes
	return description, nil
}

// ColumnStatistics reads MariaDB's mysql.column_stats. Servers without that
// table (MySQL) or without the privilege to read it report no statistics.
func (a *Adapter) ColumnStatistics(ctx context.Context, table string) ([]payload.Record, error) {
	rows, err := a.db.QueryContext(ctx, columnStatsQuery, table)
	if err != nil {
		var mysqlErr *mysqldriver.MySQLError
		if errors.As(err, &mysqlErr) && (mysqlErr.Number == errNoSuchTable || mysqlErr.Number == errTableAccessDenied) {
			a.logger.Debug("Column statistics unavailable",
				zap.String("table", table),
				zap.Uint16("mysql_error", mysqlErr.Number))
			return []payload.Record{}, nil
		}
		return nil, datasource.IntrospectionError("column statistics of "+table, err)
	}

	stats, err := scanRecords(rows)
	if err != nil {
		return nil, datasource.IntrospectionError("column statistics of "+table, err)
	}
	return stats, nil
}

// isConnectionError separates failures of the connection from failures of a
// single statement.
func isConnectionError(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	if errors.Is(err, mysqldriver.ErrInvalidConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var mysqlErr *mysqldriver.MySQLError
	return !errors.As(err, &mysqlErr)
}

// scanRecords reads all rows into records keyed by column label. Text values
// arrive as []byte and are converted to strings. rows is always closed.
func scanRecords(rows *sql.Rows) ([]payload.Record, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	records := []payload.Record{}
	for rows.Next() {
		values := make([]any, len(columns))
		targets := make([]any, len(columns))
		for i := range values {
			targets[i] = &values[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, err
		}

		rec := make(payload.Record, len(columns))
		for i, name := range columns {
			rec[name] = normalizeValue(values[i])
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
