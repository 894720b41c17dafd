package models

import (
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-advisor/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-advisor/pkg/payload"
)

// The constructors below are the only place introspection payloads are read.
// Field names follow the agent's describe/explain output; generic names are
// accepted as aliases.

// ExplainRowFromRecord converts one EXPLAIN output row.
func ExplainRowFromRecord(rec payload.Record) (ExplainRow, error) {
	table, err := rec.RequireString("table")
	if err != nil {
		return ExplainRow{}, introspectionError("explain row", err)
	}

	row := ExplainRow{
		SelectType: strings.ToUpper(rec.String("select_type")),
		Table:      table,
		ScanType:   strings.ToUpper(rec.String("type", "scan_type")),
		Key:        rec.OptionalString("key"),
		Ref:        rec.OptionalString("ref"),
		Extra:      rec.String("Extra", "extra"),
	}

	if row.PossibleKeys, err = possibleKeys(rec); err != nil {
		return ExplainRow{}, introspectionError("explain row", err)
	}
	if row.KeyLen, err = rec.OptionalInt64("key_len"); err != nil {
		return ExplainRow{}, introspectionError("explain row", err)
	}
	if row.Rows, err = rec.Int64("rows"); err != nil {
		return ExplainRow{}, introspectionError("explain row", err)
	}
	return row, nil
}

// ExplainPlanFromRecords converts a full EXPLAIN output.
func ExplainPlanFromRecords(recs []payload.Record) ([]ExplainRow, error) {
	plan := make([]ExplainRow, 0, len(recs))
	for i, rec := range recs {
		row, err := ExplainRowFromRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		plan = append(plan, row)
	}
	return plan, nil
}

func possibleKeys(rec payload.Record) ([]string, error) {
	raw, ok := rec.Raw("possible_keys")
	if !ok || payload.IsNull(raw) {
		return nil, nil
	}
	if list, isList := raw.([]any); isList {
		keys := make([]string, 0, len(list))
		for _, item := range list {
			if k := strings.TrimSpace(payload.StringValue(item)); k != "" {
				keys = append(keys, k)
			}
		}
		return keys, nil
	}
	var keys []string
	for _, part := range strings.Split(payload.StringValue(raw), ",") {
		if k := strings.TrimSpace(part); k != "" {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// TableFromRecord converts a table description with its nested schema and indexes.
func TableFromRecord(rec payload.Record) (*Table, error) {
	name, err := rec.RequireString("table_name", "name")
	if err != nil {
		return nil, introspectionError("table", err)
	}

	totalRows, err := rec.Int64("total_rows")
	if err != nil {
		return nil, introspectionError("table "+name, err)
	}

	schema, err := rec.Records("schema", "columns")
	if err != nil {
		return nil, introspectionError("table "+name, err)
	}
	indexes, err := rec.Records("indexes")
	if err != nil {
		return nil, introspectionError("table "+name, err)
	}

	table := &Table{
		Name:      name,
		TotalRows: totalRows,
		Columns:   make([]Column, 0, len(schema)),
		Indexes:   make([]Index, 0, len(indexes)),
	}

	for i, colRec := range schema {
		col, err := ColumnFromRecord(colRec)
		if err != nil {
			return nil, fmt.Errorf("table %s column %d: %w", name, i, err)
		}
		table.Columns = append(table.Columns, col)
	}

	for i, idxRec := range indexes {
		idx, err := IndexFromRecord(idxRec, name)
		if err != nil {
			return nil, fmt.Errorf("table %s index row %d: %w", name, i, err)
		}
		table.Indexes = append(table.Indexes, idx)
	}

	return table, nil
}

// ColumnFromRecord converts one schema entry of a table description.
func ColumnFromRecord(rec payload.Record) (Column, error) {
	name, err := rec.RequireString("column", "name")
	if err != nil {
		return Column{}, introspectionError("column", err)
	}

	col := Column{
		Name:     name,
		Default:  rec.String("default"),
		DataType: rec.String("type", "data_type"),
	}
	if col.Cardinality, err = rec.OptionalFloat64("cardinality"); err != nil {
		return Column{}, introspectionError("column "+name, err)
	}
	if col.IsNullable, err = rec.Bool("is_nullable", "nullable"); err != nil {
		return Column{}, introspectionError("column "+name, err)
	}
	return col, nil
}

// IndexFromRecord converts one index row of a table description.
func IndexFromRecord(rec payload.Record, table string) (Index, error) {
	name, err := rec.RequireString("name")
	if err != nil {
		return Index{}, introspectionError("index", err)
	}
	column, err := rec.RequireString("column")
	if err != nil {
		return Index{}, introspectionError("index "+name, err)
	}

	idx := Index{
		Name:     name,
		Table:    table,
		Column:   column,
		Sequence: 1,
		Nullable: true,
	}

	seq, err := rec.Int64("sequence")
	if err != nil {
		return Index{}, introspectionError("index "+name, err)
	}
	if seq > 0 {
		idx.Sequence = int(seq)
	}
	if idx.Unique, err = rec.OptionalBool("unique"); err != nil {
		return Index{}, introspectionError("index "+name, err)
	}
	if idx.Cardinality, err = rec.OptionalFloat64("cardinality"); err != nil {
		return Index{}, introspectionError("index "+name, err)
	}
	if rec.Has("nullable") {
		if idx.Nullable, err = rec.Bool("nullable"); err != nil {
			return Index{}, introspectionError("index "+name, err)
		}
	}
	return idx, nil
}

// ColumnStatisticFromRecord converts one column statistics row. The histogram is
// either a comma separated list of bucket boundaries or a list of numbers.
func ColumnStatisticFromRecord(rec payload.Record) (ColumnStatistic, error) {
	name, err := rec.RequireString("column_name")
	if err != nil {
		return ColumnStatistic{}, introspectionError("column statistic", err)
	}

	stat := ColumnStatistic{ColumnName: name}
	if stat.AvgFrequency, err = rec.Float64("avg_frequency"); err != nil {
		return ColumnStatistic{}, introspectionError("column statistic "+name, err)
	}
	if stat.AvgLength, err = rec.Float64("avg_length"); err != nil {
		return ColumnStatistic{}, introspectionError("column statistic "+name, err)
	}
	if stat.NullsRatio, err = rec.OptionalFloat64("nulls_ratio"); err != nil {
		return ColumnStatistic{}, introspectionError("column statistic "+name, err)
	}
	raw, _ := rec.Raw("histogram")
	if stat.Histogram, err = parseHistogram(raw); err != nil {
		return ColumnStatistic{}, introspectionError("column statistic "+name, err)
	}
	return stat, nil
}

// ColumnStatisticsFromRecords converts the statistics of one table.
func ColumnStatisticsFromRecords(recs []payload.Record) ([]ColumnStatistic, error) {
	stats := make([]ColumnStatistic, 0, len(recs))
	for _, rec := range recs {
		stat, err := ColumnStatisticFromRecord(rec)
		if err != nil {
			return nil, err
		}
		stats = append(stats, stat)
	}
	return stats, nil
}

func parseHistogram(raw any) ([]float64, error) {
	bins := []float64{}
	if payload.IsNull(raw) {
		return bins, nil
	}

	var parts []any
	if list, ok := raw.([]any); ok {
		parts = list
	} else {
		s := strings.TrimSpace(payload.StringValue(raw))
		if s == "" {
			return bins, nil
		}
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
	}

	for _, p := range parts {
		f, err := payload.Float64Value(p)
		if err != nil {
			return nil, fmt.Errorf("histogram: %w", err)
		}
		bins = append(bins, f)
	}
	return bins, nil
}

func introspectionError(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", apperrors.ErrIntrospection, what, err)
}
