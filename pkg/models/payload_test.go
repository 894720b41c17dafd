package models

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-advisor/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-advisor/pkg/payload"
)

func decodeRecord(t *testing.T, doc string) payload.Record {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(doc), &m))
	return payload.Record(m)
}

func TestExplainRowFromRecord(t *testing.T) {
	rec := decodeRecord(t, `{
		"id": 1,
		"select_type": "simple",
		"table": "tabDocType",
		"type": "all",
		"possible_keys": "owner_index,modified",
		"key": null,
		"key_len": "",
		"ref": null,
		"rows": "100,000",
		"Extra": "Using where"
	}`)

	row, err := ExplainRowFromRecord(rec)
	require.NoError(t, err)

	assert.Equal(t, SelectSimple, row.SelectType)
	assert.Equal(t, ScanAll, row.ScanType)
	assert.Equal(t, "tabDocType", row.Table)
	assert.Equal(t, []string{"owner_index", "modified"}, row.PossibleKeys)
	assert.Nil(t, row.Key)
	assert.Nil(t, row.KeyLen)
	assert.Nil(t, row.Ref)
	assert.Equal(t, int64(100000), row.Rows)
	assert.Equal(t, "Using where", row.Extra)
}

func TestExplainRowFromRecord_DriverBytes(t *testing.T) {
	rec := payload.Record{
		"select_type": []byte("SIMPLE"),
		"table":       []byte("tabNote"),
		"type":        []byte("ref"),
		"key":         []byte("owner"),
		"key_len":     []byte("563"),
		"ref":         []byte("const"),
		"rows":        []byte("12"),
	}

	row, err := ExplainRowFromRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, ScanRef, row.ScanType)
	require.NotNil(t, row.Key)
	assert.Equal(t, "owner", *row.Key)
	require.NotNil(t, row.KeyLen)
	assert.Equal(t, int64(563), *row.KeyLen)
	assert.Equal(t, int64(12), row.Rows)
}

func TestExplainRowFromRecord_Invalid(t *testing.T) {
	_, err := ExplainRowFromRecord(payload.Record{"type": "ALL"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrIntrospection))

	_, err = ExplainPlanFromRecords([]payload.Record{{"table": "t", "rows": "lots"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrIntrospection))
	assert.Contains(t, err.Error(), "row 0")
}

func TestTableFromRecord(t *testing.T) {
	rec := decodeRecord(t, `{
		"table_name": "tabDocType",
		"total_rows": 100000,
		"schema": [
			{"column": "name", "type": "varchar(140)", "is_nullable": false, "default": null, "cardinality": 100000},
			{"column": "owner", "type": "varchar(140)", "is_nullable": "YES", "default": null},
			{"column": "_comments", "type": "longtext", "is_nullable": true, "default": null}
		],
		"indexes": [
			{"name": "PRIMARY", "unique": true, "cardinality": 100000, "sequence": 1, "nullable": "", "column": "name"},
			{"name": "owner_modified", "unique": false, "cardinality": null, "sequence": 2, "nullable": "YES", "column": "modified"},
			{"name": "owner_modified", "unique": false, "cardinality": 150, "sequence": 1, "nullable": "YES", "column": "owner"}
		]
	}`)

	table, err := TableFromRecord(rec)
	require.NoError(t, err)

	assert.Equal(t, "tabDocType", table.Name)
	assert.Equal(t, int64(100000), table.TotalRows)
	require.Len(t, table.Columns, 3)

	name := table.Columns[0]
	require.NotNil(t, name.Cardinality)
	assert.Equal(t, 100000.0, *name.Cardinality)
	assert.False(t, name.IsNullable)
	assert.Equal(t, "varchar(140)", name.DataType)

	owner := table.Columns[1]
	assert.Nil(t, owner.Cardinality)
	assert.True(t, owner.IsNullable)

	require.Len(t, table.Indexes, 3)
	primary := table.Indexes[0]
	assert.Equal(t, "tabDocType", primary.Table, "index rows inherit the table name")
	require.NotNil(t, primary.Unique)
	assert.True(t, *primary.Unique)
	assert.False(t, primary.Nullable)

	assert.Equal(t, 2, table.Indexes[1].Sequence)
	assert.Nil(t, table.Indexes[1].Cardinality)
}

func TestTableFromRecord_Aliases(t *testing.T) {
	rec := payload.Record{
		"name":       "tabNote",
		"total_rows": "20",
		"schema": []any{
			map[string]any{"name": "title", "data_type": "varchar(140)", "nullable": "NO"},
		},
	}

	table, err := TableFromRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, "tabNote", table.Name)
	require.Len(t, table.Columns, 1)
	assert.Equal(t, "title", table.Columns[0].Name)
	assert.Equal(t, "varchar(140)", table.Columns[0].DataType)
	assert.Empty(t, table.Indexes)
}

func TestTableFromRecord_Invalid(t *testing.T) {
	tests := []struct {
		name string
		rec  payload.Record
	}{
		{name: "missing name", rec: payload.Record{"total_rows": 1}},
		{name: "bad row count", rec: payload.Record{"table_name": "t", "total_rows": "many"}},
		{name: "schema not a list", rec: payload.Record{"table_name": "t", "schema": "x"}},
		{name: "column without name", rec: payload.Record{"table_name": "t", "schema": []any{map[string]any{"type": "int"}}}},
		{name: "index without column", rec: payload.Record{"table_name": "t", "indexes": []any{map[string]any{"name": "i"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := TableFromRecord(tt.rec)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrIntrospection))
		})
	}
}

func TestColumnStatisticFromRecord(t *testing.T) {
	tests := []struct {
		name      string
		rec       payload.Record
		want      ColumnStatistic
		wantError bool
	}{
		{
			name: "delimited histogram",
			rec:  payload.Record{"column_name": "creation", "avg_frequency": "1.0000", "avg_length": 8, "nulls_ratio": "0.0000", "histogram": "0.1,0.25, 0.5,1"},
			want: ColumnStatistic{ColumnName: "creation", AvgFrequency: 1, AvgLength: 8, NullsRatio: ptrFloat(0), Histogram: []float64{0.1, 0.25, 0.5, 1}},
		},
		{
			name: "no histogram",
			rec:  payload.Record{"column_name": "owner", "avg_frequency": 1000.0, "avg_length": 15.5, "nulls_ratio": nil, "histogram": nil},
			want: ColumnStatistic{ColumnName: "owner", AvgFrequency: 1000, AvgLength: 15.5, Histogram: []float64{}},
		},
		{
			name: "list histogram",
			rec:  payload.Record{"column_name": "idx", "avg_frequency": 2, "avg_length": 4, "histogram": []any{1, 2.5}},
			want: ColumnStatistic{ColumnName: "idx", AvgFrequency: 2, AvgLength: 4, Histogram: []float64{1, 2.5}},
		},
		{
			name:      "garbage histogram",
			rec:       payload.Record{"column_name": "idx", "histogram": "0.1,abc"},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ColumnStatisticFromRecord(tt.rec)
			if tt.wantError {
				require.Error(t, err)
				assert.True(t, errors.Is(err, apperrors.ErrIntrospection))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
