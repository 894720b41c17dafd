package models

import (
	"fmt"
	"sort"
)

// Column is a column of a described table.
type Column struct {
	Name        string   `json:"name"`
	Cardinality *float64 `json:"cardinality,omitempty"` // distinct values; nil when unknown
	IsNullable  bool     `json:"is_nullable"`
	Default     string   `json:"default"`
	DataType    string   `json:"data_type"`
}

// Index is one row of an index definition. A composite index is several rows
// sharing Name, ordered by Sequence (1-based).
type Index struct {
	Name        string   `json:"name"`
	Table       string   `json:"table"`
	Column      string   `json:"column"`
	Sequence    int      `json:"sequence"`
	Unique      *bool    `json:"unique,omitempty"`
	Cardinality *float64 `json:"cardinality,omitempty"`
	Nullable    bool     `json:"nullable"`
}

// IndexKey identifies an index row. Two rows are the same logical entry only
// when table, column and sequence all agree.
type IndexKey struct {
	Table    string
	Column   string
	Sequence int
}

// Key returns the identity of the index row.
func (i Index) Key() IndexKey {
	return IndexKey{Table: i.Table, Column: i.Column, Sequence: i.Sequence}
}

// Equal compares index rows by (table, column, sequence) only.
func (i Index) Equal(other Index) bool {
	return i.Key() == other.Key()
}

func (i Index) String() string {
	return fmt.Sprintf("Index(`%s`.`%s`#%d)", i.Table, i.Column, i.Sequence)
}

// IndexGroup is a reconstructed (possibly composite) index.
type IndexGroup struct {
	Name    string
	Columns []Index // ascending Sequence
}

// ColumnStatistic is the engine's persistent statistic for one column.
type ColumnStatistic struct {
	ColumnName   string    `json:"column_name"`
	AvgFrequency float64   `json:"avg_frequency"` // average number of rows sharing a value
	AvgLength    float64   `json:"avg_length"`
	NullsRatio   *float64  `json:"nulls_ratio,omitempty"`
	Histogram    []float64 `json:"histogram"`
}

// Table is a point-in-time description of a table. TotalRows may be stale;
// refreshing it is the caller's concern.
type Table struct {
	Name      string   `json:"name"`
	TotalRows int64    `json:"total_rows"`
	Columns   []Column `json:"schema"`
	Indexes   []Index  `json:"indexes"`
}

// HasColumn reports whether the table schema contains a column called name.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.Column(name)
	return ok
}

// Column returns the schema entry for name.
func (t *Table) Column(name string) (*Column, bool) {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// UpdateCardinality estimates unknown column cardinality from statistics.
// The average frequency is total_rows / cardinality, so cardinality is
// total_rows / avg_frequency. Known cardinality is never overwritten.
func (t *Table) UpdateCardinality(stats []ColumnStatistic) {
	for _, stat := range stats {
		if stat.AvgFrequency <= 0 {
			continue
		}
		for i := range t.Columns {
			col := &t.Columns[i]
			if col.Name != stat.ColumnName {
				continue
			}
			if col.Cardinality != nil && *col.Cardinality != 0 {
				continue
			}
			estimate := float64(t.TotalRows) / stat.AvgFrequency
			col.Cardinality = &estimate
		}
	}
}

// IndexGroups groups index rows by index name, in order of first appearance,
// each group sorted by sequence.
func (t *Table) IndexGroups() []IndexGroup {
	var groups []IndexGroup
	position := make(map[string]int)

	for _, idx := range t.Indexes {
		pos, ok := position[idx.Name]
		if !ok {
			pos = len(groups)
			position[idx.Name] = pos
			groups = append(groups, IndexGroup{Name: idx.Name})
		}
		groups[pos].Columns = append(groups[pos].Columns, idx)
	}

	for i := range groups {
		cols := groups[i].Columns
		sort.SliceStable(cols, func(a, b int) bool {
			return cols[a].Sequence < cols[b].Sequence
		})
	}
	return groups
}

// Clone returns a deep copy, so per-query cardinality backfill never leaks
// into a cached description.
func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	out := &Table{
		Name:      t.Name,
		TotalRows: t.TotalRows,
		Columns:   make([]Column, len(t.Columns)),
		Indexes:   make([]Index, len(t.Indexes)),
	}
	for i, col := range t.Columns {
		if col.Cardinality != nil {
			c := *col.Cardinality
			col.Cardinality = &c
		}
		out.Columns[i] = col
	}
	for i, idx := range t.Indexes {
		if idx.Unique != nil {
			u := *idx.Unique
			idx.Unique = &u
		}
		if idx.Cardinality != nil {
			c := *idx.Cardinality
			idx.Cardinality = &c
		}
		out.Indexes[i] = idx
	}
	return out
}
