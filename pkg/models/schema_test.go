package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptrFloat(f float64) *float64 { return &f }
func ptrBool(b bool) *bool        { return &b }

func TestIndex_EqualIgnoresUnrelatedFields(t *testing.T) {
	a := Index{Name: "owner_index", Table: "tabNote", Column: "owner", Sequence: 1, Unique: ptrBool(true), Cardinality: ptrFloat(10)}
	b := Index{Name: "other_name", Table: "tabNote", Column: "owner", Sequence: 1, Unique: ptrBool(false)}

	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Key(), b.Key())

	c := b
	c.Sequence = 2
	assert.False(t, a.Equal(c), "sequence is part of identity")

	d := b
	d.Table = "tabToDo"
	assert.False(t, a.Equal(d), "table is part of identity")
}

func TestTable_UpdateCardinality(t *testing.T) {
	table := &Table{
		Name:      "tabToDo",
		TotalRows: 1000,
		Columns: []Column{
			{Name: "status"},
			{Name: "owner", Cardinality: ptrFloat(40)},
			{Name: "priority", Cardinality: ptrFloat(0)},
			{Name: "description"},
		},
	}

	table.UpdateCardinality([]ColumnStatistic{
		{ColumnName: "status", AvgFrequency: 250},
		{ColumnName: "owner", AvgFrequency: 10},
		{ColumnName: "priority", AvgFrequency: 333.3333},
		{ColumnName: "description", AvgFrequency: 0},
	})

	status, _ := table.Column("status")
	require.NotNil(t, status.Cardinality)
	assert.Equal(t, 4.0, *status.Cardinality)

	owner, _ := table.Column("owner")
	assert.Equal(t, 40.0, *owner.Cardinality, "known cardinality is kept")

	priority, _ := table.Column("priority")
	require.NotNil(t, priority.Cardinality)
	assert.InDelta(t, 3.0, *priority.Cardinality, 0.001, "zero counts as unknown")

	description, _ := table.Column("description")
	assert.Nil(t, description.Cardinality, "non-positive avg frequency is ignored")
}

func TestTable_IndexGroups(t *testing.T) {
	table := &Table{
		Name: "tabToDo",
		Indexes: []Index{
			{Name: "status_owner", Column: "owner", Sequence: 2},
			{Name: "modified", Column: "modified", Sequence: 1},
			{Name: "status_owner", Column: "status", Sequence: 1},
			{Name: "status_owner", Column: "date", Sequence: 3},
		},
	}

	groups := table.IndexGroups()
	require.Len(t, groups, 2)

	assert.Equal(t, "status_owner", groups[0].Name, "first appearance order")
	var cols []string
	for _, idx := range groups[0].Columns {
		cols = append(cols, idx.Column)
	}
	assert.Equal(t, []string{"status", "owner", "date"}, cols)

	assert.Equal(t, "modified", groups[1].Name)
	assert.Len(t, groups[1].Columns, 1)
}

func TestTable_CloneIsIndependent(t *testing.T) {
	table := &Table{
		Name:      "tabToDo",
		TotalRows: 10,
		Columns:   []Column{{Name: "status"}},
		Indexes:   []Index{{Name: "status", Column: "status", Sequence: 1, Cardinality: ptrFloat(3)}},
	}

	clone := table.Clone()
	clone.UpdateCardinality([]ColumnStatistic{{ColumnName: "status", AvgFrequency: 5}})
	*clone.Indexes[0].Cardinality = 99

	assert.Nil(t, table.Columns[0].Cardinality)
	assert.Equal(t, 3.0, *table.Indexes[0].Cardinality)
	require.NotNil(t, clone.Columns[0].Cardinality)
	assert.Equal(t, 2.0, *clone.Columns[0].Cardinality)
}

func TestQueryContext_AddTable(t *testing.T) {
	qc := &QueryContext{}
	qc.AddTable(&Table{Name: "tabUser", TotalRows: 1})
	qc.AddTable(&Table{Name: "tabNote", TotalRows: 2})
	qc.AddTable(&Table{Name: "tabUser", TotalRows: 3})

	require.Len(t, qc.Tables, 2)
	assert.Equal(t, "tabUser", qc.Tables[0].Name, "replacement keeps position")

	user, ok := qc.Table("tabUser")
	require.True(t, ok)
	assert.Equal(t, int64(3), user.TotalRows)

	_, ok = qc.Table("tabMissing")
	assert.False(t, ok)
}

func TestAnalysisReport_Suggestions(t *testing.T) {
	report := &AnalysisReport{
		Queries: []QueryAnalysis{
			{Query: "q1", Status: AnalysisStatusSuggested, Suggestions: []*IndexCandidate{{Table: "t", Column: "c"}}},
			{Query: "q2", Status: AnalysisStatusNoSuggestion},
			{Query: "q3", Status: AnalysisStatusFailed, Error: "boom"},
		},
	}

	got := report.Suggestions()
	require.Len(t, got, 1)
	assert.Equal(t, "c", got["q1"][0].Column)
}
