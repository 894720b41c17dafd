package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-advisor/pkg/models"
)

func TestPlanRecords_SeqScan(t *testing.T) {
	raw := []byte(`[{"Plan": {
		"Node Type": "Limit", "Plan Rows": 20,
		"Plans": [{
			"Node Type": "Seq Scan", "Parent Relationship": "Outer",
			"Relation Name": "tabToDo", "Alias": "tabToDo",
			"Plan Rows": 4800, "Filter": "((workflow_state)::text = 'Open'::text)"
		}]
	}}]`)

	recs, err := planRecords(raw)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	plan, err := models.ExplainPlanFromRecords(recs)
	require.NoError(t, err)
	assert.Equal(t, models.SelectSimple, plan[0].SelectType)
	assert.Equal(t, "tabToDo", plan[0].Table)
	assert.Equal(t, models.ScanAll, plan[0].ScanType)
	assert.Equal(t, int64(4800), plan[0].Rows)
	assert.Nil(t, plan[0].Key)
	assert.Contains(t, plan[0].Extra, "workflow_state")
}

func TestPlanRecords_JoinWithIndexScan(t *testing.T) {
	raw := []byte(`[{"Plan": {
		"Node Type": "Nested Loop", "Plan Rows": 10,
		"Plans": [
			{"Node Type": "Seq Scan", "Parent Relationship": "Outer",
			 "Relation Name": "tabDocType", "Alias": "dt", "Plan Rows": 900},
			{"Node Type": "Index Scan", "Parent Relationship": "Inner",
			 "Relation Name": "tabDocField", "Alias": "df", "Index Name": "parent",
			 "Plan Rows": 12, "Index Cond": "((parent)::text = (dt.name)::text)"}
		]
	}}]`)

	recs, err := planRecords(raw)
	require.NoError(t, err)

	plan, err := models.ExplainPlanFromRecords(recs)
	require.NoError(t, err)
	require.Len(t, plan, 2)

	assert.Equal(t, "tabDocType", plan[0].Table)
	assert.Equal(t, "tabDocField", plan[1].Table)
	assert.Equal(t, models.ScanRef, plan[1].ScanType)
	require.NotNil(t, plan[1].Key)
	assert.Equal(t, "parent", *plan[1].Key)
}

func TestPlanRecords_BitmapScans(t *testing.T) {
	raw := []byte(`[{"Plan": {
		"Node Type": "Bitmap Heap Scan", "Relation Name": "tabLog", "Plan Rows": 300,
		"Recheck Cond": "(owner = 'a')",
		"Plans": [{
			"Node Type": "BitmapAnd",
			"Plans": [
				{"Node Type": "Bitmap Index Scan", "Index Name": "owner", "Plan Rows": 500},
				{"Node Type": "Bitmap Index Scan", "Index Name": "creation", "Plan Rows": 800}
			]
		}]
	}}]`)

	recs, err := planRecords(raw)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	assert.Equal(t, models.ScanIndexMerge, recs[0]["type"])
	assert.Equal(t, "owner,creation", recs[0]["key"])
}

func TestPlanRecords_SubPlanAndDerived(t *testing.T) {
	raw := []byte(`[{"Plan": {
		"Node Type": "Subquery Scan", "Alias": "d", "Plan Rows": 5,
		"Plans": [{
			"Node Type": "Seq Scan", "Parent Relationship": "Subquery",
			"Relation Name": "tabA", "Plan Rows": 50,
			"Plans": [{
				"Node Type": "Index Only Scan", "Parent Relationship": "SubPlan",
				"Relation Name": "tabB", "Index Name": "tabB_pkey", "Plan Rows": 1
			}]
		}]
	}}]`)

	recs, err := planRecords(raw)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, models.SelectDerived, recs[0]["select_type"])
	assert.Equal(t, "tabA", recs[0]["table"])
	assert.Equal(t, models.SelectSubquery, recs[1]["select_type"])
	assert.Equal(t, models.ScanRef, recs[1]["type"])
}

func TestPlanRecords_InvalidJSON(t *testing.T) {
	_, err := planRecords([]byte(`not json`))
	assert.Error(t, err)
}
