package postgres

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-advisor/pkg/models"
	"github.com/ekaya-inc/ekaya-advisor/pkg/payload"
)

// planNode is one node of EXPLAIN (FORMAT JSON) output.
type planNode struct {
	NodeType           string     `json:"Node Type"`
	RelationName       string     `json:"Relation Name"`
	IndexName          string     `json:"Index Name"`
	ParentRelationship string     `json:"Parent Relationship"`
	PlanRows           float64    `json:"Plan Rows"`
	Filter             string     `json:"Filter"`
	IndexCond          string     `json:"Index Cond"`
	RecheckCond        string     `json:"Recheck Cond"`
	Plans              []planNode `json:"Plans"`
}

type explainOutput []struct {
	Plan planNode `json:"Plan"`
}

// Scan nodes mapped onto the MySQL EXPLAIN access types. Relation scans not
// listed here read the whole relation.
var scanTypes = map[string]string{
	"Seq Scan":          models.ScanAll,
	"Index Scan":        models.ScanRef,
	"Index Only Scan":   models.ScanRef,
	"Bitmap Heap Scan":  models.ScanRange,
	"Tid Scan":          models.ScanConst,
	"Tid Range Scan":    models.ScanRange,
	"Parallel Seq Scan": models.ScanAll,
}

// planRecords flattens a JSON plan into one record per scanned relation, in
// the field layout of MySQL EXPLAIN rows.
func planRecords(raw []byte) ([]payload.Record, error) {
	var out explainOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}

	f := &planFlattener{records: []payload.Record{}}
	for _, root := range out {
		f.visit(root.Plan, models.SelectSimple)
	}
	return f.records, nil
}

type planFlattener struct {
	records []payload.Record
}

func (f *planFlattener) visit(node planNode, selectType string) {
	switch node.ParentRelationship {
	case "SubPlan", "InitPlan":
		selectType = models.SelectSubquery
	}

	if node.RelationName != "" {
		f.records = append(f.records, f.record(node, selectType))
	}

	childType := selectType
	switch node.NodeType {
	case "Subquery Scan", "CTE Scan":
		childType = models.SelectDerived
	case "Bitmap Heap Scan":
		// The bitmap index scans below were folded into this record.
		return
	}
	for _, child := range node.Plans {
		f.visit(child, childType)
	}
}

func (f *planFlattener) record(node planNode, selectType string) payload.Record {
	scanType, ok := scanTypes[node.NodeType]
	if !ok {
		scanType = models.ScanAll
	}

	var key any
	switch {
	case node.IndexName != "":
		key = node.IndexName
	case node.NodeType == "Bitmap Heap Scan":
		if names := bitmapIndexNames(node); len(names) > 0 {
			if len(names) > 1 {
				scanType = models.ScanIndexMerge
			}
			key = strings.Join(names, ",")
		}
	}

	var extra []string
	for _, cond := range []string{node.IndexCond, node.RecheckCond, node.Filter} {
		if cond != "" {
			extra = append(extra, cond)
		}
	}

	return payload.Record{
		"id":            int64(len(f.records) + 1),
		"select_type":   selectType,
		"table":         node.RelationName,
		"type":          scanType,
		"possible_keys": nil,
		"key":           key,
		"rows":          int64(node.PlanRows),
		"Extra":         strings.Join(extra, "; "),
	}
}

func bitmapIndexNames(node planNode) []string {
	var names []string
	for _, child := range node.Plans {
		if child.NodeType == "Bitmap Index Scan" && child.IndexName != "" {
			names = append(names, child.IndexName)
		}
		names = append(names, bitmapIndexNames(child)...)
	}
	return names
}
