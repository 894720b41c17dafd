package advisor

import (
	"github.com/ekaya-inc/ekaya-advisor/pkg/models"
)

func ptr(f float64) *float64 {
	return &f
}

func idx(table, name, column string, seq int) models.Index {
	return models.Index{Name: name, Table: table, Column: column, Sequence: seq}
}

func candidate(table, column string) *models.IndexCandidate {
	return &models.IndexCandidate{Table: table, Column: column}
}

func keys(candidates []*models.IndexCandidate) []models.CandidateKey {
	out := make([]models.CandidateKey, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.Key())
	}
	return out
}

func key(table, column string) models.CandidateKey {
	return models.CandidateKey{Table: table, Column: column}
}

// docTypeTable is a 100k row table with no index on owner.
func docTypeTable(indexes ...models.Index) *models.Table {
	return &models.Table{
		Name:      "tabDocType",
		TotalRows: 100000,
		Columns: []models.Column{
			{Name: "name", DataType: "varchar(140)", Cardinality: ptr(100000)},
			{Name: "owner", DataType: "varchar(140)", Cardinality: ptr(100)},
			{Name: "module", DataType: "varchar(140)", Cardinality: ptr(50)},
			{Name: "issingle", DataType: "int(1)", Cardinality: ptr(2)},
			{Name: "modified", DataType: "datetime(6)", Cardinality: ptr(90000)},
			{Name: "description", DataType: "longtext", Cardinality: ptr(100000)},
			{Name: "meta", DataType: "JSON", Cardinality: ptr(100000)},
			{Name: "restrict_to_domain", DataType: "varchar(140)"},
		},
		Indexes: append([]models.Index{idx("tabDocType", "PRIMARY", "name", 1)}, indexes...),
	}
}

// docFieldTable is a child table of tabDocType.
func docFieldTable() *models.Table {
	return &models.Table{
		Name:      "tabDocField",
		TotalRows: 400000,
		Columns: []models.Column{
			{Name: "name", DataType: "varchar(140)"},
			{Name: "parent", DataType: "varchar(140)", Cardinality: ptr(20000)},
			{Name: "fieldtype", DataType: "varchar(140)", Cardinality: ptr(40)},
			{Name: "owner", DataType: "varchar(140)", Cardinality: ptr(10)},
			{Name: "module", DataType: "varchar(140)", Cardinality: ptr(50)},
		},
		Indexes: []models.Index{
			idx("tabDocField", "PRIMARY", "name", 1),
		},
	}
}
