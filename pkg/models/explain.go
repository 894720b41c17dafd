package models

// Select types reported in the EXPLAIN select_type column.
const (
	SelectSimple   = "SIMPLE"
	SelectPrimary  = "PRIMARY"
	SelectSubquery = "SUBQUERY"
	SelectUnion    = "UNION"
	SelectDerived  = "DERIVED"
)

// Scan types reported in the EXPLAIN type column. Anything else is passed
// through as-is and treated like any other scan.
const (
	ScanAll            = "ALL"   // full table scan
	ScanConst          = "CONST" // single row
	ScanEqRef          = "EQ_REF"
	ScanRef            = "REF"
	ScanRange          = "RANGE"
	ScanIndexMerge     = "INDEX_MERGE"
	ScanIndexSubquery  = "INDEX_SUBQUERY"
	ScanIndex          = "INDEX" // full index scan
	ScanRefOrNull      = "REF_OR_NULL"
	ScanUniqueSubquery = "UNIQUE_SUBQUERY"
	ScanFulltext       = "FULLTEXT"
)

// ExplainRow is one per-table row of an EXPLAIN plan.
type ExplainRow struct {
	SelectType   string   `json:"select_type"`
	Table        string   `json:"table"`
	ScanType     string   `json:"scan_type"`
	PossibleKeys []string `json:"possible_keys,omitempty"`
	Key          *string  `json:"key,omitempty"`
	KeyLen       *int64   `json:"key_len,omitempty"`
	Ref          *string  `json:"ref,omitempty"`
	Rows         int64    `json:"rows"` // estimated rows examined
	Extra        string   `json:"extra,omitempty"`
}
