package models

import "fmt"

// CandidateKey identifies an index candidate.
type CandidateKey struct {
	Table  string
	Column string
}

// IndexCandidate is a single-column index the advisor may suggest. Score is
// assigned during one optimization run and is never part of its identity.
type IndexCandidate struct {
	Table  string  `json:"table"`
	Column string  `json:"column"`
	Score  float64 `json:"score"`
}

// Key returns the candidate identity.
func (c *IndexCandidate) Key() CandidateKey {
	return CandidateKey{Table: c.Table, Column: c.Column}
}

// Equal compares candidates by (table, column).
func (c *IndexCandidate) Equal(other *IndexCandidate) bool {
	return c.Key() == other.Key()
}

func (c *IndexCandidate) String() string {
	return fmt.Sprintf("`%s`.`%s`", c.Table, c.Column)
}
