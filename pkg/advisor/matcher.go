package advisor

import (
	"github.com/ekaya-inc/ekaya-advisor/pkg/models"
)

// RemoveExistingIndexes drops candidates that an existing index already
// serves through a left prefix. Tables are visited in the given order and
// each table's indexes in first-appearance order; a candidate consumed by one
// index is no longer available to the next.
//
// For an index on (A, B, C), candidates {A, B} are both removed, while {A, C}
// matches nothing because the index cannot serve C without B.
func RemoveExistingIndexes(candidates []*models.IndexCandidate, tables []*models.Table) []*models.IndexCandidate {
	pool := make([]*models.IndexCandidate, len(candidates))
	copy(pool, candidates)

	for _, table := range tables {
		for _, group := range table.IndexGroups() {
			pool = reduceByIndex(pool, table.Name, group.Columns)
		}
	}
	return pool
}

// reduceByIndex finds the longest prefix of columns fully present in pool and
// removes those candidates once each.
func reduceByIndex(pool []*models.IndexCandidate, table string, columns []models.Index) []*models.IndexCandidate {
	for length := len(columns); length > 0; length-- {
		prefix := columns[:length]
		if !prefixPresent(pool, table, prefix) {
			continue
		}
		for _, idx := range prefix {
			pool = removeCandidate(pool, models.CandidateKey{Table: table, Column: idx.Column})
		}
		return pool
	}
	return pool
}

func prefixPresent(pool []*models.IndexCandidate, table string, prefix []models.Index) bool {
	for _, idx := range prefix {
		if indexOfCandidate(pool, models.CandidateKey{Table: table, Column: idx.Column}) < 0 {
			return false
		}
	}
	return true
}

func indexOfCandidate(pool []*models.IndexCandidate, key models.CandidateKey) int {
	for i, c := range pool {
		if c.Key() == key {
			return i
		}
	}
	return -1
}

func removeCandidate(pool []*models.IndexCandidate, key models.CandidateKey) []*models.IndexCandidate {
	i := indexOfCandidate(pool, key)
	if i < 0 {
		return pool
	}
	return append(pool[:i], pool[i+1:]...)
}
