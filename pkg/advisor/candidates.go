// Package advisor suggests at most one new single-column index for a query,
// given its EXPLAIN plan and the described tables it touches.
package advisor

import (
	"sort"

	"github.com/ekaya-inc/ekaya-advisor/pkg/models"
	"github.com/ekaya-inc/ekaya-advisor/pkg/sql"
)

const wildcardColumn = "*"

// GenerateCandidates turns the column references of a query into index
// candidates. WHERE and JOIN columns always count; ORDER BY columns count only
// for top-N queries (LIMIT/OFFSET present). Bare references bind to the first
// table in tables whose schema has the column. The wildcard and primaryKey
// column are excluded.
//
// References that cannot be bound to a supplied table are returned separately.
// The candidate list is deduplicated and sorted by (table, column).
func GenerateCandidates(refs *sql.QueryReferences, tables []*models.Table, primaryKey string) ([]*models.IndexCandidate, []sql.ColumnRef) {
	raw := make([]sql.ColumnRef, 0, len(refs.ColumnsFor(sql.RoleWhere))+len(refs.ColumnsFor(sql.RoleJoin)))
	raw = append(raw, refs.ColumnsFor(sql.RoleWhere)...)
	raw = append(raw, refs.ColumnsFor(sql.RoleJoin)...)
	if refs.HasLimit {
		raw = append(raw, refs.ColumnsFor(sql.RoleOrderBy)...)
	}

	seen := make(map[models.CandidateKey]bool)
	var candidates []*models.IndexCandidate
	var unresolved []sql.ColumnRef

	for _, ref := range raw {
		if ref.Column == wildcardColumn || ref.Column == primaryKey {
			continue
		}

		table, ok := resolveTable(ref, tables)
		if !ok {
			unresolved = append(unresolved, ref)
			continue
		}

		candidate := &models.IndexCandidate{Table: table, Column: ref.Column}
		if seen[candidate.Key()] {
			continue
		}
		seen[candidate.Key()] = true
		candidates = append(candidates, candidate)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Table != candidates[j].Table {
			return candidates[i].Table < candidates[j].Table
		}
		return candidates[i].Column < candidates[j].Column
	})

	return candidates, unresolved
}

// resolveTable binds a reference to a supplied table. Qualified references
// need their table to be supplied; bare references take the first table that
// has the column.
func resolveTable(ref sql.ColumnRef, tables []*models.Table) (string, bool) {
	if ref.Qualified() {
		for _, t := range tables {
			if t.Name == ref.Table {
				return t.Name, true
			}
		}
		return "", false
	}

	for _, t := range tables {
		if t.HasColumn(ref.Column) {
			return t.Name, true
		}
	}
	return "", false
}
