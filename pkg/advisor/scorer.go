package advisor

import (
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-advisor/pkg/models"
)

// nonIndexableTypes are data type fragments (lower case) of columns a plain
// B-tree index cannot serve.
var nonIndexableTypes = []string{"text", "json"}

// Indexable reports whether a column of the given data type can take a
// standard index. Free-text and JSON types cannot.
func Indexable(dataType string) bool {
	lower := strings.ToLower(dataType)
	for _, t := range nonIndexableTypes {
		if strings.Contains(lower, t) {
			return false
		}
	}
	return true
}

// IndexScore is the expected fraction of the table read per lookup through an
// index on a column with the given cardinality, assuming uniformly
// distributed values. 0 is perfectly selective, 1 is useless.
// An empty table scores 1/cardinality.
func IndexScore(totalRows int64, cardinality float64) float64 {
	if cardinality <= 0 {
		return 1
	}
	total := float64(totalRows)
	if total <= 0 {
		total = cardinality
	}
	rowsFetched := total / cardinality
	return rowsFetched / total
}

// scoreCandidates filters out candidates that cannot be indexed and assigns a
// score to the rest. Candidates whose column is not in the table schema are
// dropped.
func (o *Optimizer) scoreCandidates(candidates []*models.IndexCandidate, qc *models.QueryContext) []*models.IndexCandidate {
	scored := make([]*models.IndexCandidate, 0, len(candidates))

	for _, c := range candidates {
		table, ok := qc.Table(c.Table)
		if !ok {
			continue
		}
		column, ok := table.Column(c.Column)
		if !ok {
			o.logger.Debug("Dropping candidate for column missing from schema",
				zap.String("table", c.Table),
				zap.String("column", c.Column))
			continue
		}
		if !Indexable(column.DataType) {
			o.logger.Debug("Dropping candidate with non-indexable type",
				zap.String("candidate", c.String()),
				zap.String("data_type", column.DataType))
			continue
		}

		c.Score = IndexScore(table.TotalRows, o.cardinality(column))
		scored = append(scored, c)
	}
	return scored
}

func (o *Optimizer) cardinality(column *models.Column) float64 {
	if column.Cardinality != nil && *column.Cardinality > 0 {
		return *column.Cardinality
	}
	return o.opts.DefaultCardinality
}
