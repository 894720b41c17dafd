package advisor

import (
	"sort"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-advisor/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-advisor/pkg/config"
	"github.com/ekaya-inc/ekaya-advisor/pkg/logging"
	"github.com/ekaya-inc/ekaya-advisor/pkg/models"
	"github.com/ekaya-inc/ekaya-advisor/pkg/sql"
)

// Default heuristic settings.
const (
	DefaultIndexScoreThreshold   = 0.3
	DefaultOptimizationThreshold = 0.1
	DefaultCardinality           = 2
	DefaultPrimaryKeyColumn      = "name"
)

// Options tunes the optimizer. Zero values take the defaults above.
type Options struct {
	IndexScoreThreshold   float64
	OptimizationThreshold float64
	DefaultCardinality    float64
	PrimaryKeyColumn      string
}

// OptionsFromConfig maps the advisor config section to Options.
func OptionsFromConfig(cfg config.AdvisorConfig) Options {
	return Options{
		IndexScoreThreshold:   cfg.IndexScoreThreshold,
		OptimizationThreshold: cfg.OptimizationThreshold,
		DefaultCardinality:    cfg.DefaultCardinality,
		PrimaryKeyColumn:      cfg.PrimaryKeyColumn,
	}
}

func (o Options) withDefaults() Options {
	if o.IndexScoreThreshold <= 0 {
		o.IndexScoreThreshold = DefaultIndexScoreThreshold
	}
	if o.OptimizationThreshold <= 0 {
		o.OptimizationThreshold = DefaultOptimizationThreshold
	}
	if o.DefaultCardinality <= 0 {
		o.DefaultCardinality = DefaultCardinality
	}
	if o.PrimaryKeyColumn == "" {
		o.PrimaryKeyColumn = DefaultPrimaryKeyColumn
	}
	return o
}

// Optimizer recommends at most one index per query. It holds no per-query
// state and may be shared.
type Optimizer struct {
	opts   Options
	logger *zap.Logger
}

// NewOptimizer creates an Optimizer. A nil logger disables logging.
func NewOptimizer(opts Options, logger *zap.Logger) *Optimizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Optimizer{
		opts:   opts.withDefaults(),
		logger: logger.Named("optimizer"),
	}
}

// Options returns the effective settings.
func (o *Optimizer) Options() Options {
	return o.opts
}

// SuggestIndex returns the single most selective new index for the query, or
// nil when every candidate is already covered, unindexable or not selective
// enough. Every table the query references must be present in qc.Tables;
// otherwise a *apperrors.MissingTablesError is returned. Malformed SQL returns
// an error wrapping apperrors.ErrParse.
//
// Candidates come from WHERE and JOIN columns (and ORDER BY columns of top-N
// queries), minus those an existing index serves by left prefix. The lowest
// scoring survivor is returned if its score is strictly below
// IndexScoreThreshold.
func (o *Optimizer) SuggestIndex(qc *models.QueryContext) (*models.IndexCandidate, error) {
	refs, err := sql.ExtractReferences(qc.Query)
	if err != nil {
		return nil, err
	}

	if missing := missingTables(refs.Tables, qc); len(missing) > 0 {
		return nil, &apperrors.MissingTablesError{Tables: missing}
	}

	candidates, unresolved := GenerateCandidates(refs, qc.Tables, o.opts.PrimaryKeyColumn)
	for _, ref := range unresolved {
		o.logger.Debug("Ignoring column reference not bound to a supplied table",
			zap.String("column", ref.String()))
	}

	candidates = RemoveExistingIndexes(candidates, qc.Tables)
	scored := o.scoreCandidates(candidates, qc)
	if len(scored) == 0 {
		o.logger.Debug("No index candidates left",
			zap.String("query", logging.SanitizeQuery(qc.Query)))
		return nil, nil
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score < scored[j].Score
	})

	best := scored[0]
	if best.Score >= o.opts.IndexScoreThreshold {
		o.logger.Debug("Best candidate is not selective enough",
			zap.String("candidate", best.String()),
			zap.Float64("score", best.Score),
			zap.Float64("threshold", o.opts.IndexScoreThreshold))
		return nil, nil
	}

	o.logger.Debug("Suggesting index",
		zap.String("candidate", best.String()),
		zap.Float64("score", best.Score))
	return best, nil
}

// CanBeOptimized reports whether any table in the plan examines more than
// OptimizationThreshold of its rows. Plan rows for tables that were not
// supplied, or that are empty, are ignored.
func (o *Optimizer) CanBeOptimized(plan []models.ExplainRow, tables []*models.Table) bool {
	byName := make(map[string]*models.Table, len(tables))
	for _, t := range tables {
		byName[t.Name] = t
	}

	for _, row := range plan {
		table, ok := byName[row.Table]
		if !ok || table.TotalRows <= 0 {
			continue
		}
		if float64(row.Rows)/float64(table.TotalRows) > o.opts.OptimizationThreshold {
			return true
		}
	}
	return false
}

// missingTables returns the referenced tables absent from the context, sorted.
func missingTables(referenced []string, qc *models.QueryContext) []string {
	var missing []string
	for _, name := range referenced {
		if _, ok := qc.Table(name); !ok {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}
