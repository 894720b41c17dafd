package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-advisor/pkg/adapters/datasource"
	_ "github.com/ekaya-inc/ekaya-advisor/pkg/adapters/datasource/mysql"    // registers mysql, mariadb
	_ "github.com/ekaya-inc/ekaya-advisor/pkg/adapters/datasource/postgres" // registers postgres
	_ "github.com/ekaya-inc/ekaya-advisor/pkg/adapters/datasource/snapshot" // registers snapshot
	"github.com/ekaya-inc/ekaya-advisor/pkg/advisor"
	"github.com/ekaya-inc/ekaya-advisor/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-advisor/pkg/config"
	"github.com/ekaya-inc/ekaya-advisor/pkg/logging"
	"github.com/ekaya-inc/ekaya-advisor/pkg/models"
	"github.com/ekaya-inc/ekaya-advisor/pkg/payload"
	"github.com/ekaya-inc/ekaya-advisor/pkg/sql"
)

// QueryAnalysisService runs the index advisor over batches of slow queries.
// Table descriptions and column statistics are cached for the lifetime of the
// service. It is not safe for concurrent use; create one per caller.
type QueryAnalysisService interface {
	// Analyze maps each query that received a suggestion to its suggested
	// indexes (currently at most one). Queries that fail are left out.
	Analyze(ctx context.Context, queries []string) (map[string][]*models.IndexCandidate, error)

	// AnalyzeReport returns the per-query outcome of a batch, including
	// whether each query is worth optimizing at all.
	AnalyzeReport(ctx context.Context, queries []string) (*models.AnalysisReport, error)

	// Close releases the introspector.
	Close() error
}

type cachedTable struct {
	table *models.Table
	err   error
}

type queryAnalysisService struct {
	introspector datasource.Introspector
	optimizer    *advisor.Optimizer
	logger       *zap.Logger
	now          func() time.Time

	tables     map[string]cachedTable
	statistics map[string][]models.ColumnStatistic
}

// NewQueryAnalysisService creates a service over an existing introspector.
func NewQueryAnalysisService(introspector datasource.Introspector, optimizer *advisor.Optimizer, logger *zap.Logger) QueryAnalysisService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if optimizer == nil {
		optimizer = advisor.NewOptimizer(advisor.Options{}, logger)
	}
	return &queryAnalysisService{
		introspector: introspector,
		optimizer:    optimizer,
		logger:       logger.Named("query_analysis"),
		now:          time.Now,
		tables:       make(map[string]cachedTable),
		statistics:   make(map[string][]models.ColumnStatistic),
	}
}

// NewQueryAnalysisServiceFromConfig builds the introspector named by
// cfg.Introspection through the adapter registry and checks its connection.
// If logger is nil, one is built from cfg.LogLevel and cfg.Env.
func NewQueryAnalysisServiceFromConfig(ctx context.Context, cfg *config.Config, logger *zap.Logger) (QueryAnalysisService, error) {
	if logger == nil {
		var err error
		logger, err = logging.NewLogger(cfg.LogLevel, cfg.Env)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", apperrors.ErrConfiguration, err)
		}
	}

	factory := datasource.NewIntrospectorFactory(logger)
	introspector, err := factory.NewIntrospector(ctx, cfg.Introspection.Type, cfg.Introspection.AdapterConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create %s introspector: %w", cfg.Introspection.Type, err)
	}

	if tester, ok := introspector.(datasource.ConnectionTester); ok {
		if err := tester.TestConnection(ctx); err != nil {
			_ = introspector.Close()
			return nil, datasource.IntrospectionError("connection test", err)
		}
	}

	optimizer := advisor.NewOptimizer(advisor.OptionsFromConfig(cfg.Advisor), logger)
	return NewQueryAnalysisService(introspector, optimizer, logger), nil
}

func (s *queryAnalysisService) Analyze(ctx context.Context, queries []string) (map[string][]*models.IndexCandidate, error) {
	report, err := s.AnalyzeReport(ctx, queries)
	if err != nil {
		return nil, err
	}
	return report.Suggestions(), nil
}

func (s *queryAnalysisService) AnalyzeReport(ctx context.Context, queries []string) (*models.AnalysisReport, error) {
	report := &models.AnalysisReport{
		ID:        uuid.New(),
		StartedAt: s.now(),
		Queries:   []models.QueryAnalysis{},
	}

	unique := dedupe(queries)
	if len(unique) == 0 {
		report.CompletedAt = s.now()
		return report, nil
	}

	plans, err := s.introspector.ExplainQueries(ctx, unique)
	if err != nil {
		return nil, fmt.Errorf("failed to explain queries: %w", err)
	}

	suggested := 0
	for _, query := range unique {
		qa := s.analyzeQuery(ctx, query, plans)
		if qa.Status == models.AnalysisStatusSuggested {
			suggested++
		}
		report.Queries = append(report.Queries, qa)
	}
	report.CompletedAt = s.now()

	s.logger.Info("Analyzed query batch",
		zap.String("report_id", report.ID.String()),
		zap.Int("queries", len(unique)),
		zap.Int("explained", len(plans)),
		zap.Int("suggestions", suggested),
		zap.Duration("duration", report.CompletedAt.Sub(report.StartedAt)))

	return report, nil
}

func (s *queryAnalysisService) analyzeQuery(ctx context.Context, query string, plans map[string][]payload.Record) models.QueryAnalysis {
	qa := models.QueryAnalysis{Query: query}

	rawPlan, ok := plans[query]
	if !ok {
		s.logger.Debug("No EXPLAIN output for query, skipping",
			zap.String("query", logging.SanitizeQuery(query)))
		qa.Status = models.AnalysisStatusSkipped
		return qa
	}

	refs, err := sql.ExtractReferences(query)
	if err != nil {
		return s.failed(qa, err)
	}

	qc := &models.QueryContext{Query: query}
	for _, name := range refs.Tables {
		if table, ok := s.table(ctx, name); ok {
			qc.AddTable(table)
		}
	}

	plan, err := models.ExplainPlanFromRecords(rawPlan)
	if err != nil {
		s.logger.Warn("Unusable EXPLAIN output",
			zap.String("query", logging.SanitizeQuery(query)),
			zap.Error(err))
	} else {
		qc.ExplainPlan = plan
		qa.Optimizable = s.optimizer.CanBeOptimized(plan, qc.Tables)
	}

	suggestion, err := s.optimizer.SuggestIndex(qc)
	if err != nil {
		return s.failed(qa, err)
	}
	if suggestion == nil {
		qa.Status = models.AnalysisStatusNoSuggestion
		return qa
	}

	qa.Status = models.AnalysisStatusSuggested
	qa.Suggestions = []*models.IndexCandidate{suggestion}
	return qa
}

func (s *queryAnalysisService) failed(qa models.QueryAnalysis, err error) models.QueryAnalysis {
	s.logger.Warn("Query analysis failed",
		zap.String("query", logging.SanitizeQuery(qa.Query)),
		zap.Error(err))
	qa.Status = models.AnalysisStatusFailed
	qa.Error = err.Error()
	return qa
}

// table returns a per-query copy of the cached description with cardinality
// backfilled from statistics. Tables that could not be described are reported
// as missing; the failure is cached too.
func (s *queryAnalysisService) table(ctx context.Context, name string) (*models.Table, bool) {
	entry, ok := s.tables[name]
	if !ok {
		entry = s.describe(ctx, name)
		// A cancelled context says nothing about the table.
		if entry.err == nil || ctx.Err() == nil {
			s.tables[name] = entry
		}
	}
	if entry.err != nil {
		return nil, false
	}

	table := entry.table.Clone()
	table.UpdateCardinality(s.columnStatistics(ctx, name))
	return table, true
}

func (s *queryAnalysisService) describe(ctx context.Context, name string) cachedTable {
	rec, err := s.introspector.DescribeTable(ctx, name)
	if err != nil {
		s.logger.Warn("Failed to describe table",
			zap.String("table", name),
			zap.String("error", logging.SanitizeError(err)))
		return cachedTable{err: err}
	}

	table, err := models.TableFromRecord(rec)
	if err != nil {
		s.logger.Warn("Unusable table description",
			zap.String("table", name),
			zap.Error(err))
		return cachedTable{err: err}
	}
	if table.Name != name {
		s.logger.Debug("Table description reported a different name",
			zap.String("table", name),
			zap.String("reported", table.Name))
		table.Name = name
	}
	return cachedTable{table: table}
}

// columnStatistics degrades failures to no statistics.
func (s *queryAnalysisService) columnStatistics(ctx context.Context, name string) []models.ColumnStatistic {
	if stats, ok := s.statistics[name]; ok {
		return stats
	}

	recs, err := s.introspector.ColumnStatistics(ctx, name)
	if err != nil {
		s.logger.Warn("Failed to fetch column statistics",
			zap.String("table", name),
			zap.String("error", logging.SanitizeError(err)))
		if ctx.Err() == nil {
			s.statistics[name] = nil
		}
		return nil
	}

	stats, err := models.ColumnStatisticsFromRecords(recs)
	if err != nil {
		s.logger.Warn("Unusable column statistics",
			zap.String("table", name),
			zap.Error(err))
		stats = nil
	}
	s.statistics[name] = stats
	return stats
}

func (s *queryAnalysisService) Close() error {
	return s.introspector.Close()
}

func dedupe(queries []string) []string {
	seen := make(map[string]bool, len(queries))
	out := make([]string, 0, len(queries))
	for _, q := range queries {
		if seen[q] {
			continue
		}
		seen[q] = true
		out = append(out, q)
	}
	return out
}

var _ QueryAnalysisService = (*queryAnalysisService)(nil)
