// Package snapshot replays introspection output captured to a YAML (or JSON)
// file, so queries can be analyzed without a database connection.
//
// The file has three top-level sections:
//
//	explain:            query text -> list of EXPLAIN rows
//	tables:             table name -> table description (schema, indexes)
//	column_statistics:  table name -> list of column statistics
package snapshot

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-advisor/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-advisor/pkg/logging"
	"github.com/ekaya-inc/ekaya-advisor/pkg/payload"
	advisorsql "github.com/ekaya-inc/ekaya-advisor/pkg/sql"
)

// File is the on-disk layout of a snapshot.
type File struct {
	Explain          map[string][]map[string]any `yaml:"explain"`
	Tables           map[string]map[string]any   `yaml:"tables"`
	ColumnStatistics map[string][]map[string]any `yaml:"column_statistics"`
}

// Introspector serves a loaded snapshot. It never touches the network.
type Introspector struct {
	file   *File
	logger *zap.Logger
}

// Load reads and decodes a snapshot file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, datasource.IntrospectionError("read snapshot", err)
	}
	return Decode(data)
}

// Decode parses snapshot content. JSON is accepted as a subset of YAML.
func Decode(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, datasource.IntrospectionError("decode snapshot", err)
	}
	return &f, nil
}

// New returns an introspector over f. If logger is nil, a no-op logger is used.
func New(f *File, logger *zap.Logger) *Introspector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if f == nil {
		f = &File{}
	}
	return &Introspector{file: f, logger: logger}
}

// ExplainQueries returns the captured plans. A query is matched verbatim first,
// then in its normalized form (trimmed, trailing semicolon removed).
func (s *Introspector) ExplainQueries(_ context.Context, queries []string) (map[string][]payload.Record, error) {
	normalized := make(map[string][]map[string]any, len(s.file.Explain))
	for q, rows := range s.file.Explain {
		if key, err := advisorsql.NormalizeStatement(q); err == nil {
			normalized[key] = rows
		}
	}

	result := make(map[string][]payload.Record, len(queries))
	for _, query := range queries {
		rows, ok := s.file.Explain[query]
		if !ok {
			key, err := advisorsql.NormalizeStatement(query)
			if err == nil {
				rows, ok = normalized[key]
			}
		}
		if !ok {
			s.logger.Debug("No captured plan for query", zap.String("query", logging.SanitizeQuery(query)))
			continue
		}
		result[query] = toRecords(rows)
	}
	return result, nil
}

// DescribeTable returns the captured description of table.
func (s *Introspector) DescribeTable(_ context.Context, table string) (payload.Record, error) {
	desc, ok := s.file.Tables[table]
	if !ok {
		return nil, datasource.TableNotFoundError(table)
	}

	rec := payload.Record(desc)
	if !rec.Has("table_name", "name") {
		// The map key names the table when the entry does not.
		rec = make(payload.Record, len(desc)+1)
		for k, v := range desc {
			rec[k] = v
		}
		rec["table_name"] = table
	}
	return rec, nil
}

// ColumnStatistics returns the captured statistics of table, if any.
func (s *Introspector) ColumnStatistics(_ context.Context, table string) ([]payload.Record, error) {
	return toRecords(s.file.ColumnStatistics[table]), nil
}

// Close is a no-op.
func (s *Introspector) Close() error {
	return nil
}

// Capture records what src reports for queries and every table they reference,
// producing a snapshot that replays the same analysis offline.
func Capture(ctx context.Context, src datasource.Introspector, queries []string) (*File, error) {
	plans, err := src.ExplainQueries(ctx, queries)
	if err != nil {
		return nil, err
	}

	f := &File{
		Explain:          make(map[string][]map[string]any, len(plans)),
		Tables:           make(map[string]map[string]any),
		ColumnStatistics: make(map[string][]map[string]any),
	}

	for _, query := range queries {
		plan, ok := plans[query]
		if !ok {
			continue
		}
		f.Explain[query] = fromRecords(plan)

		refs, err := advisorsql.ExtractReferences(query)
		if err != nil {
			continue
		}
		for _, table := range refs.Tables {
			if _, done := f.Tables[table]; done {
				continue
			}
			desc, err := src.DescribeTable(ctx, table)
			if err != nil {
				return nil, fmt.Errorf("capture %s: %w", table, err)
			}
			f.Tables[table] = desc

			stats, err := src.ColumnStatistics(ctx, table)
			if err != nil {
				return nil, fmt.Errorf("capture statistics of %s: %w", table, err)
			}
			f.ColumnStatistics[table] = fromRecords(stats)
		}
	}
	return f, nil
}

// Save writes f as YAML.
func Save(path string, f *File) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

func toRecords(rows []map[string]any) []payload.Record {
	out := make([]payload.Record, len(rows))
	for i, row := range rows {
		out[i] = payload.Record(row)
	}
	return out
}

func fromRecords(recs []payload.Record) []map[string]any {
	out := make([]map[string]any, len(recs))
	for i, rec := range recs {
		out[i] = map[string]any(rec)
	}
	return out
}

// snapshotPath pulls the file location out of an adapter config map.
func snapshotPath(config map[string]any) (string, error) {
	path, _ := config["snapshot_path"].(string)
	if path = strings.TrimSpace(path); path == "" {
		return "", fmt.Errorf("snapshot_path is required")
	}
	return path, nil
}

func init() {
	datasource.Register(datasource.IntrospectorRegistration{
		Info: datasource.IntrospectorInfo{
			Type:        "snapshot",
			DisplayName: "Snapshot file",
			Description: "Replay EXPLAIN, table and statistics output captured to YAML or JSON",
		},
		Factory: func(_ context.Context, config map[string]any, logger *zap.Logger) (datasource.Introspector, error) {
			path, err := snapshotPath(config)
			if err != nil {
				return nil, err
			}
			f, err := Load(path)
			if err != nil {
				return nil, err
			}
			return New(f, logger), nil
		},
	})
}

var _ datasource.Introspector = (*Introspector)(nil)
