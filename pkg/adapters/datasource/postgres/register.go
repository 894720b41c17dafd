package postgres

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-advisor/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.IntrospectorRegistration{
		Info: datasource.IntrospectorInfo{
			Type:        "postgres",
			DisplayName: "PostgreSQL",
			Description: "EXPLAIN (FORMAT JSON), pg_catalog and pg_stats introspection for PostgreSQL 12+",
		},
		Factory: func(ctx context.Context, config map[string]any, logger *zap.Logger) (datasource.Introspector, error) {
			cfg, err := FromMap(config)
			if err != nil {
				return nil, err
			}
			return NewAdapter(ctx, cfg, logger)
		},
	})
}
