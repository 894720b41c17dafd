package mysql

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-advisor/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.IntrospectorRegistration{
		Info: datasource.IntrospectorInfo{
			Type:        "mysql",
			DisplayName: "MySQL / MariaDB",
			Description: "EXPLAIN and information_schema introspection; column statistics on MariaDB 10.0+",
		},
		Aliases: []string{"mariadb"},
		Factory: func(ctx context.Context, config map[string]any, logger *zap.Logger) (datasource.Introspector, error) {
			cfg, err := FromMap(config)
			if err != nil {
				return nil, err
			}
			return NewAdapter(ctx, cfg, logger)
		},
	})
}
