package datasource

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-advisor/pkg/apperrors"
)

// IntrospectorFactory creates introspectors from the registry.
type IntrospectorFactory interface {
	// NewIntrospector creates an introspector for the given adapter type.
	NewIntrospector(ctx context.Context, dsType string, config map[string]any) (Introspector, error)

	// ListTypes returns info for all registered adapter types.
	ListTypes() []IntrospectorInfo
}

type registryFactory struct {
	logger *zap.Logger
}

// NewIntrospectorFactory returns a factory that uses the global registry.
func NewIntrospectorFactory(logger *zap.Logger) IntrospectorFactory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &registryFactory{
		logger: logger,
	}
}

func (f *registryFactory) NewIntrospector(ctx context.Context, dsType string, config map[string]any) (Introspector, error) {
	factory := GetIntrospectorFactory(dsType)
	if factory == nil {
		return nil, fmt.Errorf("%w: unsupported introspection type: %s (not compiled in)", apperrors.ErrConfiguration, dsType)
	}
	return factory(ctx, config, f.logger.Named(dsType))
}

func (f *registryFactory) ListTypes() []IntrospectorInfo {
	return RegisteredIntrospectors()
}

// Ensure registryFactory implements IntrospectorFactory at compile time.
var _ IntrospectorFactory = (*registryFactory)(nil)
