package datasource

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// IntrospectorInfo describes a registered introspection adapter.
type IntrospectorInfo struct {
	Type        string `json:"type"`         // "mysql", "postgres", "snapshot"
	DisplayName string `json:"display_name"` // "MySQL / MariaDB"
	Description string `json:"description"`
}

// IntrospectorFactoryFunc builds an introspector from a generic config map.
type IntrospectorFactoryFunc func(ctx context.Context, config map[string]any, logger *zap.Logger) (Introspector, error)

// IntrospectorRegistration contains info + factory for creating introspectors.
// Aliases are alternative type names resolving to the same factory.
type IntrospectorRegistration struct {
	Info    IntrospectorInfo
	Aliases []string
	Factory IntrospectorFactoryFunc
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]IntrospectorRegistration)
)

// Register is called by each adapter's init() function.
// Thread-safe for concurrent init() calls.
func Register(reg IntrospectorRegistration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Info.Type] = reg
	for _, alias := range reg.Aliases {
		registry[alias] = reg
	}
}

// RegisteredIntrospectors returns info for all registered adapters, once per
// adapter regardless of aliases, sorted by type.
func RegisteredIntrospectors() []IntrospectorInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	seen := make(map[string]bool, len(registry))
	result := make([]IntrospectorInfo, 0, len(registry))
	for _, reg := range registry {
		if seen[reg.Info.Type] {
			continue
		}
		seen[reg.Info.Type] = true
		result = append(result, reg.Info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Type < result[j].Type })
	return result
}

// GetIntrospectorFactory returns the factory for an adapter type or alias.
// Returns nil if type is not registered.
func GetIntrospectorFactory(dsType string) IntrospectorFactoryFunc {
	registryMu.RLock()
	defer registryMu.RUnlock()

	if reg, ok := registry[dsType]; ok {
		return reg.Factory
	}
	return nil
}

// IsRegistered checks if an adapter type is available.
func IsRegistered(dsType string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[dsType]
	return ok
}
