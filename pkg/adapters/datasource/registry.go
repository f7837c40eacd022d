package datasource

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// DatasourceAdapterInfo describes a compiled-in adapter. Error hints list
// the registered types when a target names an unknown one.
type DatasourceAdapterInfo struct {
	Type        string `json:"type"` // targets.yaml "type" value
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
}

// MetadataSourceFactory opens a metadata source for a resolved connection.
type MetadataSourceFactory func(ctx context.Context, cfg ConnectionConfig, logger *zap.Logger) (MetadataSource, error)

// DatasourceAdapterRegistration pairs an adapter's description with its
// factory. Each adapter package registers one from init.
type DatasourceAdapterRegistration struct {
	Info    DatasourceAdapterInfo
	Factory MetadataSourceFactory
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]DatasourceAdapterRegistration)
)

// Register adds or replaces the adapter for reg.Info.Type.
func Register(reg DatasourceAdapterRegistration) {
	registryMu.Lock()
	registry[reg.Info.Type] = reg
	registryMu.Unlock()
}

// RegisteredAdapters lists the compiled-in adapters ordered by type.
func RegisteredAdapters() []DatasourceAdapterInfo {
	registryMu.RLock()
	infos := make([]DatasourceAdapterInfo, 0, len(registry))
	for _, reg := range registry {
		infos = append(infos, reg.Info)
	}
	registryMu.RUnlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].Type < infos[j].Type })
	return infos
}

// GetFactory returns the factory registered for a targets.yaml type, or nil.
func GetFactory(dsType string) MetadataSourceFactory {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registry[dsType].Factory
}
