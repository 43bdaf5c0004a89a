package registry

import (
	"fmt"

	"github.com/sheetops/lifecycled/pkg/config"
	"github.com/sheetops/lifecycled/pkg/interfaces"
)

// NewRegistry creates a registry backend from configuration.
func NewRegistry(cfg *config.RegistryConfig) (interfaces.Registry, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported registry backend: %s", cfg.Backend)
	}
}
