package storage

import (
	"fmt"
	"log/slog"

	"mercator-hq/callisto/pkg/config"
	"mercator-hq/callisto/pkg/registry"
)

// Backend is a registry.Store that holds resources.
type Backend interface {
	registry.Store
	Close() error
}

// Open creates the backend selected by cfg.Backend.
func Open(cfg config.StorageConfig, logger *slog.Logger) (Backend, error) {
	switch cfg.Backend {
	case "sqlite", "":
		return NewSQLiteStore(SQLiteConfig{
			Path:        cfg.SQLite.Path,
			Driver:      cfg.SQLite.Driver,
			BusyTimeout: cfg.SQLite.BusyTimeout,
		}, logger)
	case "yaml":
		return NewYAMLStore(cfg.YAML.Path, logger)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
