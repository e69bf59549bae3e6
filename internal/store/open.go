package store

import (
	"context"
	"fmt"

	"clicksprout/internal/config"
	"clicksprout/internal/logger"
)

// Open builds the engine selected by STORE_BACKEND. The returned close
// function releases the backing connection.
func Open(cfg *config.Config) (Engine, func(context.Context) error, error) {
	switch cfg.StoreBackend {
	case "mongo":
		client, err := config.ConnectMongoDB(cfg)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Store connected", "backend", "mongo", "database", cfg.DBName)
		return NewMongoEngine(client.Database(cfg.DBName)), client.Disconnect, nil
	case "memory", "":
		logger.Info("Store ready", "backend", "memory")
		return NewMemoryEngine(), func(context.Context) error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
