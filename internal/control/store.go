package control

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vietddude/walletwatch/internal/core/config"
	redisclient "github.com/vietddude/walletwatch/internal/infra/redis"
	"github.com/vietddude/walletwatch/internal/infra/storage"
	"github.com/vietddude/walletwatch/internal/infra/storage/file"
	"github.com/vietddude/walletwatch/internal/infra/storage/memory"
	"github.com/vietddude/walletwatch/internal/infra/storage/postgres"
)

// OpenStore opens the configured state backend. rc is reused for the redis
// driver when not nil.
func OpenStore(ctx context.Context, cfg *config.AppConfig, rc *redisclient.Client) (storage.Store, error) {
	switch cfg.Storage.Driver {
	case config.StorageFile, "":
		slog.Info("Using file storage", "path", cfg.Storage.Path)
		return file.New(cfg.Storage.Path), nil

	case config.StorageRedis:
		slog.Info("Using Redis storage")
		if rc != nil {
			return redisclient.NewStateStore(rc, cfg.Redis.Prefix), nil
		}
		return redisclient.OpenStateStore(cfg.Redis)

	case config.StoragePostgres:
		slog.Info("Using PostgreSQL storage")
		store, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		return store, nil

	case config.StorageMemory:
		slog.Info("Using Memory storage")
		return memory.NewStorage(), nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
