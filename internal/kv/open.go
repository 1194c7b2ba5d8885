package kv

import (
	"context"
	"fmt"
	"log/slog"

	"postsync/internal/config"
	"postsync/internal/notifications"
	"postsync/internal/observability"

	"github.com/redis/go-redis/v9"
)

// Open builds the configured backend, wraps it with change notifications and starts cross-process
// delivery when the backend is Redis. The returned store owns the backend; close it when done.
func Open(ctx context.Context, cfg *config.Config) (*Notifying, error) {
	var (
		store Store
		rdb   *redis.Client
		err   error
	)

	switch cfg.StorageDriver {
	case config.DriverMemory:
		store = NewMemory(cfg.StorageQuotaBytes)
	case config.DriverSQLite:
		store, err = OpenSQLite(cfg.StoragePath)
	case config.DriverPostgres:
		store, err = OpenPostgres(cfg.StorageDSN)
	case config.DriverRedis:
		rdb, err = NewRedisClient(ctx, cfg.RedisURL)
		if err == nil {
			store = NewRedis(rdb, cfg.RedisNamespace)
		}
	default:
		err = fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
	if err != nil {
		return nil, err
	}

	bus := notifications.NewBus(rdb)
	if err := bus.StartRemote(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("subscribe to storage changes: %w", err)
	}

	observability.Logger.InfoContext(ctx, "local storage opened",
		slog.String("driver", cfg.StorageDriver),
		slog.Bool("cross_process", rdb != nil),
	)
	return NewNotifying(store, bus), nil
}
