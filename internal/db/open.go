package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"superiorweather/internal/config"
	"superiorweather/internal/notifications/delivery"
)

// OpenStore opens the pending-notification store selected by STORE_BACKEND.
// The returned func releases its connections.
func OpenStore(ctx context.Context, sc config.StoreConfig, logger *slog.Logger) (delivery.Store, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch sc.Backend {
	case config.StorePostgres:
		pctx, cancel := context.WithTimeout(ctx, sc.AcquireTimeout+5*time.Second)
		defer cancel()

		pool, err := NewPool(pctx, PoolConfig{
			URL:               sc.DatabaseURL.Unmask(),
			MaxConns:          int32(sc.MaxConns),
			MinConns:          int32(sc.MinConns),
			MaxConnLifetime:   sc.MaxConnLifetime,
			HealthCheckPeriod: sc.HealthCheckPeriod,
			ConnectTimeout:    sc.AcquireTimeout,
		})
		if err != nil {
			return nil, nil, err
		}
		repo := NewScheduleRepository(pool)
		if err := repo.EnsureSchema(pctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ensuring schema: %w", err)
		}
		logger.Info("postgres schedule store ready", "max_conns", sc.MaxConns)
		return repo, pool.Close, nil

	case config.StoreRedis:
		pool := NewRedisPool(RedisConfig{
			Addr:      sc.RedisAddr,
			Password:  sc.RedisPassword,
			DB:        sc.RedisDB,
			KeyPrefix: sc.RedisKeyPrefix,
			MaxIdle:   sc.RedisMaxIdle,
			MaxActive: sc.RedisMaxActive,
		})
		store := NewRedisScheduleStore(pool, sc.RedisKeyPrefix)

		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := store.Ping(pctx); err != nil {
			_ = pool.Close()
			return nil, nil, err
		}
		logger.Info("redis schedule store ready", "addr", sc.RedisAddr, "prefix", sc.RedisKeyPrefix)
		return store, func() { _ = pool.Close() }, nil

	case config.StoreMemory, "":
		logger.Warn("using in-memory schedule store; pending notifications are lost on restart")
		return delivery.NewMemoryStore(), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", sc.Backend)
	}
}
