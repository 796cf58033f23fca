package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"insightboard/internal/config"
	"insightboard/internal/domain/repositories"
	"insightboard/internal/domain/services"
	"insightboard/internal/repository/memory"
	"insightboard/internal/repository/postgres"
	redisrepo "insightboard/internal/repository/redis"
	"insightboard/internal/repository/sqlite"
)

const (
	guestKeyPrefix   = "insightboard:"
	eventStreamLen   = 10000
	sqliteSweepEvery = time.Hour
)

// durableStores is the member backend: Postgres when DATABASE_URL is set,
// otherwise an in-process driver that forgets everything on restart.
type durableStores struct {
	driver repositories.DocumentDriver
	tx     repositories.TransactionManager
	quotas repositories.QuotaStore
	close  func()
}

func openDurable(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*durableStores, error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, member data is kept in memory")
		driver := memory.NewDocumentDriver()
		return &durableStores{driver: driver, tx: driver, quotas: memory.NewQuotaStore(), close: func() {}}, nil
	}

	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: postgres.NewTableNames(cfg.TablePrefix),
		Logger: logger,
	}
	if err := postgres.EnsureSchema(ctx, repoConfig); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("database connected", "table_prefix", cfg.TablePrefix)
	return &durableStores{
		driver: postgres.NewDocumentDriver(repoConfig),
		tx:     postgres.NewTransactionManager(pool, logger),
		quotas: postgres.NewQuotaStore(repoConfig),
		close:  pool.Close,
	}, nil
}

// guestStore is the KV backend holding guest graphs, quota blobs and
// migration markers.
type guestStore struct {
	kv    repositories.KVStore
	close func()
}

func openGuestStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*guestStore, error) {
	switch cfg.GuestStore {
	case "memory":
		return &guestStore{kv: memory.NewKVStore(), close: func() {}}, nil

	case "redis":
		client, err := redisrepo.NewClient(ctx, redisrepo.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("guest store connected", "backend", "redis", "addr", cfg.RedisAddr)
		return &guestStore{
			kv:    redisrepo.NewKVStore(client, guestKeyPrefix, cfg.GuestTTL),
			close: func() { _ = client.Close() },
		}, nil

	case "sqlite":
		kv, err := sqlite.Open(cfg.GuestSQLitePath, cfg.GuestTTL)
		if err != nil {
			return nil, err
		}
		logger.Info("guest store opened", "backend", "sqlite", "path", cfg.GuestSQLitePath)
		go sweepExpired(ctx, kv, logger)
		return &guestStore{kv: kv, close: func() { _ = kv.Close() }}, nil
	}
	return nil, fmt.Errorf("unknown GUEST_STORE %q (want memory, redis or sqlite)", cfg.GuestStore)
}

// sweepExpired purges expired sqlite rows until ctx is done.
func sweepExpired(ctx context.Context, kv *sqlite.KVStore, logger *slog.Logger) {
	ticker := time.NewTicker(sqliteSweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := kv.Sweep(ctx)
			if err != nil {
				logger.Warn("guest sweep failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Debug("guest sweep", "removed", n)
			}
		}
	}
}

// openEventSink returns nil when EVENT_STREAM is unset; the mutation service
// then skips publishing.
func openEventSink(ctx context.Context, cfg *config.Config) (services.EventSink, func(), error) {
	if cfg.EventStream == "" {
		return nil, func() {}, nil
	}
	client, err := redisrepo.NewClient(ctx, redisrepo.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, nil, err
	}
	return redisrepo.NewEventSink(client, cfg.EventStream, eventStreamLen), func() { _ = client.Close() }, nil
}
