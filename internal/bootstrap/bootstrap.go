// Package bootstrap opens the backing services the binaries share.
package bootstrap

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	"github.com/jwalitptl/clinic-api/internal/repository/postgres"
	"github.com/jwalitptl/clinic-api/pkg/lock"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/messaging"
	redisbroker "github.com/jwalitptl/clinic-api/pkg/messaging/redis"
)

// Logger builds the process logger from the log section.
func Logger(cfg config.LogConfig, service string) zerolog.Logger {
	return logger.New(&logger.Config{Level: cfg.Level, Pretty: cfg.Pretty}).
		With().
		Str("service", service).
		Logger()
}

// OpenStore returns the repositories for the configured driver and a func
// that releases them.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig, log zerolog.Logger) (*repository.Repositories, func() error, error) {
	switch cfg.Driver {
	case "memory":
		log.Warn().Msg("using in-memory store, data is lost on exit")
		return memory.NewRepositories(), func() error { return nil }, nil
	case "postgres":
		db, err := postgres.NewDB(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("host", cfg.Host).Str("database", cfg.Name).Msg("connected to postgres")
		return postgres.NewRepositories(db), db.Close, nil
	}
	return nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

// OpenRedis connects when Redis is enabled. A nil client means run without it.
func OpenRedis(ctx context.Context, cfg config.RedisConfig, log zerolog.Logger) (*goredis.Client, error) {
	if !cfg.Enabled {
		log.Warn().Msg("redis disabled, using process-local lock and broker")
		return nil, nil
	}
	client, err := redisbroker.Connect(ctx, redisbroker.Config{
		URL:          cfg.URL,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Locker picks the Redis lock when a client is available.
func Locker(client *goredis.Client, cfg config.SchedulingConfig) lock.Locker {
	opts := lock.Options{TTL: cfg.LockTTL, Wait: cfg.LockWait}
	if client == nil {
		return lock.NewLocalLocker(opts)
	}
	return lock.NewRedisLocker(client, opts)
}

// Broker picks the Redis pub/sub broker when a client is available.
func Broker(client *goredis.Client, log zerolog.Logger) messaging.Broker {
	if client == nil {
		return messaging.NewMemoryBroker(0)
	}
	return redisbroker.NewRedisBroker(client, log)
}
