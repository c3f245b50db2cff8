package factory

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	formakv "github.com/lychee-technology/formakv"
	"github.com/lychee-technology/formakv/internal"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRegistryWithConfig opens the configured store and returns a registry over it.
// This is the primary way for external projects to create a Registry.
//
// Usage:
//
//	import (
//	    "github.com/lychee-technology/formakv"
//	    "github.com/lychee-technology/formakv/factory"
//	)
//
//	cfg, err := formakv.LoadConfig("formakv.yaml")
//	if err != nil {
//	    // handle error
//	}
//	registry, err := factory.NewRegistryWithConfig(ctx, cfg)
//	if err != nil {
//	    // handle error
//	}
//	defer registry.Store().Close()
func NewRegistryWithConfig(ctx context.Context, cfg *formakv.Config) (*formakv.Registry, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	store, err := NewStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	registry, err := NewRegistryWithStore(cfg, store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return registry, nil
}

// NewRegistryWithStore applies the model settings of cfg to a registry over an
// existing store.
func NewRegistryWithStore(cfg *formakv.Config, store formakv.Store) (*formakv.Registry, error) {
	loc, err := cfg.Model.LoadLocation()
	if err != nil {
		return nil, &formakv.ConfigError{Field: "model.location", Message: err.Error()}
	}
	return formakv.NewRegistry(store,
		formakv.WithLocation(loc),
		formakv.WithIDStrategy(cfg.Model.IDStrategy),
		formakv.WithKeyPrefix(cfg.Store.KeyPrefix),
	), nil
}

// NewStore opens the backend selected by cfg.Store.Backend, behind a circuit
// breaker when cfg.Store.CircuitBreaker is enabled.
func NewStore(ctx context.Context, cfg *formakv.Config) (formakv.Store, error) {
	store, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	cb := cfg.Store.CircuitBreaker
	if !cb.Enabled {
		return store, nil
	}
	backend := cfg.Store.Backend
	if backend == "" {
		backend = formakv.StoreBackendMemory
	}
	zap.S().Debugw("store circuit breaker enabled", "backend", backend, "threshold", cb.Threshold)
	return internal.NewGuardedStore(store,
		internal.NewCircuitBreaker(cb.Threshold, cb.Window, cb.OpenDuration), backend), nil
}

func openBackend(ctx context.Context, cfg *formakv.Config) (internal.KVStore, error) {
	switch cfg.Store.Backend {
	case formakv.StoreBackendMemory, "":
		zap.S().Debugw("using in-memory store")
		return internal.NewMemoryStore(), nil
	case formakv.StoreBackendRedis:
		return newRedisStore(ctx, cfg.Store.Redis)
	case formakv.StoreBackendPostgres:
		return newPostgresStore(ctx, cfg.Store.Postgres)
	default:
		return nil, &formakv.ConfigError{Field: "store.backend", Message: fmt.Sprintf("unknown backend %q", cfg.Store.Backend)}
	}
}

func newRedisStore(ctx context.Context, cfg formakv.RedisConfig) (*internal.RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	store := internal.NewRedisStore(client)
	if err := store.Ping(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	zap.S().Infow("connected to redis store", "addr", cfg.Addr, "db", cfg.DB)
	return store, nil
}

func newPostgresStore(ctx context.Context, cfg formakv.DatabaseConfig) (*internal.PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConnections)
	poolCfg.MinConns = int32(cfg.MinConnections)
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	if cfg.ConnMaxIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.ConnMaxIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := internal.PostgresHealthCheck(ctx, pool, cfg.Timeout); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to postgres at %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	store, err := internal.NewPostgresStore(pool, internal.StoreTables{
		Hashes:   cfg.TableNames.Hashes,
		Lists:    cfg.TableNames.Lists,
		Counters: cfg.TableNames.Counters,
	}, cfg.Timeout)
	if err != nil {
		pool.Close()
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to prepare postgres store: %w", err)
	}
	zap.S().Infow("connected to postgres store", "host", cfg.Host, "database", cfg.Database)
	return store, nil
}
