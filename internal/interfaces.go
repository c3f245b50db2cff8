package internal

import (
	"context"
)

// KVStore is the hash, list and counter contract every backend in this package
// implements. It matches formakv.Store method for method.
type KVStore interface {
	HGet(ctx context.Context, key, field string) (string, bool, error)
	HSet(ctx context.Context, key string, values map[string]string) error
	HDel(ctx context.Context, key string, fields ...string) error
	Exists(ctx context.Context, key string) (bool, error)

	ListMembers(ctx context.Context, key string) ([]string, error)
	ListReplace(ctx context.Context, key string, members []string) error

	Incr(ctx context.Context, key string) (int64, error)
	Del(ctx context.Context, keys ...string) error
	Close() error
}

var (
	_ KVStore = (*MemoryStore)(nil)
	_ KVStore = (*RedisStore)(nil)
	_ KVStore = (*PostgresStore)(nil)
	_ KVStore = (*GuardedStore)(nil)
)
