package formakv

import (
	"context"
)

// Store is the key-value backend: one hash per instance plus lists for
// multi-valued fields. Implementations own retries and timeouts.
type Store interface {
	// HGet returns a hash field; found is false when the key or field is absent.
	HGet(ctx context.Context, key, field string) (value string, found bool, err error)
	HSet(ctx context.Context, key string, values map[string]string) error
	HDel(ctx context.Context, key string, fields ...string) error
	Exists(ctx context.Context, key string) (bool, error)

	// ListMembers returns every member of a list in order, empty when absent.
	ListMembers(ctx context.Context, key string) ([]string, error)
	// ListReplace atomically replaces a list's contents.
	ListReplace(ctx context.Context, key string, members []string) error

	Incr(ctx context.Context, key string) (int64, error)
	Del(ctx context.Context, keys ...string) error
	Close() error
}
