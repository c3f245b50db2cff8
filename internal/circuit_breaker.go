package internal

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrCircuitOpen is returned without touching the backend while the breaker is open.
var ErrCircuitOpen = errors.New("store circuit breaker is open")

// CircuitBreaker is a lightweight in-memory circuit breaker.
type CircuitBreaker struct {
	mu           sync.Mutex
	failures     []time.Time
	threshold    int
	window       time.Duration
	openUntil    time.Time
	openDuration time.Duration
	now          func() time.Time
}

// NewCircuitBreaker creates a configured circuit breaker.
func NewCircuitBreaker(threshold int, window, openDuration time.Duration) *CircuitBreaker {
	if threshold < 1 {
		threshold = 1
	}
	return &CircuitBreaker{
		threshold:    threshold,
		window:       window,
		openDuration: openDuration,
		failures:     make([]time.Time, 0, threshold),
		now:          time.Now,
	}
}

// RecordFailure records a failure occurrence and opens the breaker if threshold exceeded.
func (cb *CircuitBreaker) RecordFailure() {
	if cb == nil {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.now()
	// drop old failures outside the window
	cutoff := now.Add(-cb.window)
	i := 0
	for ; i < len(cb.failures); i++ {
		if cb.failures[i].After(cutoff) {
			break
		}
	}
	if i > 0 {
		cb.failures = append([]time.Time{}, cb.failures[i:]...)
	}
	cb.failures = append(cb.failures, now)

	if len(cb.failures) >= cb.threshold {
		cb.openUntil = now.Add(cb.openDuration)
	}
}

// RecordSuccess resets failure history when operations succeed.
func (cb *CircuitBreaker) RecordSuccess() {
	if cb == nil {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = cb.failures[:0]
	cb.openUntil = time.Time{}
}

// IsOpen returns true if the breaker is currently open.
func (cb *CircuitBreaker) IsOpen() bool {
	if cb == nil {
		return false
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.now().Before(cb.openUntil)
}

// GuardedStore puts a circuit breaker and telemetry in front of a backend.
// Context cancellation is not counted as a backend failure.
type GuardedStore struct {
	next    KVStore
	breaker *CircuitBreaker
	backend string
}

// NewGuardedStore wraps next. A nil breaker only reports telemetry.
func NewGuardedStore(next KVStore, breaker *CircuitBreaker, backend string) *GuardedStore {
	return &GuardedStore{next: next, breaker: breaker, backend: backend}
}

// Unwrap returns the wrapped backend.
func (s *GuardedStore) Unwrap() KVStore { return s.next }

func (s *GuardedStore) do(ctx context.Context, op string, fn func() error) error {
	if s.breaker.IsOpen() {
		EmitBreakerRejection(ctx, s.backend, op)
		return ErrCircuitOpen
	}

	start := time.Now()
	err := fn()
	EmitStoreLatency(ctx, s.backend, op, time.Since(start).Milliseconds())

	switch {
	case err == nil:
		s.breaker.RecordSuccess()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrStoreClosed):
		EmitStoreFailure(ctx, s.backend, op)
	default:
		EmitStoreFailure(ctx, s.backend, op)
		s.breaker.RecordFailure()
		if s.breaker.IsOpen() {
			zap.S().Warnw("store circuit breaker opened", "backend", s.backend, "op", op, "error", err)
		}
	}
	return err
}

func (s *GuardedStore) HGet(ctx context.Context, key, field string) (value string, found bool, err error) {
	err = s.do(ctx, "hget", func() error {
		var inner error
		value, found, inner = s.next.HGet(ctx, key, field)
		return inner
	})
	return value, found, err
}

func (s *GuardedStore) HSet(ctx context.Context, key string, values map[string]string) error {
	return s.do(ctx, "hset", func() error { return s.next.HSet(ctx, key, values) })
}

func (s *GuardedStore) HDel(ctx context.Context, key string, fields ...string) error {
	return s.do(ctx, "hdel", func() error { return s.next.HDel(ctx, key, fields...) })
}

func (s *GuardedStore) Exists(ctx context.Context, key string) (exists bool, err error) {
	err = s.do(ctx, "exists", func() error {
		var inner error
		exists, inner = s.next.Exists(ctx, key)
		return inner
	})
	return exists, err
}

func (s *GuardedStore) ListMembers(ctx context.Context, key string) (members []string, err error) {
	err = s.do(ctx, "list_members", func() error {
		var inner error
		members, inner = s.next.ListMembers(ctx, key)
		return inner
	})
	return members, err
}

func (s *GuardedStore) ListReplace(ctx context.Context, key string, members []string) error {
	return s.do(ctx, "list_replace", func() error { return s.next.ListReplace(ctx, key, members) })
}

func (s *GuardedStore) Incr(ctx context.Context, key string) (n int64, err error) {
	err = s.do(ctx, "incr", func() error {
		var inner error
		n, inner = s.next.Incr(ctx, key)
		return inner
	})
	return n, err
}

func (s *GuardedStore) Del(ctx context.Context, keys ...string) error {
	return s.do(ctx, "del", func() error { return s.next.Del(ctx, keys...) })
}

// Close closes the wrapped backend regardless of breaker state.
func (s *GuardedStore) Close() error {
	return s.next.Close()
}
