package internal

import (
	"context"
	"sync"
)

// Metric names reported for store operations.
const (
	MetricStoreLatency  = "kv_store_latency_ms"
	MetricStoreFailures = "kv_store_failures"
	MetricBreakerOpen   = "kv_store_breaker_rejections"
)

// TelemetryEmitter receives one measurement. Labels always carry "op" and
// "backend".
type TelemetryEmitter func(ctx context.Context, name string, labels map[string]string, value any)

var (
	teleMu   sync.Mutex
	teleImpl TelemetryEmitter = func(ctx context.Context, name string, labels map[string]string, value any) {}
)

// RegisterTelemetryEmitter installs fn for every store measurement. A nil fn
// restores the no-op emitter.
func RegisterTelemetryEmitter(fn TelemetryEmitter) {
	teleMu.Lock()
	defer teleMu.Unlock()
	if fn == nil {
		teleImpl = func(ctx context.Context, name string, labels map[string]string, value any) {}
		return
	}
	teleImpl = fn
}

func emit(ctx context.Context, name, backend, op string, value any) {
	teleMu.Lock()
	fn := teleImpl
	teleMu.Unlock()
	fn(ctx, name, map[string]string{"backend": backend, "op": op}, value)
}

// EmitStoreLatency records how long one store operation took, in milliseconds.
func EmitStoreLatency(ctx context.Context, backend, op string, ms int64) {
	emit(ctx, MetricStoreLatency, backend, op, ms)
}

// EmitStoreFailure counts a failed store operation.
func EmitStoreFailure(ctx context.Context, backend, op string) {
	emit(ctx, MetricStoreFailures, backend, op, int64(1))
}

// EmitBreakerRejection counts a call refused by an open circuit breaker.
func EmitBreakerRejection(ctx context.Context, backend, op string) {
	emit(ctx, MetricBreakerOpen, backend, op, int64(1))
}
