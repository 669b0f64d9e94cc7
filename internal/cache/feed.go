package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/busan-travel-service/internal/observability"
)

// Entry is what a Feed stores: the value and the instant it was computed.
type Entry[T any] struct {
	CapturedAt time.Time `json:"captured_at"`
	Value      T         `json:"value"`
}

// Fresh reports whether the entry is younger than ttl at now.
func (e Entry[T]) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.CapturedAt) < ttl
}

// Feed is one named cache slot with its own TTL. Backend errors are logged,
// counted and otherwise treated as a miss (Get) or ignored (Put).
type Feed[T any] struct {
	name    string
	ttl     time.Duration
	backend Backend
	logger  *zap.Logger
}

// NewFeed returns a feed stored under "weather:<name>" in backend.
func NewFeed[T any](name string, ttl time.Duration, backend Backend, logger *zap.Logger) *Feed[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Feed[T]{name: name, ttl: ttl, backend: backend, logger: logger}
}

// Name is the feed name used in the cache key and metric labels.
func (f *Feed[T]) Name() string { return f.name }

// TTL is how long a stored entry stays fresh.
func (f *Feed[T]) TTL() time.Duration { return f.ttl }

func (f *Feed[T]) key() string { return "weather:" + f.name }

// Get returns the stored value when it was captured less than TTL before now.
func (f *Feed[T]) Get(ctx context.Context, now time.Time) (T, bool) {
	var zero T
	e, ok := f.load(ctx)
	if !ok || !e.Fresh(now, f.ttl) {
		observability.CacheMissesTotal.WithLabelValues(f.name).Inc()
		return zero, false
	}
	observability.CacheHitsTotal.WithLabelValues(f.name).Inc()
	return e.Value, true
}

// Put stores value captured at now, overwriting any previous entry.
func (f *Feed[T]) Put(ctx context.Context, value T, now time.Time) {
	raw, err := json.Marshal(Entry[T]{CapturedAt: now, Value: value})
	if err != nil {
		f.logger.Error("cache encode failed", zap.String("feed", f.name), zap.Error(err))
		return
	}
	start := time.Now()
	if err := f.backend.Set(ctx, f.key(), raw, f.ttl); err != nil {
		observability.CacheErrorsTotal.WithLabelValues("set", categorizeError(err)).Inc()
		observability.CacheOperationDurationSeconds.WithLabelValues("set", "error").Observe(time.Since(start).Seconds())
		f.logger.Warn("cache set failed", zap.String("feed", f.name), zap.Error(err))
		return
	}
	observability.CacheOperationDurationSeconds.WithLabelValues("set", "success").Observe(time.Since(start).Seconds())
}

func (f *Feed[T]) load(ctx context.Context) (Entry[T], bool) {
	start := time.Now()
	raw, ok, err := f.backend.Get(ctx, f.key())
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("get", categorizeError(err)).Inc()
		observability.CacheOperationDurationSeconds.WithLabelValues("get", "error").Observe(time.Since(start).Seconds())
		f.logger.Warn("cache get failed", zap.String("feed", f.name), zap.Error(err))
		return Entry[T]{}, false
	}
	observability.CacheOperationDurationSeconds.WithLabelValues("get", "success").Observe(time.Since(start).Seconds())
	if !ok {
		return Entry[T]{}, false
	}
	var e Entry[T]
	if err := json.Unmarshal(raw, &e); err != nil {
		err = fmt.Errorf("decode %s entry: %w", f.name, err)
		observability.CacheErrorsTotal.WithLabelValues("get", categorizeError(err)).Inc()
		f.logger.Warn("cache entry unreadable", zap.String("feed", f.name), zap.Error(err))
		return Entry[T]{}, false
	}
	return e, true
}
