package cache

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/MrMohammed1/miran-search/app/logging"
	"github.com/MrMohammed1/miran-search/app/metrics"
)

const (
	DefaultTTL = 600 * time.Second
	tracerName = "github.com/MrMohammed1/miran-search/app/cache"
)

// Layer is the read-through cache in front of the catalog store. Backend
// failures are logged and counted but never returned: reads fall through to
// compute and invalidation carries on with its remaining steps.
//
// A value computed while an invalidation ran in this process is returned
// but not stored. Invalidations on other nodes sharing the backend are not
// seen, so there a page read before a write can still be cached after it.
type Layer struct {
	backend Backend
	ttl     time.Duration
	logger  *zap.Logger
	metrics *metrics.Collector

	// generation is bumped by every invalidation.
	generation atomic.Uint64
}

func NewLayer(backend Backend, ttl time.Duration, logger *zap.Logger, collector *metrics.Collector) *Layer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if collector == nil {
		collector = metrics.NewCollector("miran")
	}
	return &Layer{
		backend: backend,
		ttl:     ttl,
		logger:  logging.OrNop(logger),
		metrics: collector,
	}
}

func (l *Layer) TTL() time.Duration {
	return l.ttl
}

// GetOrCompute returns the cached value for key, or computes, stores and
// returns it. A non-positive ttl means the layer default. Compute errors are
// returned and nothing is cached.
func (l *Layer) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute func(context.Context) ([]byte, error)) ([]byte, error) {
	return l.getOrCompute(ctx, key, ttl, false, compute)
}

// CacheSearch is GetOrCompute for search result pages: the key is also
// recorded in the search registry so invalidation can find it.
func (l *Layer) CacheSearch(ctx context.Context, key string, ttl time.Duration, compute func(context.Context) ([]byte, error)) ([]byte, error) {
	return l.getOrCompute(ctx, key, ttl, true, compute)
}

func (l *Layer) getOrCompute(ctx context.Context, key string, ttl time.Duration, register bool, compute func(context.Context) ([]byte, error)) ([]byte, error) {
	if value, ok := l.lookup(ctx, key); ok {
		return value, nil
	}
	gen := l.generation.Load()
	value, err := compute(ctx)
	if err != nil {
		return nil, err
	}
	l.store(ctx, key, value, ttl, register, gen)
	return value, nil
}

// Fetch is a typed read-through over JSON-encoded entries using the layer TTL.
func Fetch[T any](ctx context.Context, l *Layer, key string, compute func(context.Context) (T, error)) (T, error) {
	return fetch(ctx, l, key, false, compute)
}

// FetchSearch is Fetch for search result pages.
func FetchSearch[T any](ctx context.Context, l *Layer, key string, compute func(context.Context) (T, error)) (T, error) {
	return fetch(ctx, l, key, true, compute)
}

func fetch[T any](ctx context.Context, l *Layer, key string, register bool, compute func(context.Context) (T, error)) (T, error) {
	if raw, ok := l.lookup(ctx, key); ok {
		var cached T
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
		l.logger.Warn("discarding undecodable cache entry", zap.String("key", key))
	}

	gen := l.generation.Load()
	value, err := compute(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		l.logger.Error("encode cache entry", zap.String("key", key), zap.Error(err))
		return value, nil
	}
	l.store(ctx, key, raw, 0, register, gen)
	return value, nil
}

// InvalidateProduct clears every entry that may hold data of product id:
// all list pages, the detail entry and every registered search page.
// It runs synchronously.
func (l *Layer) InvalidateProduct(ctx context.Context, id uint) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "cache.InvalidateProduct")
	defer span.End()
	span.SetAttributes(attribute.Int64("product.id", int64(id)))

	l.generation.Add(1)
	l.metrics.Invalidations.WithLabelValues("product").Inc()
	l.deletePrefix(ctx, ProductListPrefix)
	if err := l.backend.Delete(ctx, ProductKey(id)); err != nil {
		l.backendError("delete", err, zap.Uint("product_id", id))
	}
	l.clearSearches(ctx)
}

// InvalidateCatalog is InvalidateProduct for every product at once. Category
// writes need it since category data is embedded in product responses.
func (l *Layer) InvalidateCatalog(ctx context.Context) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "cache.InvalidateCatalog")
	defer span.End()

	l.generation.Add(1)
	l.metrics.Invalidations.WithLabelValues("catalog").Inc()
	l.deletePrefix(ctx, ProductListPrefix)
	l.deletePrefix(ctx, ProductPrefix)
	l.clearSearches(ctx)
}

func (l *Layer) clearSearches(ctx context.Context) {
	members, err := l.backend.SetMembers(ctx, SearchRegistry)
	if err != nil {
		l.backendError("set_members", err)
		// The registry is unreadable; fall back to sweeping the whole family.
		l.deletePrefix(ctx, SearchPrefix)
	} else if len(members) > 0 {
		if err := l.backend.Delete(ctx, members...); err != nil {
			l.backendError("delete", err, zap.Int("keys", len(members)))
		}
	}
	if err := l.backend.Delete(ctx, SearchRegistry); err != nil {
		l.backendError("delete", err, zap.String("key", SearchRegistry))
	}
}

func (l *Layer) lookup(ctx context.Context, key string) ([]byte, bool) {
	value, ok, err := l.backend.Get(ctx, key)
	if err != nil {
		l.backendError("get", err, zap.String("key", key))
		return nil, false
	}
	if !ok {
		l.metrics.CacheMisses.WithLabelValues(family(key)).Inc()
		return nil, false
	}
	l.metrics.CacheHits.WithLabelValues(family(key)).Inc()
	return value, true
}

// store writes value unless an invalidation started after gen was read.
func (l *Layer) store(ctx context.Context, key string, value []byte, ttl time.Duration, register bool, gen uint64) {
	if ttl <= 0 {
		ttl = l.ttl
	}
	if l.generation.Load() != gen {
		l.logger.Debug("skipping cache fill computed across an invalidation", zap.String("key", key))
		return
	}
	if register {
		// A search entry must never exist unregistered.
		if err := l.backend.AddToSet(ctx, SearchRegistry, key); err != nil {
			l.backendError("add_to_set", err, zap.String("key", key))
			return
		}
	}
	if err := l.backend.Set(ctx, key, value, ttl); err != nil {
		l.backendError("set", err, zap.String("key", key))
		return
	}
	// An invalidation that began during Set may have swept before it landed.
	if l.generation.Load() != gen {
		if err := l.backend.Delete(ctx, key); err != nil {
			l.backendError("delete", err, zap.String("key", key))
		}
	}
}

func (l *Layer) deletePrefix(ctx context.Context, prefix string) {
	if err := l.backend.DeletePrefix(ctx, prefix); err != nil {
		l.backendError("delete_prefix", err, zap.String("prefix", prefix))
	}
}

func (l *Layer) backendError(op string, err error, fields ...zap.Field) {
	l.metrics.CacheErrors.WithLabelValues(op).Inc()
	l.logger.Warn("cache backend error", append(fields, zap.String("operation", op), zap.Error(err))...)
}
