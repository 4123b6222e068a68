package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrMohammed1/miran-search/app/metrics"
)

// failingBackend fails every operation listed in fail and delegates the rest.
type failingBackend struct {
	*MemoryBackend
	fail map[string]bool
}

var errUnavailable = errors.New("backend unavailable")

func (f *failingBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if f.fail["get"] {
		return nil, false, errUnavailable
	}
	return f.MemoryBackend.Get(ctx, key)
}

func (f *failingBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if f.fail["set"] {
		return errUnavailable
	}
	return f.MemoryBackend.Set(ctx, key, value, ttl)
}

func (f *failingBackend) DeletePrefix(ctx context.Context, prefix string) error {
	if f.fail["delete_prefix"] {
		return errUnavailable
	}
	return f.MemoryBackend.DeletePrefix(ctx, prefix)
}

func (f *failingBackend) SetMembers(ctx context.Context, set string) ([]string, error) {
	if f.fail["set_members"] {
		return nil, errUnavailable
	}
	return f.MemoryBackend.SetMembers(ctx, set)
}

func returns(value []byte) func(context.Context) ([]byte, error) {
	return func(context.Context) ([]byte, error) { return value, nil }
}

func TestGetOrComputeReadThrough(t *testing.T) {
	collector := metrics.NewCollector("test")
	layer := NewLayer(NewMemoryBackend(), time.Minute, nil, collector)
	ctx := context.Background()

	calls := 0
	compute := func(context.Context) ([]byte, error) {
		calls++
		return []byte("page-1"), nil
	}

	for i := 0; i < 3; i++ {
		value, err := layer.GetOrCompute(ctx, ProductListKey(1), 0, compute)
		require.NoError(t, err)
		assert.Equal(t, "page-1", string(value))
	}
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.CacheMisses.WithLabelValues("product-list")))
	assert.Equal(t, 2.0, testutil.ToFloat64(collector.CacheHits.WithLabelValues("product-list")))
}

func TestGetOrComputeDoesNotCacheErrors(t *testing.T) {
	backend := NewMemoryBackend()
	layer := NewLayer(backend, time.Minute, nil, nil)
	boom := errors.New("db down")

	_, err := layer.GetOrCompute(context.Background(), ProductKey(1), 0, func(context.Context) ([]byte, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, backend.Len())
}

func TestDefaultTTL(t *testing.T) {
	assert.Equal(t, DefaultTTL, NewLayer(NewMemoryBackend(), 0, nil, nil).TTL())
	assert.Equal(t, DefaultTTL, NewLayer(NewMemoryBackend(), -time.Second, nil, nil).TTL())
	assert.Equal(t, 600*time.Second, DefaultTTL)
}

func TestEntriesExpireAfterLayerTTL(t *testing.T) {
	backend := NewMemoryBackend()
	now := time.Now()
	backend.now = func() time.Time { return now }
	layer := NewLayer(backend, 0, nil, nil)

	_, err := layer.GetOrCompute(context.Background(), ProductKey(3), 0, returns([]byte("v1")))
	require.NoError(t, err)

	now = now.Add(DefaultTTL - time.Second)
	value, _ := layer.GetOrCompute(context.Background(), ProductKey(3), 0, returns([]byte("v2")))
	assert.Equal(t, "v1", string(value))

	now = now.Add(2 * time.Second)
	value, _ = layer.GetOrCompute(context.Background(), ProductKey(3), 0, returns([]byte("v2")))
	assert.Equal(t, "v2", string(value))
}

func TestFetchTyped(t *testing.T) {
	layer := NewLayer(NewMemoryBackend(), time.Minute, nil, nil)
	ctx := context.Background()

	type page struct {
		Count   int      `json:"count"`
		Results []string `json:"results"`
	}
	calls := 0
	compute := func(context.Context) (page, error) {
		calls++
		return page{Count: 2, Results: []string{"Apple", "Milk"}}, nil
	}

	cold, err := Fetch(ctx, layer, ProductListKey(1), compute)
	require.NoError(t, err)
	warm, err := Fetch(ctx, layer, ProductListKey(1), compute)
	require.NoError(t, err)

	assert.Equal(t, cold, warm)
	assert.Equal(t, 1, calls)
}

func TestFetchRecomputesUndecodableEntry(t *testing.T) {
	backend := NewMemoryBackend()
	layer := NewLayer(backend, time.Minute, nil, nil)
	ctx := context.Background()
	require.NoError(t, backend.Set(ctx, ProductKey(1), []byte("not json"), time.Minute))

	got, err := Fetch(ctx, layer, ProductKey(1), func(context.Context) (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, got)

	raw, ok, _ := backend.Get(ctx, ProductKey(1))
	require.True(t, ok)
	assert.Equal(t, "42", string(raw))
}

func TestCacheSearchRegistersKey(t *testing.T) {
	backend := NewMemoryBackend()
	layer := NewLayer(backend, time.Minute, nil, nil)
	ctx := context.Background()

	key := SearchKey("apple", "", "", "", "1", "30")
	_, err := layer.CacheSearch(ctx, key, 0, returns([]byte("hits")))
	require.NoError(t, err)
	_, err = FetchSearch(ctx, layer, SearchKey("milk", "", "", "", "1", "30"), func(context.Context) ([]string, error) {
		return []string{"Milk"}, nil
	})
	require.NoError(t, err)

	members, err := backend.SetMembers(ctx, SearchRegistry)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{key, SearchKey("milk", "", "", "", "1", "30")}, members)
}

func TestInvalidateProduct(t *testing.T) {
	backend := NewMemoryBackend()
	collector := metrics.NewCollector("test")
	layer := NewLayer(backend, time.Minute, nil, collector)
	ctx := context.Background()

	for _, key := range []string{ProductListKey(1), ProductListKey(2), ProductKey(1), ProductKey(2)} {
		_, err := layer.GetOrCompute(ctx, key, 0, returns([]byte("stale")))
		require.NoError(t, err)
	}
	search := SearchKey("apple")
	_, err := layer.CacheSearch(ctx, search, 0, returns([]byte("stale")))
	require.NoError(t, err)

	layer.InvalidateProduct(ctx, 1)

	for key, want := range map[string]bool{
		ProductListKey(1): false,
		ProductListKey(2): false,
		ProductKey(1):     false,
		ProductKey(2):     true,
		search:            false,
	} {
		_, ok, _ := backend.Get(ctx, key)
		assert.Equal(t, want, ok, key)
	}
	members, _ := backend.SetMembers(ctx, SearchRegistry)
	assert.Empty(t, members)
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.Invalidations.WithLabelValues("product")))
}

func TestInvalidateCatalogClearsAllDetails(t *testing.T) {
	backend := NewMemoryBackend()
	layer := NewLayer(backend, time.Minute, nil, nil)
	ctx := context.Background()

	for _, key := range []string{ProductListKey(1), ProductKey(1), ProductKey(2)} {
		_, err := layer.GetOrCompute(ctx, key, 0, returns([]byte("stale")))
		require.NoError(t, err)
	}
	_, err := layer.CacheSearch(ctx, SearchKey("milk"), 0, returns([]byte("stale")))
	require.NoError(t, err)

	layer.InvalidateCatalog(ctx)
	assert.Zero(t, backend.Len())
}

func TestReadAfterInvalidateIsFresh(t *testing.T) {
	layer := NewLayer(NewMemoryBackend(), time.Minute, nil, nil)
	ctx := context.Background()

	value, _ := layer.GetOrCompute(ctx, ProductListKey(1), 0, returns([]byte("before")))
	assert.Equal(t, "before", string(value))

	layer.InvalidateProduct(ctx, 99)

	value, _ = layer.GetOrCompute(ctx, ProductListKey(1), 0, returns([]byte("after")))
	assert.Equal(t, "after", string(value))
}

func TestComputeOverlappingInvalidationIsNotCached(t *testing.T) {
	backend := NewMemoryBackend()
	layer := NewLayer(backend, time.Minute, nil, nil)
	ctx := context.Background()

	// A write lands and invalidates while the page is being computed.
	stale := func(ctx context.Context) ([]byte, error) {
		layer.InvalidateProduct(ctx, 7)
		return []byte("before-write"), nil
	}

	value, err := layer.GetOrCompute(ctx, ProductListKey(1), 0, stale)
	require.NoError(t, err)
	assert.Equal(t, "before-write", string(value))
	_, ok, _ := backend.Get(ctx, ProductListKey(1))
	assert.False(t, ok, "stale list page must not be stored")

	_, err = layer.CacheSearch(ctx, SearchKey("apple"), 0, func(ctx context.Context) ([]byte, error) {
		layer.InvalidateCatalog(ctx)
		return []byte("before-write"), nil
	})
	require.NoError(t, err)
	_, ok, _ = backend.Get(ctx, SearchKey("apple"))
	assert.False(t, ok, "stale search page must not be stored")

	product, err := Fetch(ctx, layer, ProductKey(7), func(ctx context.Context) (string, error) {
		layer.InvalidateProduct(ctx, 7)
		return "before-write", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "before-write", product)
	_, ok, _ = backend.Get(ctx, ProductKey(7))
	assert.False(t, ok)

	value, err = layer.GetOrCompute(ctx, ProductListKey(1), 0, returns([]byte("after-write")))
	require.NoError(t, err)
	assert.Equal(t, "after-write", string(value))
	cached, ok, _ := backend.Get(ctx, ProductListKey(1))
	require.True(t, ok, "computes after the invalidation are cached again")
	assert.Equal(t, "after-write", string(cached))
}

func TestLayerToleratesBackendFailures(t *testing.T) {
	backend := &failingBackend{MemoryBackend: NewMemoryBackend(), fail: map[string]bool{"get": true, "set": true}}
	collector := metrics.NewCollector("test")
	layer := NewLayer(backend, time.Minute, nil, collector)

	value, err := layer.GetOrCompute(context.Background(), ProductKey(1), 0, returns([]byte("fresh")))
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(value))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.CacheErrors.WithLabelValues("get")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.CacheErrors.WithLabelValues("set")))
}

func TestInvalidationIsBestEffort(t *testing.T) {
	mem := NewMemoryBackend()
	backend := &failingBackend{MemoryBackend: mem, fail: map[string]bool{"delete_prefix": true}}
	layer := NewLayer(backend, time.Minute, nil, nil)
	ctx := context.Background()

	_, _ = layer.GetOrCompute(ctx, ProductKey(1), 0, returns([]byte("stale")))
	_, _ = layer.CacheSearch(ctx, SearchKey("apple"), 0, returns([]byte("stale")))

	layer.InvalidateProduct(ctx, 1)

	// The prefix sweep failed but the remaining steps still ran.
	_, ok, _ := mem.Get(ctx, ProductKey(1))
	assert.False(t, ok)
	_, ok, _ = mem.Get(ctx, SearchKey("apple"))
	assert.False(t, ok)
}

func TestUnreadableRegistryFallsBackToPrefixSweep(t *testing.T) {
	mem := NewMemoryBackend()
	backend := &failingBackend{MemoryBackend: mem, fail: map[string]bool{"set_members": true}}
	layer := NewLayer(backend, time.Minute, nil, nil)
	ctx := context.Background()

	_, _ = layer.CacheSearch(ctx, SearchKey("apple"), 0, returns([]byte("stale")))
	layer.InvalidateProduct(ctx, 1)

	_, ok, _ := mem.Get(ctx, SearchKey("apple"))
	assert.False(t, ok)
}

func TestSearchKey(t *testing.T) {
	a := SearchKey("ab", "c")
	b := SearchKey("a", "bc")
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, SearchKey("ab", "c"))
	assert.Regexp(t, `^product-search:[0-9a-f]+$`, a)
	assert.Equal(t, "product:12", ProductKey(12))
	assert.Equal(t, "product-list:3", ProductListKey(3))
}
