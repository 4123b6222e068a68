package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBackendExpiry(t *testing.T) {
	m := NewMemoryBackend()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "product:1", []byte("apple"), time.Minute))
	value, ok, err := m.Get(ctx, "product:1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("apple"), value)

	now = now.Add(time.Minute)
	_, ok, err = m.Get(ctx, "product:1")
	require.NoError(t, err)
	assert.False(t, ok, "entries expire at their deadline")
	assert.Zero(t, m.Len())
}

func TestMemoryBackendReturnsCopies(t *testing.T) {
	m := NewMemoryBackend()
	ctx := context.Background()

	value := []byte("apple")
	require.NoError(t, m.Set(ctx, "k", value, time.Minute))
	value[0] = 'X'

	got, _, _ := m.Get(ctx, "k")
	got[1] = 'Y'
	again, _, _ := m.Get(ctx, "k")
	assert.Equal(t, "apple", string(again))
}

func TestMemoryBackendDeletePrefix(t *testing.T) {
	m := NewMemoryBackend()
	ctx := context.Background()

	for _, key := range []string{"product-list:1", "product-list:2", "product:1", "product:12"} {
		require.NoError(t, m.Set(ctx, key, []byte("x"), time.Minute))
	}
	require.NoError(t, m.DeletePrefix(ctx, ProductListPrefix))

	for key, want := range map[string]bool{
		"product-list:1": false,
		"product-list:2": false,
		"product:1":      true,
		"product:12":     true,
	} {
		_, ok, _ := m.Get(ctx, key)
		assert.Equal(t, want, ok, key)
	}
}

func TestMemoryBackendSets(t *testing.T) {
	m := NewMemoryBackend()
	ctx := context.Background()

	members, err := m.SetMembers(ctx, SearchRegistry)
	require.NoError(t, err)
	assert.Empty(t, members)

	require.NoError(t, m.AddToSet(ctx, SearchRegistry, "a", "b"))
	require.NoError(t, m.AddToSet(ctx, SearchRegistry, "a"))
	members, err = m.SetMembers(ctx, SearchRegistry)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, members)

	require.NoError(t, m.Delete(ctx, SearchRegistry))
	members, _ = m.SetMembers(ctx, SearchRegistry)
	assert.Empty(t, members)
}
