package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sociodent/sociodent/backend/internal/domain/providers"
)

func newTestMemoryAdapter(t *testing.T, size int) (*MemoryAdapter, *time.Time) {
	t.Helper()
	a, err := NewMemoryAdapter(size)
	require.NoError(t, err)
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }
	return a, &now
}

func TestMemoryAdapter_Expiry(t *testing.T) {
	a, now := newTestMemoryAdapter(t, 10)
	ctx := context.Background()

	require.NoError(t, a.Set(ctx, "k", []byte("v"), 60))
	val, err := a.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(val))

	*now = now.Add(61 * time.Second)
	_, err = a.Get(ctx, "k")
	assert.ErrorIs(t, err, providers.ErrCacheMiss)

	ok, err := a.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryAdapter_Eviction(t *testing.T) {
	a, _ := newTestMemoryAdapter(t, 2)
	ctx := context.Background()

	require.NoError(t, a.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, a.Set(ctx, "b", []byte("2"), 0))
	require.NoError(t, a.Set(ctx, "c", []byte("3"), 0))

	_, err := a.Get(ctx, "a")
	assert.ErrorIs(t, err, providers.ErrCacheMiss)
	_, err = a.Get(ctx, "c")
	assert.NoError(t, err)
}

func TestMemoryAdapter_Incr(t *testing.T) {
	a, now := newTestMemoryAdapter(t, 10)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		n, err := a.Incr(ctx, "attempts", 300)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}

	*now = now.Add(5 * time.Minute)
	n, err := a.Incr(ctx, "attempts", 300)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "counter restarts after its window")

	require.NoError(t, a.Delete(ctx, "attempts"))
	_, err = a.Get(ctx, "attempts")
	assert.ErrorIs(t, err, providers.ErrCacheMiss)
}
