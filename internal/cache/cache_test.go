package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryExpires(t *testing.T) {
	now := time.Date(2025, 3, 18, 9, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Minute))
	got, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	now = now.Add(time.Minute)
	_, ok, err = m.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCopiesValues(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	v := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", v, 0))
	v[0] = 'z'
	got, ok, _ := m.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "abc", string(got))

	require.NoError(t, m.Delete(ctx, "k"))
	_, ok, _ = m.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemorySweepsExpiredWhenFull(t *testing.T) {
	now := time.Date(2025, 3, 18, 9, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }
	m.maxEntries = 2
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "a", []byte("1"), time.Second))
	require.NoError(t, m.Set(ctx, "b", []byte("2"), 0))
	now = now.Add(2 * time.Second)
	require.NoError(t, m.Set(ctx, "c", []byte("3"), 0))
	assert.Len(t, m.items, 2)
}

func TestNewRedisRequiresAddress(t *testing.T) {
	_, err := NewRedis(context.Background(), " ", "")
	assert.Error(t, err)
}
