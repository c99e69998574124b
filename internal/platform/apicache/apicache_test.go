package apicache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGetMissOnEmpty(t *testing.T) {
	c := New(10)
	_, ok := c.Get(context.Background(), "missing")
	require.False(t, ok)
}

func TestSetThenGet(t *testing.T) {
	c := New(10)
	c.Set(context.Background(), "k", "v", nil)
	v, ok := c.Get(context.Background(), "k")
	require.True(t, ok)
	require.Equal(t, "v", v)
}

func TestTTLExpiry(t *testing.T) {
	c := New(10)
	fake := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fake }

	ttl := 60
	c.Set(context.Background(), "k", "v", &ttl)

	fake = fake.Add(59 * time.Second)
	v, ok := c.Get(context.Background(), "k")
	require.True(t, ok)
	require.Equal(t, "v", v)

	fake = fake.Add(2 * time.Second)
	_, ok = c.Get(context.Background(), "k")
	require.False(t, ok, "entry should have expired")
}

func TestNilTTLNeverExpires(t *testing.T) {
	c := New(10)
	fake := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fake }

	c.Set(context.Background(), "k", "v", nil)
	fake = fake.Add(365 * 24 * time.Hour)
	v, ok := c.Get(context.Background(), "k")
	require.True(t, ok)
	require.Equal(t, "v", v)
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := New(2)
	ctx := context.Background()
	c.Set(ctx, "a", 1, nil)
	c.Set(ctx, "b", 2, nil)

	// Touch "a" so "b" becomes the least-recently-used entry.
	_, ok := c.Get(ctx, "a")
	require.True(t, ok)

	c.Set(ctx, "c", 3, nil)

	_, ok = c.Get(ctx, "b")
	require.False(t, ok, "b should have been evicted")

	va, ok := c.Get(ctx, "a")
	require.True(t, ok)
	require.Equal(t, 1, va)

	vc, ok := c.Get(ctx, "c")
	require.True(t, ok)
	require.Equal(t, 3, vc)
}

func TestSetOverwritesAndRefreshesRecency(t *testing.T) {
	c := New(2)
	ctx := context.Background()
	c.Set(ctx, "a", 1, nil)
	c.Set(ctx, "b", 2, nil)
	c.Set(ctx, "a", 10, nil) // overwrite + move to front

	c.Set(ctx, "c", 3, nil) // should evict "b", not "a"

	_, ok := c.Get(ctx, "b")
	require.False(t, ok)

	va, ok := c.Get(ctx, "a")
	require.True(t, ok)
	require.Equal(t, 10, va)
}

func TestCloseIsNoop(t *testing.T) {
	c := New(10)
	require.NoError(t, c.Close(context.Background()))
}
