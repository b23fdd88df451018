package cache_test

import (
	"testing"
	"time"

	"github.com/farmdash/farmdash-backend/internal/inventory/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSet(t *testing.T) {
	c := cache.New(time.Minute)

	_, ok := c.Get("stock_levels")
	assert.False(t, ok)

	c.Set("stock_levels", []string{"a", "b"})

	v, ok := c.Get("stock_levels")
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, v)
}

func TestTTLExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	c := cache.NewWithClock(5*time.Minute, clock)

	c.Set("dashboard", 42)

	now = now.Add(4 * time.Minute)
	_, ok := c.Get("dashboard")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("dashboard")
	assert.False(t, ok)

	// expired entries are evicted lazily
	assert.Equal(t, 0, c.Len())
}

func TestClear(t *testing.T) {
	c := cache.New(time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	require.Equal(t, 2, c.Len())

	c.Clear()

	assert.Equal(t, 0, c.Len())
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestInvalidateSingleKey(t *testing.T) {
	c := cache.New(time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)

	c.Invalidate("a")

	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.True(t, ok)
}
