package exchange

import (
	"testing"
	"time"

	"github.com/raykavin/screener/pkg/core"
	"github.com/stretchr/testify/require"
)

func TestCache_TTL(t *testing.T) {
	c := &clock{now: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)}
	cache := NewCache(5*time.Minute, c.Now)

	cache.Set("BTCUSDT", "15m", core.Change{PriceChangePct: 1.5})

	change, ok := cache.Get("BTCUSDT", "15m")
	require.True(t, ok)
	require.Equal(t, 1.5, change.PriceChangePct)

	_, ok = cache.Get("BTCUSDT", "5m")
	require.False(t, ok)

	c.Advance(4*time.Minute + 59*time.Second)
	_, ok = cache.Get("BTCUSDT", "15m")
	require.True(t, ok)

	c.Advance(time.Second)
	_, ok = cache.Get("BTCUSDT", "15m")
	require.False(t, ok)

	require.Equal(t, 1, cache.Purge())
	require.Zero(t, cache.Len())
}

func TestCache_LastWriteWins(t *testing.T) {
	cache := NewCache(time.Minute, nil)
	cache.Set("ETHUSDT", "1h", core.Change{PriceNow: 1})
	cache.Set("ETHUSDT", "1h", core.Change{PriceNow: 2})

	change, ok := cache.Get("ETHUSDT", "1h")
	require.True(t, ok)
	require.Equal(t, 2.0, change.PriceNow)
	require.Equal(t, 1, cache.Len())
}
