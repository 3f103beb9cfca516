package exchange

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/raykavin/screener/pkg/core"
	"github.com/raykavin/screener/pkg/logger/zerolog"
	"github.com/stretchr/testify/require"
)

func TestUniverseUpdater_MergesInOrder(t *testing.T) {
	binance := newFakeFeed(core.ExchangeBinance)
	binance.top = []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}
	bybit := newFakeFeed(core.ExchangeBybit)
	bybit.top = []string{"ETHUSDT", "XRPUSDT", "BTCPERP"}

	universe := NewUniverse()
	updater := NewUniverseUpdater(universe, zerolog.Nop(), []core.MarketFeed{binance, bybit})

	require.True(t, updater.MaybeUpdate(context.Background()))
	require.Equal(t, []string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "XRPUSDT"}, universe.Symbols())
}

func TestUniverseUpdater_Throttled(t *testing.T) {
	c := &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	feed := newFakeFeed(core.ExchangeBinance)
	feed.top = []string{"BTCUSDT"}

	universe := NewUniverse()
	updater := NewUniverseUpdater(universe, zerolog.Nop(), []core.MarketFeed{feed}, WithClock(c.Now))
	ctx := context.Background()

	require.True(t, updater.MaybeUpdate(ctx))

	feed.top = []string{"ETHUSDT"}
	c.Advance(30 * time.Minute)
	require.False(t, updater.MaybeUpdate(ctx))
	require.Equal(t, []string{"BTCUSDT"}, universe.Symbols())

	c.Advance(31 * time.Minute)
	require.True(t, updater.MaybeUpdate(ctx))
	require.Equal(t, []string{"ETHUSDT"}, universe.Symbols())
	require.Equal(t, c.Now(), updater.LastUpdated())
}

func TestUniverseUpdater_FailureKeepsPrevious(t *testing.T) {
	binance := newFakeFeed(core.ExchangeBinance)
	binance.top = []string{"DOGEUSDT"}
	bybit := newFakeFeed(core.ExchangeBybit)
	bybit.topErr = errors.New("503")

	universe := NewUniverse("BTCUSDT", "ETHUSDT", "BTCUSDT")
	require.Equal(t, 2, universe.Len())

	updater := NewUniverseUpdater(universe, zerolog.Nop(), []core.MarketFeed{binance, bybit})
	require.False(t, updater.MaybeUpdate(context.Background()))
	require.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, universe.Symbols())
	require.True(t, updater.LastUpdated().IsZero())
}

func TestUniverseUpdater_FailureBacksOff(t *testing.T) {
	c := &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	feed := newFakeFeed(core.ExchangeBybit)
	feed.topErr = errors.New("503")

	universe := NewUniverse("BTCUSDT")
	updater := NewUniverseUpdater(universe, zerolog.Nop(), []core.MarketFeed{feed}, WithClock(c.Now))
	ctx := context.Background()

	require.False(t, updater.MaybeUpdate(ctx))
	require.EqualValues(t, 1, feed.topCalls.Load())

	// ticks inside the retry delay do not reach the exchange
	c.Advance(4 * time.Minute)
	require.False(t, updater.MaybeUpdate(ctx))
	require.EqualValues(t, 1, feed.topCalls.Load())

	c.Advance(time.Minute)
	require.False(t, updater.MaybeUpdate(ctx))
	require.EqualValues(t, 2, feed.topCalls.Load())

	// the second failure doubles the delay
	c.Advance(5 * time.Minute)
	require.False(t, updater.MaybeUpdate(ctx))
	require.EqualValues(t, 2, feed.topCalls.Load())

	feed.topErr = nil
	feed.top = []string{"ETHUSDT"}
	c.Advance(5 * time.Minute)
	require.True(t, updater.MaybeUpdate(ctx))
	require.EqualValues(t, 3, feed.topCalls.Load())
	require.Equal(t, []string{"ETHUSDT"}, universe.Symbols())

	c.Advance(59 * time.Minute)
	require.False(t, updater.MaybeUpdate(ctx))
	require.EqualValues(t, 3, feed.topCalls.Load())
}

func TestBaseAsset(t *testing.T) {
	require.Equal(t, "BTC", BaseAsset("BTCUSDT", "USDT"))
	require.Equal(t, "USDT", BaseAsset("USDT", "USDT"))
	require.Equal(t, "ETHBTC", BaseAsset("ETHBTC", "USDT"))
}
