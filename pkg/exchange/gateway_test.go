package exchange

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/raykavin/screener/pkg/core"
	"github.com/raykavin/screener/pkg/logger/zerolog"
	"github.com/stretchr/testify/require"
)

func pumpCandles() []core.Candle {
	return []core.Candle{
		{Open: 100, Close: 100, Volume: 100},
		{Open: 100, Close: 103, Volume: 150},
	}
}

func TestGateway_FetchChangeUsesCache(t *testing.T) {
	c := &clock{now: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)}
	feed := newFakeFeed(core.ExchangeBinance)
	feed.candles["BTCUSDT"] = pumpCandles()

	gateway := NewGateway(feed, zerolog.Nop(), WithCache(NewCache(DefaultCacheTTL, c.Now)))
	ctx := context.Background()

	change, err := gateway.FetchChange(ctx, "BTCUSDT", "15m")
	require.NoError(t, err)
	require.InDelta(t, 3.0, change.PriceChangePct, 1e-9)
	require.InDelta(t, 50.0, change.VolumeChangePct, 1e-9)

	c.Advance(2 * time.Minute)
	_, err = gateway.FetchChange(ctx, "BTCUSDT", "15m")
	require.NoError(t, err)
	require.EqualValues(t, 1, feed.calls.Load())

	c.Advance(3 * time.Minute)
	_, err = gateway.FetchChange(ctx, "BTCUSDT", "15m")
	require.NoError(t, err)
	require.EqualValues(t, 2, feed.calls.Load())
}

func TestGateway_FetchChangeUnavailable(t *testing.T) {
	feed := newFakeFeed(core.ExchangeBybit)
	feed.err = errors.New("connection reset")

	gateway := NewGateway(feed, zerolog.Nop())
	_, err := gateway.FetchChange(context.Background(), "BTCUSDT", "15m")
	require.ErrorIs(t, err, core.ErrDataUnavailable)

	// failures are not cached
	_, err = gateway.FetchChange(context.Background(), "BTCUSDT", "15m")
	require.Error(t, err)
	require.EqualValues(t, 2, feed.calls.Load())
}

func TestGateway_FetchChangeInvalidCandle(t *testing.T) {
	feed := newFakeFeed(core.ExchangeBinance)
	feed.candles["BADUSDT"] = []core.Candle{{Volume: 1}, {Close: 1, Volume: 1}}

	gateway := NewGateway(feed, zerolog.Nop())
	_, err := gateway.FetchChange(context.Background(), "BADUSDT", "1m")
	require.ErrorIs(t, err, core.ErrInvalidCandle)
}

func TestGateway_ConcurrencyBound(t *testing.T) {
	feed := newFakeFeed(core.ExchangeBinance)
	feed.delay = 20 * time.Millisecond

	symbols := []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J", "K", "L"}
	for _, symbol := range symbols {
		feed.candles[symbol] = pumpCandles()
	}

	gateway := NewGateway(feed, zerolog.Nop(),
		WithConcurrency(3),
		WithRateLimit(1000, 100),
	)

	var wg sync.WaitGroup
	for _, symbol := range symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			_, err := gateway.FetchChange(context.Background(), symbol, "5m")
			require.NoError(t, err)
		}(symbol)
	}
	wg.Wait()

	require.LessOrEqual(t, feed.peak.Load(), int32(3))
	require.EqualValues(t, len(symbols), feed.calls.Load())
}

func TestGateway_Timeout(t *testing.T) {
	feed := newFakeFeed(core.ExchangeBinance)
	feed.delay = time.Second
	feed.candles["BTCUSDT"] = pumpCandles()

	gateway := NewGateway(feed, zerolog.Nop(), WithRequestTimeout(10*time.Millisecond))
	_, err := gateway.FetchChange(context.Background(), "BTCUSDT", "15m")
	require.ErrorIs(t, err, core.ErrDataUnavailable)
}
