package exchange

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/raykavin/screener/pkg/core"
	"github.com/raykavin/screener/pkg/logger/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func minuteCandles(start time.Time, closes ...float64) []core.Candle {
	candles := make([]core.Candle, len(closes))
	for i, price := range closes {
		candles[i] = core.Candle{
			Time:   start.Add(time.Duration(i) * time.Minute),
			Open:   price - 1,
			High:   price + 1,
			Low:    price - 2,
			Close:  price,
			Volume: 10,
		}
	}
	return candles
}

func TestReadCandlesCSV(t *testing.T) {
	t.Run("with header", func(t *testing.T) {
		data := "time,open,close,low,high,volume\n120,2,3,1,4,50\n60,1,2,0.5,2.5,40\n"
		candles, err := ReadCandlesCSV(strings.NewReader(data))
		require.NoError(t, err)
		require.Len(t, candles, 2)

		// sorted oldest first
		require.Equal(t, time.Unix(60, 0).UTC(), candles[0].Time)
		require.Equal(t, 2.0, candles[0].Close)
		require.Equal(t, 4.0, candles[1].High)
	})

	t.Run("without header", func(t *testing.T) {
		candles, err := ReadCandlesCSV(strings.NewReader("60,1,2,0.5,2.5,40\n"))
		require.NoError(t, err)
		require.Equal(t, 0.5, candles[0].Low)
		require.Equal(t, 40.0, candles[0].Volume)
	})

	t.Run("invalid number", func(t *testing.T) {
		_, err := ReadCandlesCSV(strings.NewReader("60,1,x,0.5,2.5,40\n"))
		require.Error(t, err)
	})
}

func TestWriteCandlesCSV(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := minuteCandles(start, 10, 11)

	var buf bytes.Buffer
	require.NoError(t, WriteCandlesCSV(&buf, candles, 2))
	require.True(t, strings.HasPrefix(buf.String(), "time,open,close,low,high,volume\n"))

	parsed, err := ReadCandlesCSV(&buf)
	require.NoError(t, err)
	require.Equal(t, candles, parsed)
}

func TestResample(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 3, 0, 0, time.UTC)
	candles := minuteCandles(start, 10, 11, 12, 13, 14, 15, 16, 17)

	resampled, err := Resample(candles, "5m")
	require.NoError(t, err)
	require.Len(t, resampled, 3)

	// 00:00 bucket holds 00:03 and 00:04
	assert.Equal(t, start.Truncate(5*time.Minute), resampled[0].Time)
	assert.Equal(t, 9.0, resampled[0].Open)
	assert.Equal(t, 11.0, resampled[0].Close)
	assert.Equal(t, 12.0, resampled[0].High)
	assert.Equal(t, 20.0, resampled[0].Volume)

	// 00:05 bucket is complete
	assert.Equal(t, 11.0, resampled[1].Open)
	assert.Equal(t, 16.0, resampled[1].Close)
	assert.Equal(t, 17.0, resampled[1].High)
	assert.Equal(t, 10.0, resampled[1].Low)
	assert.Equal(t, 50.0, resampled[1].Volume)

	// 00:10 bucket is still forming
	assert.Equal(t, 17.0, resampled[2].Close)
	assert.Equal(t, 10.0, resampled[2].Volume)

	_, err = Resample(candles, "fortnight")
	require.Error(t, err)
}

func TestCSVFeed(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	write := func(symbol string, candles []core.Candle) {
		var buf bytes.Buffer
		require.NoError(t, WriteCandlesCSV(&buf, candles, 4))
		require.NoError(t, os.WriteFile(filepath.Join(dir, symbol+".csv"), buf.Bytes(), 0o600))
	}

	write("BTCUSDT", minuteCandles(start, 100, 101, 102, 103, 104, 105))
	write("DOGEUSDT", minuteCandles(start, 1, 1, 1))
	write("ETHBTC", minuteCandles(start, 5, 5))

	feed, err := NewCSVFeed(core.ExchangeBinance, dir)
	require.NoError(t, err)
	require.Equal(t, core.ExchangeBinance, feed.Name())

	ctx := context.Background()

	candles, err := feed.Candles(ctx, "BTCUSDT", "5m", 2)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	require.Equal(t, 104.0, candles[0].Close)
	require.Equal(t, 105.0, candles[1].Close)

	_, err = feed.Candles(ctx, "XRPUSDT", "1m", 2)
	require.ErrorIs(t, err, core.ErrDataUnavailable)

	top, err := feed.TopSymbols(ctx, "USDT", 10)
	require.NoError(t, err)
	require.Equal(t, []string{"BTCUSDT", "DOGEUSDT"}, top)

	_, err = NewCSVFeed(core.ExchangeBybit, t.TempDir())
	require.Error(t, err)
}

func TestRecord(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	feed := newFakeFeed(core.ExchangeBybit)
	feed.candles["BTCUSDT"] = minuteCandles(start, 100, 101, 102)

	dir := filepath.Join(t.TempDir(), "bybit")
	var progress bytes.Buffer

	recorded, err := Record(context.Background(), feed, dir, "1m", 3,
		[]string{"BTCUSDT", "MISSINGUSDT"}, &progress, zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, 1, recorded)
	require.NotEmpty(t, progress.String())

	replay, err := NewCSVFeed(core.ExchangeBybit, dir)
	require.NoError(t, err)

	candles, err := replay.Candles(context.Background(), "BTCUSDT", "1m", 3)
	require.NoError(t, err)
	require.Equal(t, feed.candles["BTCUSDT"], candles)
}
