package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadAppConfig_Defaults(t *testing.T) {
	config, err := LoadAppConfig()
	require.NoError(t, err)

	require.Equal(t, DriverBunt, config.Storage.Driver)
	require.Equal(t, []string{"binance", "bybit"}, config.Exchanges.Enabled)
	require.Equal(t, 5*time.Minute, config.EvalInterval)
	require.Equal(t, time.Hour, config.Universe.Interval)
	require.Equal(t, 10*time.Second, config.Exchanges.RequestTimeout)
	require.Equal(t, 30, config.Universe.TopN)
	require.Equal(t, "USDT", config.Universe.QuoteAsset)
	require.Empty(t, config.Universe.Symbols)
}

func TestLoadAppConfig_Environment(t *testing.T) {
	t.Setenv("SCREENER_TELEGRAM_TOKEN", "123:abc")
	t.Setenv("SCREENER_STORAGE_DRIVER", "SQLite")
	t.Setenv("SCREENER_EXCHANGES", "Bybit")
	t.Setenv("SCREENER_UNIVERSE_SYMBOLS", "btcusdt, ethusdt,,")
	t.Setenv("SCREENER_UNIVERSE_INTERVAL", "1d")
	t.Setenv("SCREENER_MAX_CONCURRENCY", "3")

	config, err := LoadAppConfig()
	require.NoError(t, err)

	require.Equal(t, "123:abc", config.Telegram.Token)
	require.Equal(t, DriverSQLite, config.Storage.Driver)
	require.Equal(t, []string{"bybit"}, config.Exchanges.Enabled)
	require.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, config.Universe.Symbols)
	require.Equal(t, 24*time.Hour, config.Universe.Interval)
	require.Equal(t, 3, config.Exchanges.MaxConcurrency)
}

func TestLoadAppConfig_Invalid(t *testing.T) {
	t.Run("duration", func(t *testing.T) {
		t.Setenv("SCREENER_EVAL_INTERVAL", "often")
		_, err := LoadAppConfig()
		require.ErrorContains(t, err, "SCREENER_EVAL_INTERVAL")
	})

	t.Run("driver", func(t *testing.T) {
		t.Setenv("SCREENER_STORAGE_DRIVER", "redis")
		_, err := LoadAppConfig()
		require.Error(t, err)
	})

	t.Run("exchange", func(t *testing.T) {
		t.Setenv("SCREENER_EXCHANGES", "kraken")
		_, err := LoadAppConfig()
		require.Error(t, err)
	})
}
