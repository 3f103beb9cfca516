package coinglass

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/raykavin/screener/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, routes map[string]string) *Client {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("coinglassSecret"))

		body, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	client, err := NewClient("secret", WithBaseURLs(server.URL+"/v4", server.URL+"/v2"))
	require.NoError(t, err)
	return client
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient("")
	require.ErrorIs(t, err, ErrMissingKey)
}

func TestClient_RSI(t *testing.T) {
	client := newTestClient(t, map[string]string{
		"/v4/futures/rsi/list": `{"code":"0","data":{"BTC":{"rsi_15m":71.25,"rsi_1h":null}}}`,
	})
	ctx := context.Background()

	rsi, err := client.RSI(ctx, "BTC", "15m")
	require.NoError(t, err)
	require.Equal(t, 71.25, rsi)

	_, err = client.RSI(ctx, "BTC", "1h")
	require.ErrorIs(t, err, core.ErrIndicatorUnavailable)

	_, err = client.RSI(ctx, "ETH", "15m")
	require.ErrorIs(t, err, core.ErrIndicatorUnavailable)
}

func TestClient_LongShortAndFunding(t *testing.T) {
	client := newTestClient(t, map[string]string{
		"/v2/long_short":        `{"success":true,"data":[{"longVolPct":"55.5","shortVolPct":44.5}]}`,
		"/v2/indicator/funding": `{"success":true,"data":[{"fundingRate":0.0123}]}`,
	})
	ctx := context.Background()

	ratio, err := client.LongShort(ctx, "BTC")
	require.NoError(t, err)
	require.Equal(t, core.LongShort{Long: 55.5, Short: 44.5}, ratio)

	rate, err := client.FundingRate(ctx, core.ExchangeBinance, "BTCUSDT", "15m")
	require.NoError(t, err)
	require.Equal(t, 0.0123, rate)
}

func TestClient_BreakerOpensOnOutage(t *testing.T) {
	client := newTestClient(t, nil)
	ctx := context.Background()

	for i := 0; i < tripAfter; i++ {
		_, err := client.RSI(ctx, "BTC", "15m")
		require.Error(t, err)
	}

	require.Equal(t, "open", client.State())
}
