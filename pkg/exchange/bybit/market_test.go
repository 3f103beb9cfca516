package bybit

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
		body, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		assert.Equal(t, "linear", r.URL.Query().Get("category"))
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(WithBaseURL(server.URL))
	require.NoError(t, err)
	return client
}

func TestClient_CandlesOldestFirst(t *testing.T) {
	client := newTestClient(t, map[string]string{
		"/v5/market/kline": `{"retCode":0,"retMsg":"OK","result":{"list":[
			["1700000900000","100","104","99","103","150","0"],
			["1700000000000","100","101","99","100","100","0"]
		]}}`,
	})

	candles, err := client.Candles(context.Background(), "BTCUSDT", "15m", 2)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	require.Equal(t, 100.0, candles[0].Volume)
	require.Equal(t, 103.0, candles[1].Close)
	require.True(t, candles[0].Time.Before(candles[1].Time))
}

func TestClient_CandlesUnsupportedTimeframe(t *testing.T) {
	client := newTestClient(t, nil)
	_, err := client.Candles(context.Background(), "BTCUSDT", "4h", 2)
	require.ErrorIs(t, err, core.ErrDataUnavailable)
}

func TestClient_APIError(t *testing.T) {
	client := newTestClient(t, map[string]string{
		"/v5/market/kline": `{"retCode":10001,"retMsg":"params error","result":{}}`,
	})

	_, err := client.Candles(context.Background(), "NOPE", "1m", 2)
	require.ErrorIs(t, err, core.ErrDataUnavailable)
	require.Contains(t, err.Error(), "params error")
}

func TestClient_TopSymbols(t *testing.T) {
	client := newTestClient(t, map[string]string{
		"/v5/market/tickers": `{"retCode":0,"result":{"list":[
			{"symbol":"ETHUSDT","turnover24h":"500"},
			{"symbol":"BTCUSDT","turnover24h":"900"},
			{"symbol":"BTCPERP","turnover24h":"9000"},
			{"symbol":"XRPUSDT","turnover24h":"10"}
		]}}`,
	})

	symbols, err := client.TopSymbols(context.Background(), "USDT", 2)
	require.NoError(t, err)
	require.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, symbols)
}

func TestClient_Derivatives(t *testing.T) {
	client := newTestClient(t, map[string]string{
		"/v5/market/funding/history": `{"retCode":0,"result":{"list":[{"symbol":"BTCUSDT","fundingRate":"0.0002"}]}}`,
		"/v5/market/account-ratio":   `{"retCode":0,"result":{"list":[{"symbol":"BTCUSDT","buyRatio":"0.6","sellRatio":"0.4"}]}}`,
		"/v5/market/open-interest":   `{"retCode":0,"result":{"list":[{"openInterest":"1234.5"}]}}`,
		"/v5/market/orderbook":       `{"retCode":0,"result":{"s":"BTCUSDT","b":[["10","3"],["9","3"]],"a":[["11","4"]]}}`,
	})
	ctx := context.Background()

	rate, err := client.FundingRate(ctx, "BTCUSDT")
	require.NoError(t, err)
	require.InDelta(t, 0.02, rate, 1e-9)

	ratio, err := client.LongShortRatio(ctx, "BTCUSDT", "15m")
	require.NoError(t, err)
	require.InDelta(t, 60.0, ratio.Long, 1e-9)
	require.InDelta(t, 40.0, ratio.Short, 1e-9)

	interest, err := client.OpenInterest(ctx, "BTCUSDT")
	require.NoError(t, err)
	require.Equal(t, 1234.5, interest)

	book, err := client.OrderbookRatio(ctx, "BTCUSDT", 50)
	require.NoError(t, err)
	require.InDelta(t, 1.5, book, 1e-9)
}

func TestClient_EmptyFunding(t *testing.T) {
	client := newTestClient(t, map[string]string{
		"/v5/market/funding/history": `{"retCode":0,"result":{"list":[]}}`,
	})

	_, err := client.FundingRate(context.Background(), "BTCUSDT")
	require.ErrorIs(t, err, core.ErrIndicatorUnavailable)
}
