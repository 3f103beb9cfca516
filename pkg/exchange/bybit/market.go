package bybit

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/raykavin/screener/pkg/core"
	"github.com/tidwall/gjson"
)

// Name implements core.MarketFeed
func (c *Client) Name() core.ExchangeName {
	return core.ExchangeBybit
}

// Candles implements core.MarketFeed. Bybit answers newest first, the
// result is reversed to oldest first.
func (c *Client) Candles(ctx context.Context, symbol, timeframe string, limit int) ([]core.Candle, error) {
	interval, ok := intervals[timeframe]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported timeframe %s", core.ErrDataUnavailable, timeframe)
	}

	result, err := c.get(ctx, "/v5/market/kline", map[string][]string{
		"category": {category},
		"symbol":   {symbol},
		"interval": {interval},
		"limit":    {strconv.Itoa(limit)},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: bybit kline %s: %v", core.ErrDataUnavailable, symbol, err)
	}

	rows := result.Get("list").Array()
	candles := make([]core.Candle, 0, len(rows))
	for _, row := range rows {
		candle, err := parseKline(row)
		if err != nil {
			return nil, fmt.Errorf("%w: bybit kline %s: %v", core.ErrDataUnavailable, symbol, err)
		}
		candles = append(candles, candle)
	}

	slices.Reverse(candles)
	return candles, nil
}

// parseKline reads [startTime, open, high, low, close, volume, turnover]
func parseKline(row gjson.Result) (core.Candle, error) {
	fields := row.Array()
	if len(fields) < 6 {
		return core.Candle{}, fmt.Errorf("short kline row %s", row.Raw)
	}

	values := make([]float64, 5)
	for i := range values {
		value, err := strconv.ParseFloat(fields[i+1].String(), 64)
		if err != nil {
			return core.Candle{}, fmt.Errorf("parse kline field %d: %w", i+1, err)
		}
		values[i] = value
	}

	return core.Candle{
		Time:   time.UnixMilli(fields[0].Int()),
		Open:   values[0],
		High:   values[1],
		Low:    values[2],
		Close:  values[3],
		Volume: values[4],
	}, nil
}

// TopSymbols implements core.MarketFeed ranking by 24h turnover
func (c *Client) TopSymbols(ctx context.Context, quote string, limit int) ([]string, error) {
	result, err := c.get(ctx, "/v5/market/tickers", map[string][]string{
		"category": {category},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: bybit tickers: %v", core.ErrDataUnavailable, err)
	}

	type ranked struct {
		symbol   string
		turnover float64
	}

	var candidates []ranked
	result.Get("list").ForEach(func(_, ticker gjson.Result) bool {
		symbol := ticker.Get("symbol").String()
		if strings.HasSuffix(symbol, quote) {
			candidates = append(candidates, ranked{symbol: symbol, turnover: ticker.Get("turnover24h").Float()})
		}
		return true
	})

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].turnover > candidates[j].turnover
	})

	symbols := make([]string, 0, limit)
	for i := 0; i < len(candidates) && i < limit; i++ {
		symbols = append(symbols, candidates[i].symbol)
	}

	return symbols, nil
}

// FundingRate implements core.DerivativesFeed
func (c *Client) FundingRate(ctx context.Context, symbol string) (float64, error) {
	result, err := c.get(ctx, "/v5/market/funding/history", map[string][]string{
		"category": {category},
		"symbol":   {symbol},
		"limit":    {"1"},
	})
	if err != nil {
		return 0, fmt.Errorf("bybit funding %s: %w", symbol, err)
	}

	rate := result.Get("list.0.fundingRate")
	if !rate.Exists() {
		return 0, fmt.Errorf("%w: no funding rate for %s", core.ErrIndicatorUnavailable, symbol)
	}

	return rate.Float() * 100, nil
}

// LongShortRatio implements core.DerivativesFeed from the buy/sell account ratio
func (c *Client) LongShortRatio(ctx context.Context, symbol, period string) (core.LongShort, error) {
	bybitPeriod, ok := periods[period]
	if !ok {
		bybitPeriod = periods["5m"]
	}

	result, err := c.get(ctx, "/v5/market/account-ratio", map[string][]string{
		"category": {category},
		"symbol":   {symbol},
		"period":   {bybitPeriod},
		"limit":    {"1"},
	})
	if err != nil {
		return core.LongShort{}, fmt.Errorf("bybit account ratio %s: %w", symbol, err)
	}

	entry := result.Get("list.0")
	if !entry.Exists() {
		return core.LongShort{}, fmt.Errorf("%w: no account ratio for %s", core.ErrIndicatorUnavailable, symbol)
	}

	return core.LongShort{
		Long:  entry.Get("buyRatio").Float() * 100,
		Short: entry.Get("sellRatio").Float() * 100,
	}, nil
}

// OpenInterest implements core.DerivativesFeed
func (c *Client) OpenInterest(ctx context.Context, symbol string) (float64, error) {
	result, err := c.get(ctx, "/v5/market/open-interest", map[string][]string{
		"category":     {category},
		"symbol":       {symbol},
		"intervalTime": {"5min"},
		"limit":        {"1"},
	})
	if err != nil {
		return 0, fmt.Errorf("bybit open interest %s: %w", symbol, err)
	}

	interest := result.Get("list.0.openInterest")
	if !interest.Exists() {
		return 0, fmt.Errorf("%w: no open interest for %s", core.ErrIndicatorUnavailable, symbol)
	}

	return interest.Float(), nil
}

// OrderbookRatio implements core.DerivativesFeed
func (c *Client) OrderbookRatio(ctx context.Context, symbol string, depth int) (float64, error) {
	result, err := c.get(ctx, "/v5/market/orderbook", map[string][]string{
		"category": {category},
		"symbol":   {symbol},
		"limit":    {strconv.Itoa(depth)},
	})
	if err != nil {
		return 0, fmt.Errorf("bybit orderbook %s: %w", symbol, err)
	}

	bids := sumSizes(result.Get("b"))
	asks := sumSizes(result.Get("a"))
	if asks == 0 {
		return 0, fmt.Errorf("%w: empty ask side for %s", core.ErrIndicatorUnavailable, symbol)
	}

	return bids / asks, nil
}

// sumSizes adds the size of every [price, size] level
func sumSizes(levels gjson.Result) float64 {
	var total float64
	levels.ForEach(func(_, level gjson.Result) bool {
		total += level.Get("1").Float()
		return true
	})
	return total
}
