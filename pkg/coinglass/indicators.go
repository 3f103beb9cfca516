package coinglass

import (
	"context"
	"fmt"
	"strconv"

	"github.com/raykavin/screener/pkg/core"
	"github.com/tidwall/gjson"
)

// rsiKeys maps a timeframe to its field in the rsi list
var rsiKeys = map[string]string{
	"1m":  "rsi_1m",
	"5m":  "rsi_5m",
	"15m": "rsi_15m",
	"30m": "rsi_30m",
	"1h":  "rsi_1h",
}

// fundingIntervals maps a timeframe to the funding indicator interval
var fundingIntervals = map[string]string{
	"1m":  "m1",
	"5m":  "m5",
	"15m": "m15",
	"30m": "m30",
	"1h":  "h1",
}

// number reads a present, non-null numeric value
func number(value gjson.Result, what string) (float64, error) {
	if !value.Exists() || value.Type == gjson.Null {
		return 0, fmt.Errorf("%w: %s missing", core.ErrIndicatorUnavailable, what)
	}

	if value.Type == gjson.String {
		parsed, err := strconv.ParseFloat(value.String(), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %v", core.ErrIndicatorUnavailable, what, err)
		}
		return parsed, nil
	}

	return value.Float(), nil
}

// RSI returns the RSI of symbol for timeframe
func (c *Client) RSI(ctx context.Context, symbol, timeframe string) (float64, error) {
	key, ok := rsiKeys[timeframe]
	if !ok {
		return 0, fmt.Errorf("%w: unsupported timeframe %s", core.ErrIndicatorUnavailable, timeframe)
	}

	body, err := c.fetch(ctx, c.v4URL+"/futures/rsi/list", map[string][]string{
		"symbol": {symbol},
	})
	if err != nil {
		return 0, fmt.Errorf("coinglass rsi %s: %w", symbol, err)
	}

	return number(body.Get("data."+symbol+"."+key), "rsi")
}

// LongShort returns the aggregated long/short volume share of symbol
func (c *Client) LongShort(ctx context.Context, symbol string) (core.LongShort, error) {
	body, err := c.fetch(ctx, c.v2URL+"/long_short", map[string][]string{
		"symbol":    {symbol},
		"time_type": {"h1"},
	})
	if err != nil {
		return core.LongShort{}, fmt.Errorf("coinglass long/short %s: %w", symbol, err)
	}

	entry := body.Get("data.0")
	long, err := number(entry.Get("longVolPct"), "longVolPct")
	if err != nil {
		return core.LongShort{}, err
	}
	short, err := number(entry.Get("shortVolPct"), "shortVolPct")
	if err != nil {
		return core.LongShort{}, err
	}

	return core.LongShort{Long: long, Short: short}, nil
}

// FundingRate returns the current funding rate of pair on exchange in percent
func (c *Client) FundingRate(ctx context.Context, exchange core.ExchangeName, pair, timeframe string) (float64, error) {
	interval, ok := fundingIntervals[timeframe]
	if !ok {
		interval = "h1"
	}

	body, err := c.fetch(ctx, c.v2URL+"/indicator/funding", map[string][]string{
		"ex":       {string(exchange)},
		"pair":     {pair},
		"interval": {interval},
		"limit":    {"1"},
	})
	if err != nil {
		return 0, fmt.Errorf("coinglass funding %s: %w", pair, err)
	}

	return number(body.Get("data.0.fundingRate"), "fundingRate")
}
