package binance

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/raykavin/screener/pkg/core"
)

// Futures is the Binance USDⓈ-M futures market feed
type Futures struct {
	client  *futures.Client
	proxy   string
	timeout time.Duration
}

// FuturesOption is a function that configures a Futures client
type FuturesOption func(*Futures)

// WithProxy routes every request through the given proxy url
func WithProxy(proxyURL string) FuturesOption {
	return func(f *Futures) {
		f.proxy = proxyURL
	}
}

// WithBaseURL points the client to another API host, used by tests
func WithBaseURL(baseURL string) FuturesOption {
	return func(f *Futures) {
		f.client.BaseURL = baseURL
	}
}

// WithTimeout sets the HTTP client timeout
func WithTimeout(timeout time.Duration) FuturesOption {
	return func(f *Futures) {
		f.timeout = timeout
	}
}

// NewFutures creates a public data client, no credentials are needed
func NewFutures(options ...FuturesOption) (*Futures, error) {
	f := &Futures{
		client:  futures.NewClient("", ""),
		timeout: 10 * time.Second,
	}

	for _, option := range options {
		option(f)
	}

	httpClient, err := newHTTPClient(f.proxy, f.timeout)
	if err != nil {
		return nil, err
	}
	f.client.HTTPClient = httpClient

	return f, nil
}

// Name implements core.MarketFeed
func (f *Futures) Name() core.ExchangeName {
	return core.ExchangeBinance
}

// Candles implements core.MarketFeed, the last candle is still forming
func (f *Futures) Candles(ctx context.Context, symbol, timeframe string, limit int) ([]core.Candle, error) {
	var data []*futures.Kline

	err := retry(ctx, func() (err error) {
		data, err = f.client.NewKlinesService().
			Symbol(symbol).
			Interval(timeframe).
			Limit(limit).
			Do(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: binance klines %s: %v", core.ErrDataUnavailable, symbol, err)
	}

	candles := make([]core.Candle, 0, len(data))
	for _, d := range data {
		candle, err := convertFuturesKlineToCandle(*d)
		if err != nil {
			return nil, fmt.Errorf("%w: binance kline %s: %v", core.ErrDataUnavailable, symbol, err)
		}
		candles = append(candles, candle)
	}

	return candles, nil
}

// TopSymbols implements core.MarketFeed ranking perpetuals by 24h quote volume
func (f *Futures) TopSymbols(ctx context.Context, quote string, limit int) ([]string, error) {
	var stats []*futures.PriceChangeStats

	err := retry(ctx, func() (err error) {
		stats, err = f.client.NewListPriceChangeStatsService().Do(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: binance tickers: %v", core.ErrDataUnavailable, err)
	}

	type ranked struct {
		symbol string
		volume float64
	}

	candidates := make([]ranked, 0, len(stats))
	for _, stat := range stats {
		if !strings.HasSuffix(stat.Symbol, quote) {
			continue
		}

		volume, err := parseFloat(stat.QuoteVolume)
		if err != nil {
			continue
		}
		candidates = append(candidates, ranked{symbol: stat.Symbol, volume: volume})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].volume > candidates[j].volume
	})

	symbols := make([]string, 0, limit)
	for i := 0; i < len(candidates) && i < limit; i++ {
		symbols = append(symbols, candidates[i].symbol)
	}

	return symbols, nil
}

// FundingRate implements core.DerivativesFeed
func (f *Futures) FundingRate(ctx context.Context, symbol string) (float64, error) {
	var rates []*futures.FundingRate

	err := retry(ctx, func() (err error) {
		rates, err = f.client.NewFundingRateService().Symbol(symbol).Limit(1).Do(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("binance funding rate %s: %w", symbol, err)
	}
	if len(rates) == 0 {
		return 0, fmt.Errorf("%w: no funding rate for %s", core.ErrIndicatorUnavailable, symbol)
	}

	rate, err := parseFloat(rates[len(rates)-1].FundingRate)
	if err != nil {
		return 0, err
	}

	// the API reports a fraction, 0.0001 is 0.01%
	return rate * 100, nil
}

// LongShortRatio implements core.DerivativesFeed from the global account ratio
func (f *Futures) LongShortRatio(ctx context.Context, symbol, period string) (core.LongShort, error) {
	var ratios []*futures.LongShortRatio

	err := retry(ctx, func() (err error) {
		ratios, err = f.client.NewLongShortRatioService().
			Symbol(symbol).
			Period(period).
			Limit(1).
			Do(ctx)
		return err
	})
	if err != nil {
		return core.LongShort{}, fmt.Errorf("binance long/short %s: %w", symbol, err)
	}
	if len(ratios) == 0 {
		return core.LongShort{}, fmt.Errorf("%w: no long/short ratio for %s", core.ErrIndicatorUnavailable, symbol)
	}

	ratio, err := parseFloat(ratios[len(ratios)-1].LongShortRatio)
	if err != nil {
		return core.LongShort{}, err
	}

	return core.LongShortFromRatio(ratio), nil
}

// OpenInterest implements core.DerivativesFeed
func (f *Futures) OpenInterest(ctx context.Context, symbol string) (float64, error) {
	var interest *futures.OpenInterest

	err := retry(ctx, func() (err error) {
		interest, err = f.client.NewGetOpenInterestService().Symbol(symbol).Do(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("binance open interest %s: %w", symbol, err)
	}

	return parseFloat(interest.OpenInterest)
}

// OrderbookRatio implements core.DerivativesFeed
func (f *Futures) OrderbookRatio(ctx context.Context, symbol string, depth int) (float64, error) {
	var book *futures.DepthResponse

	err := retry(ctx, func() (err error) {
		book, err = f.client.NewDepthService().Symbol(symbol).Limit(depth).Do(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("binance depth %s: %w", symbol, err)
	}

	var bids, asks float64
	for _, bid := range book.Bids {
		quantity, err := parseFloat(bid.Quantity)
		if err != nil {
			return 0, err
		}
		bids += quantity
	}
	for _, ask := range book.Asks {
		quantity, err := parseFloat(ask.Quantity)
		if err != nil {
			return 0, err
		}
		asks += quantity
	}

	if asks == 0 {
		return 0, fmt.Errorf("%w: empty ask side for %s", core.ErrIndicatorUnavailable, symbol)
	}

	return bids / asks, nil
}

// convertFuturesKlineToCandle converts a Binance futures kline to a core.Candle
func convertFuturesKlineToCandle(k futures.Kline) (core.Candle, error) {
	candle := core.Candle{Time: time.UnixMilli(k.OpenTime)}

	fields := []struct {
		raw    string
		target *float64
	}{
		{k.Open, &candle.Open},
		{k.Close, &candle.Close},
		{k.High, &candle.High},
		{k.Low, &candle.Low},
		{k.Volume, &candle.Volume},
	}

	for _, field := range fields {
		value, err := parseFloat(field.raw)
		if err != nil {
			return core.Candle{}, err
		}
		*field.target = value
	}

	return candle, nil
}
