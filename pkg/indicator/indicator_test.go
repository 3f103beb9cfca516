package indicator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/raykavin/screener/pkg/core"
	"github.com/raykavin/screener/pkg/exchange"
	"github.com/raykavin/screener/pkg/logger/zerolog"
	"github.com/stretchr/testify/require"
)

func TestRSI(t *testing.T) {
	_, err := RSI([]float64{1, 2, 3}, RSIPeriod)
	require.ErrorIs(t, err, core.ErrIndicatorUnavailable)

	rising := make([]float64, RSICandles)
	for i := range rising {
		rising[i] = float64(100 + i)
	}
	value, err := RSI(rising, RSIPeriod)
	require.NoError(t, err)
	require.InDelta(t, 100.0, value, 1e-9)

	falling := make([]float64, RSICandles)
	for i := range falling {
		falling[i] = float64(100 - i)
	}
	value, err = RSI(falling, RSIPeriod)
	require.NoError(t, err)
	require.InDelta(t, 0.0, value, 1e-9)

	alternating := make([]float64, RSIPeriod+1)
	for i := range alternating {
		alternating[i] = 100 + float64(i%2)
	}
	value, err = RSI(alternating, RSIPeriod)
	require.NoError(t, err)
	require.InDelta(t, 50.0, value, 1e-9)

	flat := make([]float64, RSICandles)
	for i := range flat {
		flat[i] = 100
	}
	value, err = RSI(flat, RSIPeriod)
	require.NoError(t, err)
	require.Zero(t, value)
}

func TestFirstSuccess(t *testing.T) {
	var tried []string
	provider := func(source string, value float64, err error) Provider[float64] {
		return Provider[float64]{
			Source: source,
			Fetch: func(context.Context) (float64, error) {
				tried = append(tried, source)
				return value, err
			},
		}
	}

	result := FirstSuccess(context.Background(), time.Second,
		provider(SourceCoinGlass, 0, errors.New("402 payment required")),
		provider(SourceExchange, 42, nil),
	)
	require.True(t, result.Available())
	require.Equal(t, 42.0, result.Value)
	require.Equal(t, SourceExchange, result.Source)
	require.Equal(t, []string{SourceCoinGlass, SourceExchange}, tried)

	tried = nil
	result = FirstSuccess(context.Background(), time.Second,
		provider(SourceCoinGlass, 7, nil),
		provider(SourceExchange, 42, nil),
	)
	require.Equal(t, 7.0, result.Value)
	require.Equal(t, []string{SourceCoinGlass}, tried)

	result = FirstSuccess(context.Background(), time.Second,
		provider(SourceCoinGlass, 0, errors.New("down")),
		provider(SourceExchange, 0, errors.New("down too")),
	)
	require.False(t, result.Available())
	require.Nil(t, result.Ptr())
	require.ErrorIs(t, result.Err, core.ErrIndicatorUnavailable)

	require.False(t, FirstSuccess[float64](context.Background(), time.Second).Available())
}

func TestFirstSuccess_TimeoutMovesOn(t *testing.T) {
	slow := Provider[float64]{
		Source: SourceCoinGlass,
		Fetch: func(ctx context.Context) (float64, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		},
	}
	fast := Provider[float64]{
		Source: SourceExchange,
		Fetch:  func(context.Context) (float64, error) { return 1, nil },
	}

	result := FirstSuccess(context.Background(), 10*time.Millisecond, slow, fast)
	require.Equal(t, SourceExchange, result.Source)
}

func TestStatsPeriod(t *testing.T) {
	require.Equal(t, "5m", StatsPeriod("1m"))
	require.Equal(t, "15m", StatsPeriod("15m"))
	require.Equal(t, "1h", StatsPeriod("1h"))
	require.Equal(t, "5m", StatsPeriod("4h"))
}

type fakeDerivatives struct {
	candles []core.Candle
	err     error
}

func (f *fakeDerivatives) Name() core.ExchangeName { return core.ExchangeBinance }

func (f *fakeDerivatives) Candles(context.Context, string, string, int) ([]core.Candle, error) {
	return f.candles, f.err
}

func (f *fakeDerivatives) TopSymbols(context.Context, string, int) ([]string, error) {
	return nil, nil
}

func (f *fakeDerivatives) FundingRate(context.Context, string) (float64, error) {
	return 0.01, f.err
}

func (f *fakeDerivatives) LongShortRatio(context.Context, string, string) (core.LongShort, error) {
	return core.LongShortFromRatio(1.5), f.err
}

func (f *fakeDerivatives) OpenInterest(context.Context, string) (float64, error) {
	return 1000, f.err
}

func (f *fakeDerivatives) OrderbookRatio(context.Context, string, int) (float64, error) {
	return 0, errors.New("empty book")
}

type fakeMetered struct {
	rsiErr error
}

func (f *fakeMetered) RSI(context.Context, string, string) (float64, error) {
	return 65, f.rsiErr
}

func (f *fakeMetered) LongShort(context.Context, string) (core.LongShort, error) {
	return core.LongShort{}, errors.New("plan limit")
}

func (f *fakeMetered) FundingRate(context.Context, core.ExchangeName, string, string) (float64, error) {
	return 0.05, nil
}

func TestResolver_Enrich(t *testing.T) {
	candles := make([]core.Candle, RSICandles)
	for i := range candles {
		candles[i] = core.Candle{Open: 1, Close: float64(10 + i), Volume: 1}
	}

	gateway := exchange.NewGateway(&fakeDerivatives{candles: candles}, zerolog.Nop())
	resolver := NewResolver(zerolog.Nop(), []*exchange.Gateway{gateway},
		WithMetered(&fakeMetered{rsiErr: errors.New("timeout")}))

	enrichment := resolver.Enrich(context.Background(), core.ExchangeBinance, "BTCUSDT", "15m")

	// metered rsi failed, local computation answered
	require.NotNil(t, enrichment.RSI)
	require.InDelta(t, 100.0, *enrichment.RSI, 1e-9)

	require.NotNil(t, enrichment.FundingRate)
	require.Equal(t, 0.05, *enrichment.FundingRate)

	require.NotNil(t, enrichment.LongShort)
	require.InDelta(t, 60.0, enrichment.LongShort.Long, 1e-9)

	require.NotNil(t, enrichment.OpenInterest)
	require.Nil(t, enrichment.OrderbookRatio)
}

func TestResolver_EnrichWithoutProviders(t *testing.T) {
	resolver := NewResolver(zerolog.Nop(), nil)
	enrichment := resolver.Enrich(context.Background(), core.ExchangeBybit, "BTCUSDT", "5m")
	require.Equal(t, core.Enrichment{}, enrichment)
}
