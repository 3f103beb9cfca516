package indicator

import (
	"context"
	"time"

	"github.com/raykavin/screener/pkg/core"
	"github.com/raykavin/screener/pkg/exchange"
	"github.com/raykavin/screener/pkg/logger"
	"github.com/raykavin/screener/pkg/metrics"

	"golang.org/x/sync/errgroup"
)

// Resolver defaults
const (
	DefaultProviderTimeout = 5 * time.Second
	OrderbookDepth         = 50
)

// Metered is the paid aggregator consulted before the exchanges
type Metered interface {
	RSI(ctx context.Context, symbol, timeframe string) (float64, error)
	LongShort(ctx context.Context, symbol string) (core.LongShort, error)
	FundingRate(ctx context.Context, exchange core.ExchangeName, pair, timeframe string) (float64, error)
}

// Resolver attaches optional indicators to signals. Every indicator is
// resolved independently; a missing one never prevents the signal.
type Resolver struct {
	metered  Metered
	gateways map[core.ExchangeName]*exchange.Gateway
	quote    string
	timeout  time.Duration
	log      logger.Logger
	metrics  *metrics.Recorder
}

// ResolverOption is a function that configures a Resolver
type ResolverOption func(*Resolver)

// WithMetered enables the aggregator as primary provider
func WithMetered(metered Metered) ResolverOption {
	return func(r *Resolver) {
		r.metered = metered
	}
}

// WithProviderTimeout bounds every provider attempt
func WithProviderTimeout(timeout time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.timeout = timeout
	}
}

// WithQuote sets the quote asset stripped for aggregator symbols
func WithQuote(quote string) ResolverOption {
	return func(r *Resolver) {
		r.quote = quote
	}
}

// WithResolverMetrics records which provider answered
func WithResolverMetrics(recorder *metrics.Recorder) ResolverOption {
	return func(r *Resolver) {
		r.metrics = recorder
	}
}

// NewResolver creates a resolver using gateways as exchange fallbacks
func NewResolver(log logger.Logger, gateways []*exchange.Gateway, options ...ResolverOption) *Resolver {
	r := &Resolver{
		gateways: make(map[core.ExchangeName]*exchange.Gateway, len(gateways)),
		quote:    exchange.DefaultQuoteAsset,
		timeout:  DefaultProviderTimeout,
		log:      log,
		metrics:  metrics.New(),
	}

	for _, gateway := range gateways {
		r.gateways[gateway.Exchange()] = gateway
	}

	for _, option := range options {
		option(r)
	}

	return r
}

// Enrich resolves the five indicators of a symbol concurrently
func (r *Resolver) Enrich(ctx context.Context, name core.ExchangeName, symbol, timeframe string) core.Enrichment {
	var (
		enrichment core.Enrichment
		rsi        Result[float64]
		funding    Result[float64]
		longShort  Result[core.LongShort]
		interest   Result[float64]
		orderbook  Result[float64]
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rsi = FirstSuccess(ctx, r.timeout, r.rsiProviders(name, symbol, timeframe)...)
		return nil
	})
	g.Go(func() error {
		funding = FirstSuccess(ctx, r.timeout, r.fundingProviders(name, symbol, timeframe)...)
		return nil
	})
	g.Go(func() error {
		longShort = FirstSuccess(ctx, r.timeout, r.longShortProviders(name, symbol, timeframe)...)
		return nil
	})
	g.Go(func() error {
		interest = FirstSuccess(ctx, r.timeout, r.openInterestProviders(name, symbol)...)
		return nil
	})
	g.Go(func() error {
		orderbook = FirstSuccess(ctx, r.timeout, r.orderbookProviders(name, symbol)...)
		return nil
	})
	_ = g.Wait()

	enrichment.RSI = r.track("rsi", symbol, rsi)
	enrichment.FundingRate = r.track("funding", symbol, funding)
	enrichment.OpenInterest = r.track("open_interest", symbol, interest)
	enrichment.OrderbookRatio = r.track("orderbook_ratio", symbol, orderbook)

	r.metrics.IndicatorResolved("long_short", longShort.Source)
	if !longShort.Available() {
		r.log.WithField("symbol", symbol).WithError(longShort.Err).Debug("long/short ratio unavailable")
	}
	enrichment.LongShort = longShort.Ptr()

	return enrichment
}

func (r *Resolver) track(indicator, symbol string, result Result[float64]) *float64 {
	r.metrics.IndicatorResolved(indicator, result.Source)
	if !result.Available() {
		r.log.WithField("symbol", symbol).WithError(result.Err).Debugf("%s unavailable", indicator)
	}
	return result.Ptr()
}

// derivatives returns the futures surface behind the gateway of name
func (r *Resolver) derivatives(name core.ExchangeName) (*exchange.Gateway, core.DerivativesFeed, bool) {
	gateway, ok := r.gateways[name]
	if !ok {
		return nil, nil, false
	}

	feed, ok := gateway.Feed().(core.DerivativesFeed)
	return gateway, feed, ok
}

// exchangeProvider runs fetch inside the gateway concurrency bounds
func exchangeProvider[T any](gateway *exchange.Gateway, fetch func(ctx context.Context) (T, error)) Provider[T] {
	return Provider[T]{
		Source: SourceExchange,
		Fetch: func(ctx context.Context) (T, error) {
			var value T
			err := gateway.Do(ctx, func(ctx context.Context) error {
				var err error
				value, err = fetch(ctx)
				return err
			})
			return value, err
		},
	}
}

func (r *Resolver) rsiProviders(name core.ExchangeName, symbol, timeframe string) []Provider[float64] {
	var providers []Provider[float64]

	if r.metered != nil {
		base := exchange.BaseAsset(symbol, r.quote)
		providers = append(providers, Provider[float64]{
			Source: SourceCoinGlass,
			Fetch: func(ctx context.Context) (float64, error) {
				return r.metered.RSI(ctx, base, timeframe)
			},
		})
	}

	if gateway, ok := r.gateways[name]; ok {
		providers = append(providers, Provider[float64]{
			Source: SourceExchange,
			Fetch: func(ctx context.Context) (float64, error) {
				candles, err := gateway.Candles(ctx, symbol, timeframe, RSICandles)
				if err != nil {
					return 0, err
				}
				return RSI(core.Closes(candles), RSIPeriod)
			},
		})
	}

	return providers
}

func (r *Resolver) fundingProviders(name core.ExchangeName, symbol, timeframe string) []Provider[float64] {
	var providers []Provider[float64]

	if r.metered != nil {
		providers = append(providers, Provider[float64]{
			Source: SourceCoinGlass,
			Fetch: func(ctx context.Context) (float64, error) {
				return r.metered.FundingRate(ctx, name, symbol, timeframe)
			},
		})
	}

	if gateway, feed, ok := r.derivatives(name); ok {
		providers = append(providers, exchangeProvider(gateway, func(ctx context.Context) (float64, error) {
			return feed.FundingRate(ctx, symbol)
		}))
	}

	return providers
}

func (r *Resolver) longShortProviders(name core.ExchangeName, symbol, timeframe string) []Provider[core.LongShort] {
	var providers []Provider[core.LongShort]

	if r.metered != nil {
		base := exchange.BaseAsset(symbol, r.quote)
		providers = append(providers, Provider[core.LongShort]{
			Source: SourceCoinGlass,
			Fetch: func(ctx context.Context) (core.LongShort, error) {
				return r.metered.LongShort(ctx, base)
			},
		})
	}

	if gateway, feed, ok := r.derivatives(name); ok {
		providers = append(providers, exchangeProvider(gateway, func(ctx context.Context) (core.LongShort, error) {
			return feed.LongShortRatio(ctx, symbol, StatsPeriod(timeframe))
		}))
	}

	return providers
}

func (r *Resolver) openInterestProviders(name core.ExchangeName, symbol string) []Provider[float64] {
	gateway, feed, ok := r.derivatives(name)
	if !ok {
		return nil
	}

	return []Provider[float64]{
		exchangeProvider(gateway, func(ctx context.Context) (float64, error) {
			return feed.OpenInterest(ctx, symbol)
		}),
	}
}

func (r *Resolver) orderbookProviders(name core.ExchangeName, symbol string) []Provider[float64] {
	gateway, feed, ok := r.derivatives(name)
	if !ok {
		return nil
	}

	return []Provider[float64]{
		exchangeProvider(gateway, func(ctx context.Context) (float64, error) {
			return feed.OrderbookRatio(ctx, symbol, OrderbookDepth)
		}),
	}
}

// StatsPeriod maps a timeframe to the shortest statistics period the
// exchanges publish, 1m is not available
func StatsPeriod(timeframe string) string {
	if timeframe == "1m" || !core.ValidTimeframe(timeframe) {
		return "5m"
	}
	return timeframe
}
