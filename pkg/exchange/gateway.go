package exchange

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/raykavin/screener/pkg/core"
	"github.com/raykavin/screener/pkg/logger"
	"github.com/raykavin/screener/pkg/metrics"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// Gateway defaults
const (
	DefaultConcurrency    = 5
	DefaultRequestTimeout = 10 * time.Second
	DefaultRatePerSecond  = 10
)

// Gateway is the cache-first, concurrency-bounded access point to one exchange
type Gateway struct {
	feed    core.MarketFeed
	cache   *Cache
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	group   singleflight.Group
	timeout time.Duration
	log     logger.Logger
	metrics *metrics.Recorder
}

// GatewayOption is a function that configures a Gateway
type GatewayOption func(*Gateway)

// WithCache replaces the default 5 minute cache
func WithCache(cache *Cache) GatewayOption {
	return func(g *Gateway) {
		g.cache = cache
	}
}

// WithConcurrency sets the ceiling of in-flight requests to the exchange
func WithConcurrency(n int) GatewayOption {
	return func(g *Gateway) {
		if n > 0 {
			g.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithRateLimit paces requests with a token bucket
func WithRateLimit(perSecond float64, burst int) GatewayOption {
	return func(g *Gateway) {
		g.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithRequestTimeout bounds every outbound call
func WithRequestTimeout(timeout time.Duration) GatewayOption {
	return func(g *Gateway) {
		if timeout > 0 {
			g.timeout = timeout
		}
	}
}

// WithMetrics records cache lookups and fetch latency
func WithMetrics(recorder *metrics.Recorder) GatewayOption {
	return func(g *Gateway) {
		g.metrics = recorder
	}
}

// NewGateway creates a gateway in front of feed
func NewGateway(feed core.MarketFeed, log logger.Logger, options ...GatewayOption) *Gateway {
	gateway := &Gateway{
		feed:    feed,
		cache:   NewCache(DefaultCacheTTL, nil),
		sem:     semaphore.NewWeighted(DefaultConcurrency),
		limiter: rate.NewLimiter(DefaultRatePerSecond, DefaultConcurrency),
		timeout: DefaultRequestTimeout,
		log:     log.WithField("exchange", feed.Name()),
		metrics: metrics.New(),
	}

	for _, option := range options {
		option(gateway)
	}

	return gateway
}

// Exchange returns the name of the exchange behind the gateway
func (g *Gateway) Exchange() core.ExchangeName {
	return g.feed.Name()
}

// Feed returns the underlying market feed
func (g *Gateway) Feed() core.MarketFeed {
	return g.feed
}

// FetchChange returns the movement of the current candle of symbol.
// Within the cache TTL no network call is made.
func (g *Gateway) FetchChange(ctx context.Context, symbol, timeframe string) (core.Change, error) {
	exchange := string(g.feed.Name())

	if change, ok := g.cache.Get(symbol, timeframe); ok {
		g.metrics.CacheLookup(exchange, true)
		return change, nil
	}
	g.metrics.CacheLookup(exchange, false)

	// concurrent misses for the same key share one request
	result, err, _ := g.group.Do(cacheKey(symbol, timeframe), func() (any, error) {
		started := time.Now()
		candles, err := g.Candles(ctx, symbol, timeframe, 2)
		g.metrics.FetchDuration(exchange, time.Since(started).Seconds())
		if err != nil {
			g.log.WithField("symbol", symbol).WithError(err).Debugf("candle fetch failed for %s", timeframe)
			return core.Change{}, err
		}

		pair, err := LastPair(candles)
		if err != nil {
			return core.Change{}, err
		}

		change, err := ComputeChange(pair)
		if err != nil {
			return core.Change{}, fmt.Errorf("%s %s: %w", symbol, timeframe, err)
		}

		g.cache.Set(symbol, timeframe, change)
		return change, nil
	})

	return result.(core.Change), err
}

// Candles fetches candles through the concurrency and rate bounds.
// Transport failures are reported as core.ErrDataUnavailable.
func (g *Gateway) Candles(ctx context.Context, symbol, timeframe string, limit int) ([]core.Candle, error) {
	var candles []core.Candle

	err := g.Do(ctx, func(ctx context.Context) error {
		var err error
		candles, err = g.feed.Candles(ctx, symbol, timeframe, limit)
		return err
	})
	if err != nil {
		if errors.Is(err, core.ErrDataUnavailable) || errors.Is(err, core.ErrInvalidCandle) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s %s: %v", core.ErrDataUnavailable, symbol, timeframe, err)
	}

	return candles, nil
}

// Do runs fn holding one concurrency slot and a per-call timeout
func (g *Gateway) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer g.sem.Release(1)

	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	return fn(ctx)
}

// Purge drops the expired cache entries
func (g *Gateway) Purge() int {
	return g.cache.Purge()
}
