package exchange

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/StudioSol/set"
	"github.com/jpillora/backoff"
	"github.com/raykavin/screener/pkg/core"
	"github.com/raykavin/screener/pkg/logger"
	"github.com/raykavin/screener/pkg/metrics"
)

// Universe defaults
const (
	DefaultUniverseInterval = time.Hour
	DefaultUniverseRetry    = 5 * time.Minute
	DefaultUniverseTopN     = 30
	DefaultQuoteAsset       = "USDT"
)

// Universe is the ordered set of monitored symbols, replaced as a whole
type Universe struct {
	mu      sync.RWMutex
	symbols []string
}

// NewUniverse creates a universe seeded with symbols
func NewUniverse(seed ...string) *Universe {
	return &Universe{symbols: dedupe(seed)}
}

// Symbols returns a snapshot of the universe in evaluation order
func (u *Universe) Symbols() []string {
	u.mu.RLock()
	defer u.mu.RUnlock()

	return append([]string(nil), u.symbols...)
}

// Len returns the number of monitored symbols
func (u *Universe) Len() int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return len(u.symbols)
}

// Replace swaps the whole universe
func (u *Universe) Replace(symbols []string) {
	u.mu.Lock()
	u.symbols = symbols
	u.mu.Unlock()
}

// dedupe keeps the first occurrence of every symbol
func dedupe(symbols []string) []string {
	ordered := set.NewLinkedHashSetString()
	for _, symbol := range symbols {
		ordered.Add(symbol)
	}

	result := make([]string, 0, len(symbols))
	for symbol := range ordered.Iter() {
		result = append(result, symbol)
	}
	return result
}

// BaseAsset strips the quote suffix of a symbol, eg: BTCUSDT -> BTC
func BaseAsset(symbol, quote string) string {
	if base, ok := strings.CutSuffix(symbol, quote); ok && base != "" {
		return base
	}
	return symbol
}

// UniverseUpdater refreshes the universe from the 24h volume ranking of each feed
type UniverseUpdater struct {
	universe    *Universe
	feeds       []core.MarketFeed
	quote       string
	topN        int
	interval    time.Duration
	timeout     time.Duration
	now         func() time.Time
	lastUpdated time.Time
	retryAt     time.Time
	retry       *backoff.Backoff
	log         logger.Logger
	metrics     *metrics.Recorder
	mu          sync.Mutex
}

// UpdaterOption is a function that configures a UniverseUpdater
type UpdaterOption func(*UniverseUpdater)

// WithQuoteAsset keeps only symbols quoted in quote
func WithQuoteAsset(quote string) UpdaterOption {
	return func(u *UniverseUpdater) {
		u.quote = quote
	}
}

// WithTopN sets how many symbols are taken from each exchange
func WithTopN(n int) UpdaterOption {
	return func(u *UniverseUpdater) {
		u.topN = n
	}
}

// WithRefreshInterval sets the minimum time between refreshes
func WithRefreshInterval(interval time.Duration) UpdaterOption {
	return func(u *UniverseUpdater) {
		u.interval = interval
	}
}

// WithClock replaces the wall clock
func WithClock(now func() time.Time) UpdaterOption {
	return func(u *UniverseUpdater) {
		u.now = now
	}
}

// WithUpdaterMetrics records the universe size
func WithUpdaterMetrics(recorder *metrics.Recorder) UpdaterOption {
	return func(u *UniverseUpdater) {
		u.metrics = recorder
	}
}

// NewUniverseUpdater creates an updater; feeds are merged in the given order
func NewUniverseUpdater(universe *Universe, log logger.Logger, feeds []core.MarketFeed, options ...UpdaterOption) *UniverseUpdater {
	updater := &UniverseUpdater{
		universe: universe,
		feeds:    feeds,
		quote:    DefaultQuoteAsset,
		topN:     DefaultUniverseTopN,
		interval: DefaultUniverseInterval,
		timeout:  DefaultRequestTimeout,
		now:      time.Now,
		log:      log,
		metrics:  metrics.New(),
	}

	for _, option := range options {
		option(updater)
	}

	// consecutive failures wait longer, never past the refresh interval
	updater.retry = &backoff.Backoff{
		Min:    min(DefaultUniverseRetry, updater.interval),
		Max:    updater.interval,
		Factor: 2,
	}

	return updater
}

// LastUpdated returns the time of the last successful refresh
func (u *UniverseUpdater) LastUpdated() time.Time {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.lastUpdated
}

// MaybeUpdate refreshes the universe when the interval elapsed since the last
// successful refresh. Failures are logged, leave the universe untouched and
// postpone the next attempt with a growing delay.
// It reports whether the universe was replaced.
func (u *UniverseUpdater) MaybeUpdate(ctx context.Context) bool {
	u.mu.Lock()
	defer u.mu.Unlock()

	now := u.now()
	if now.Before(u.retryAt) {
		return false
	}
	if !u.lastUpdated.IsZero() && now.Sub(u.lastUpdated) < u.interval {
		return false
	}

	symbols, err := u.fetch(ctx)
	if err != nil {
		u.retryAt = now.Add(u.retry.Duration())
		u.log.WithError(err).Errorf("universe refresh failed, keeping previous symbols until %s",
			u.retryAt.Format(time.TimeOnly))
		return false
	}

	u.retry.Reset()
	u.retryAt = time.Time{}
	u.universe.Replace(symbols)
	u.lastUpdated = now
	u.metrics.UniverseSize(len(symbols))
	u.log.Infof("universe refreshed with %d symbols", len(symbols))
	return true
}

func (u *UniverseUpdater) fetch(ctx context.Context) ([]string, error) {
	ranked := make([]string, 0, u.topN*len(u.feeds))

	for _, feed := range u.feeds {
		callCtx, cancel := context.WithTimeout(ctx, u.timeout)
		symbols, err := feed.TopSymbols(callCtx, u.quote, u.topN)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("%s top symbols: %w", feed.Name(), err)
		}

		for _, symbol := range symbols {
			if strings.HasSuffix(symbol, u.quote) {
				ranked = append(ranked, symbol)
			}
		}
	}

	if len(ranked) == 0 {
		return nil, fmt.Errorf("%w: empty ranking", core.ErrDataUnavailable)
	}

	return dedupe(ranked), nil
}
