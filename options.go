package screener

import (
	"time"

	"github.com/raykavin/screener/pkg/indicator"
	"github.com/raykavin/screener/pkg/logger"
	"github.com/raykavin/screener/pkg/metrics"
)

// Option is a functional option for configuring a Screener instance
type Option func(*Screener)

// WithLogger replaces DefaultLog
func WithLogger(log logger.Logger) Option {
	return func(s *Screener) {
		s.log = log
	}
}

// WithLogLevel sets the log level. eg: logger.DebugLevel, logger.InfoLevel
func WithLogLevel(level logger.Level) Option {
	return func(s *Screener) {
		s.log.SetLevel(level)
	}
}

// WithMetrics shares a recorder, eg: the one served on the metrics endpoint
func WithMetrics(recorder *metrics.Recorder) Option {
	return func(s *Screener) {
		s.metrics = recorder
	}
}

// WithListener starts listener alongside the evaluation loop
func WithListener(listener Listener) Option {
	return func(s *Screener) {
		s.listener = listener
	}
}

// WithMetered sets the paid aggregator tried before the exchanges for indicators
func WithMetered(metered indicator.Metered) Option {
	return func(s *Screener) {
		s.metered = metered
	}
}

// WithEvalInterval sets the pause between evaluation cycles
func WithEvalInterval(interval time.Duration) Option {
	return func(s *Screener) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithUniverse seeds the symbol universe
func WithUniverse(symbols ...string) Option {
	return func(s *Screener) {
		if len(symbols) > 0 {
			s.seed = symbols
		}
	}
}

// WithUniverseRefresh sets how many symbols per exchange are kept and how often they are refreshed
func WithUniverseRefresh(topN int, interval time.Duration) Option {
	return func(s *Screener) {
		if topN > 0 {
			s.topN = topN
		}
		if interval > 0 {
			s.universeInterval = interval
		}
	}
}

// WithQuoteAsset sets the quote asset of the monitored symbols, eg: USDT
func WithQuoteAsset(quote string) Option {
	return func(s *Screener) {
		if quote != "" {
			s.quote = quote
		}
	}
}

// WithCacheTTL sets how long a computed change is reused
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Screener) {
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithExchangeLimits bounds the in-flight requests and the duration of each one
func WithExchangeLimits(concurrency int, timeout time.Duration) Option {
	return func(s *Screener) {
		if concurrency > 0 {
			s.concurrency = concurrency
		}
		if timeout > 0 {
			s.requestTimeout = timeout
		}
	}
}

// WithClock replaces the wall clock, used by tests
func WithClock(now func() time.Time) Option {
	return func(s *Screener) {
		s.now = now
	}
}
