package core

import (
	"context"
)

// MarketFeed is the candle and ticker surface every exchange adapter provides
type MarketFeed interface {
	// Name returns the exchange display name, eg: Binance
	Name() ExchangeName
	// Candles returns the last `limit` candles for symbol, oldest first.
	// The last element is the candle currently forming.
	Candles(ctx context.Context, symbol, timeframe string, limit int) ([]Candle, error)
	// TopSymbols returns up to `limit` symbols quoted in `quote`, ranked by 24h quote volume.
	TopSymbols(ctx context.Context, quote string, limit int) ([]string, error)
}

// DerivativesFeed exposes the futures metrics used as indicator fallbacks
type DerivativesFeed interface {
	MarketFeed

	// FundingRate returns the latest funding rate as a percentage (0.01 means 0.01%)
	FundingRate(ctx context.Context, symbol string) (float64, error)
	// LongShortRatio returns the share of long and short accounts for the period
	LongShortRatio(ctx context.Context, symbol, period string) (LongShort, error)
	// OpenInterest returns the open interest in contracts
	OpenInterest(ctx context.Context, symbol string) (float64, error)
	// OrderbookRatio returns total bid size divided by total ask size over `depth` levels
	OrderbookRatio(ctx context.Context, symbol string, depth int) (float64, error)
}

// Sender delivers a formatted message to an identity.
// Implementations classify failures as ErrRecipientUnreachable when the identity
// can no longer receive messages; every other error is treated as transient.
type Sender interface {
	Send(ctx context.Context, to Identity, text string) error
}
