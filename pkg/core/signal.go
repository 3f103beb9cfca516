package core

// LongShort is the share of long and short positions in percent
type LongShort struct {
	Long  float64
	Short float64
}

// LongShortFromRatio converts a long/short account ratio into percentages.
// A ratio of 1.5 means 1.5 longs for every short: 60% / 40%.
func LongShortFromRatio(ratio float64) LongShort {
	long := ratio / (ratio + 1) * 100
	return LongShort{Long: long, Short: 100 - long}
}

// Enrichment holds the optional indicators attached to a signal.
// A nil field means the indicator was unavailable.
type Enrichment struct {
	RSI            *float64
	FundingRate    *float64
	LongShort      *LongShort
	OpenInterest   *float64
	OrderbookRatio *float64
}

// Signal is an ephemeral pump/dump detection; it is never persisted
type Signal struct {
	Symbol     string
	Direction  Direction
	Exchange   ExchangeName
	Timeframe  string
	Change     Change
	Enrichment Enrichment
}
