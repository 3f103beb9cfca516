// Package alert gates, formats and delivers signals within the daily quotas
package alert

import (
	"fmt"
	"strings"

	"github.com/raykavin/screener/pkg/core"
	"github.com/raykavin/screener/pkg/exchange"
)

const (
	coinglassURL = "https://www.coinglass.com/currencies/"
	binanceRef   = "https://accounts.binance.com/register?ref=444333168"
	bybitRef     = "https://www.bybit.com/invite?ref=3GKKD83"
)

// Format renders a signal as a Markdown message. Unavailable indicators
// are left out.
func Format(signal core.Signal, quote string) string {
	var sb strings.Builder

	title := "🟢 PUMP"
	if signal.Direction == core.DirectionDump {
		title = "🔴 DUMP"
	}

	change := signal.Change
	fmt.Fprintf(&sb, "%s! [%s](%s%s)\n", title, signal.Symbol, coinglassURL, exchange.BaseAsset(signal.Symbol, quote))
	fmt.Fprintf(&sb, "💱 Exchange: %s\n", signal.Exchange)
	fmt.Fprintf(&sb, "⏱ Timeframe: %s\n", signal.Timeframe)
	fmt.Fprintf(&sb, "💵 Price: %.4f\n", change.PriceNow)
	fmt.Fprintf(&sb, "📉 Change: %+.2f%%\n", change.PriceChangePct)
	fmt.Fprintf(&sb, "📊 Volume: %.2f (%+.2f%%)\n", change.VolumeNow, change.VolumeChangePct)

	enrichment := signal.Enrichment
	if enrichment.RSI != nil {
		fmt.Fprintf(&sb, "❗️ RSI: %.2f\n", *enrichment.RSI)
	}
	if enrichment.FundingRate != nil {
		fmt.Fprintf(&sb, "❕ Funding: %.4f%%\n", *enrichment.FundingRate)
	}
	if enrichment.LongShort != nil {
		fmt.Fprintf(&sb, "🔄 Long/Short ratio: %.2f%% / %.2f%%\n", enrichment.LongShort.Long, enrichment.LongShort.Short)
	}
	if enrichment.OpenInterest != nil {
		fmt.Fprintf(&sb, "💰 Open interest: %.2f\n", *enrichment.OpenInterest)
	}
	if enrichment.OrderbookRatio != nil {
		fmt.Fprintf(&sb, "📊 Orderbook ratio (bid/ask): %.2f\n", *enrichment.OrderbookRatio)
	}

	fmt.Fprintf(&sb, "[🔗 Register on Binance](%s)\n", binanceRef)
	fmt.Fprintf(&sb, "[🔗 Register on Bybit](%s)", bybitRef)

	return sb.String()
}
