// Package indicator resolves the optional indicators attached to a signal
package indicator

import (
	"fmt"

	"github.com/markcheno/go-talib"
	"github.com/raykavin/screener/pkg/core"
)

// RSI defaults used when computing locally from candles
const (
	RSIPeriod  = 14
	RSICandles = 20
)

// RSI calculates the Wilder Relative Strength Index of the last close.
// Fewer than period+1 closes cannot produce a value.
func RSI(closes []float64, period int) (float64, error) {
	if period < 2 || len(closes) < period+1 {
		return 0, fmt.Errorf("%w: rsi needs %d closes, got %d", core.ErrIndicatorUnavailable, period+1, len(closes))
	}

	// a flat series has no gains nor losses and talib answers 0, not 100
	values := talib.Rsi(closes, period)
	return values[len(values)-1], nil
}
