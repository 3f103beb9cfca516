package exchange

import (
	"fmt"

	"github.com/raykavin/screener/pkg/core"
)

// ComputeChange derives the price and volume movement of the current candle.
//
//	price  = (closeCurr - openCurr) / openCurr * 100
//	volume = (volumeCurr - volumePrev) / volumePrev * 100, or 0 when volumePrev is 0
func ComputeChange(pair core.CandlePair) (core.Change, error) {
	if pair.Curr.Open == 0 {
		return core.Change{}, fmt.Errorf("%w: zero open price", core.ErrInvalidCandle)
	}

	change := core.Change{
		PriceChangePct: (pair.Curr.Close - pair.Curr.Open) / pair.Curr.Open * 100,
		PriceNow:       pair.Curr.Close,
		VolumeNow:      pair.Curr.Volume,
		VolumePrev:     pair.Prev.Volume,
	}

	if pair.Prev.Volume != 0 {
		change.VolumeChangePct = (pair.Curr.Volume - pair.Prev.Volume) / pair.Prev.Volume * 100
	}

	return change, nil
}

// LastPair extracts the previous and current candle from an oldest-first slice
func LastPair(candles []core.Candle) (core.CandlePair, error) {
	if len(candles) < 2 {
		return core.CandlePair{}, fmt.Errorf("%w: expected 2 candles, got %d", core.ErrDataUnavailable, len(candles))
	}

	n := len(candles)
	return core.CandlePair{Prev: candles[n-2], Curr: candles[n-1]}, nil
}
