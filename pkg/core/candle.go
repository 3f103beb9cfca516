package core

import (
	"time"
)

// Candle represents an open/close/volume aggregate for a fixed time bucket
type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// IsEmpty checks if the candle contains no significant data
func (c Candle) IsEmpty() bool { return c.Open == 0 && c.Close == 0 && c.Volume == 0 }

// CandlePair holds the previous and the current candle of a timeframe
type CandlePair struct {
	Prev Candle
	Curr Candle
}

// Change is the price and volume movement derived from a CandlePair
type Change struct {
	PriceChangePct  float64
	VolumeChangePct float64
	PriceNow        float64
	VolumeNow       float64
	VolumePrev      float64
}

// Closes extracts the close prices of the given candles
func Closes(candles []Candle) []float64 {
	closes := make([]float64, len(candles))
	for i, candle := range candles {
		closes[i] = candle.Close
	}
	return closes
}
