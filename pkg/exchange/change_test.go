package exchange

import (
	"testing"

	"github.com/raykavin/screener/pkg/core"
	"github.com/stretchr/testify/require"
)

func TestComputeChange(t *testing.T) {
	tt := []struct {
		name   string
		pair   core.CandlePair
		price  float64
		volume float64
	}{
		{
			name:   "pump",
			pair:   core.CandlePair{Prev: core.Candle{Volume: 100}, Curr: core.Candle{Open: 100, Close: 102, Volume: 150}},
			price:  2,
			volume: 50,
		},
		{
			name:   "dump",
			pair:   core.CandlePair{Prev: core.Candle{Volume: 200}, Curr: core.Candle{Open: 50, Close: 49, Volume: 100}},
			price:  -2,
			volume: -50,
		},
		{
			name:   "zero previous volume",
			pair:   core.CandlePair{Curr: core.Candle{Open: 10, Close: 10, Volume: 100}},
			price:  0,
			volume: 0,
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			change, err := ComputeChange(tc.pair)
			require.NoError(t, err)
			require.InDelta(t, tc.price, change.PriceChangePct, 1e-9)
			require.InDelta(t, tc.volume, change.VolumeChangePct, 1e-9)
			require.Equal(t, tc.pair.Curr.Close, change.PriceNow)
		})
	}
}

func TestComputeChange_ZeroOpen(t *testing.T) {
	_, err := ComputeChange(core.CandlePair{Curr: core.Candle{Close: 1}})
	require.ErrorIs(t, err, core.ErrInvalidCandle)
}

func TestLastPair(t *testing.T) {
	_, err := LastPair([]core.Candle{{Open: 1}})
	require.ErrorIs(t, err, core.ErrDataUnavailable)

	pair, err := LastPair([]core.Candle{{Open: 1}, {Open: 2}, {Open: 3}})
	require.NoError(t, err)
	require.Equal(t, 2.0, pair.Prev.Open)
	require.Equal(t, 3.0, pair.Curr.Open)
}
