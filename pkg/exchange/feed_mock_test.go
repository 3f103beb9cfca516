package exchange

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/raykavin/screener/pkg/core"
)

type fakeFeed struct {
	name     core.ExchangeName
	candles  map[string][]core.Candle
	top      []string
	err      error
	topErr   error
	delay    time.Duration
	calls    atomic.Int32
	topCalls atomic.Int32
	inFlight atomic.Int32
	peak     atomic.Int32
	mu       sync.Mutex
}

func newFakeFeed(name core.ExchangeName) *fakeFeed {
	return &fakeFeed{name: name, candles: make(map[string][]core.Candle)}
}

func (f *fakeFeed) Name() core.ExchangeName { return f.name }

func (f *fakeFeed) Candles(ctx context.Context, symbol, _ string, _ int) ([]core.Candle, error) {
	f.calls.Add(1)
	current := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)

	for {
		peak := f.peak.Load()
		if current <= peak || f.peak.CompareAndSwap(peak, current) {
			break
		}
	}

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if f.err != nil {
		return nil, f.err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.candles[symbol], nil
}

func (f *fakeFeed) TopSymbols(_ context.Context, _ string, limit int) ([]string, error) {
	f.topCalls.Add(1)
	if f.topErr != nil {
		return nil, f.topErr
	}
	if len(f.top) > limit {
		return f.top[:limit], nil
	}
	return f.top, nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
