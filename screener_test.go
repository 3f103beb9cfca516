package screener

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/raykavin/screener/pkg/access"
	"github.com/raykavin/screener/pkg/core"
	"github.com/raykavin/screener/pkg/logger/zerolog"
	"github.com/raykavin/screener/pkg/storage"
	"github.com/stretchr/testify/require"
)

type staticFeed struct {
	name core.ExchangeName
	move map[string]float64
}

func (f staticFeed) Name() core.ExchangeName { return f.name }

func (f staticFeed) Candles(_ context.Context, symbol, _ string, _ int) ([]core.Candle, error) {
	return []core.Candle{
		{Open: 10, Close: 10, Volume: 5},
		{Open: 10, Close: 10 * (1 + f.move[symbol]/100), Volume: 10},
	}, nil
}

func (f staticFeed) TopSymbols(context.Context, string, int) ([]string, error) {
	return []string{"BTCUSDT", "ETHUSDT", "PEPEUSDT"}, nil
}

type inbox struct {
	mu       sync.Mutex
	messages map[core.Identity][]string
}

func (i *inbox) Send(_ context.Context, to core.Identity, text string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.messages == nil {
		i.messages = make(map[core.Identity][]string)
	}
	i.messages[to] = append(i.messages[to], text)
	return nil
}

func (i *inbox) count(id core.Identity) int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.messages[id])
}

func TestScreener_Tick(t *testing.T) {
	ctx := context.Background()

	store, err := storage.FromMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	service := access.NewService(store, zerolog.Nop(), access.WithClock(clock))
	_, err = service.AddKey(ctx, "SUBSCRIBER", 1)
	require.NoError(t, err)
	_, err = service.Activate(ctx, 7, "bob", "SUBSCRIBER")
	require.NoError(t, err)

	// bound but logged out identities are not evaluated
	_, err = service.AddKey(ctx, "GONE", 1)
	require.NoError(t, err)
	_, err = service.Activate(ctx, 8, "carol", "GONE")
	require.NoError(t, err)
	require.NoError(t, service.Logout(ctx, 8))

	feed := staticFeed{name: core.ExchangeBinance, move: map[string]float64{"PEPEUSDT": 3, "ETHUSDT": -2}}
	sender := &inbox{}

	s, err := NewScreener(store, service, []core.MarketFeed{feed}, sender,
		WithLogger(zerolog.Nop()),
		WithClock(clock),
		WithUniverse("BTCUSDT"),
	)
	require.NoError(t, err)

	require.NoError(t, s.Tick(ctx))
	require.Equal(t, []string{"BTCUSDT", "ETHUSDT", "PEPEUSDT"}, s.Universe().Symbols())
	require.Equal(t, 2, sender.count(7))
	require.Zero(t, sender.count(8))

	settings, err := store.Settings(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, 1, settings.Pump.SentToday)
	require.Equal(t, 1, settings.Dump.SentToday)
}

func TestNewScreener_RequiresFeed(t *testing.T) {
	store, err := storage.FromMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	_, err = NewScreener(store, access.NewService(store, zerolog.Nop()), nil, &inbox{}, WithLogger(zerolog.Nop()))
	require.Error(t, err)
}
