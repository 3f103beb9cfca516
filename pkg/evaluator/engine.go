// Package evaluator scans the symbol universe for pump and dump movements
package evaluator

import (
	"context"
	"errors"

	"github.com/raykavin/screener/pkg/alert"
	"github.com/raykavin/screener/pkg/core"
	"github.com/raykavin/screener/pkg/exchange"
	"github.com/raykavin/screener/pkg/logger"
	"github.com/samber/lo"
)

// Enricher attaches optional indicators to a detected movement
type Enricher interface {
	Enrich(ctx context.Context, name core.ExchangeName, symbol, timeframe string) core.Enrichment
}

// Dispatcher delivers signals within the daily quotas
type Dispatcher interface {
	Dispatch(ctx context.Context, settings *core.Settings, signal core.Signal) (alert.Outcome, error)
}

// Engine evaluates one identity at a time against every enabled exchange
type Engine struct {
	gateways   []*exchange.Gateway
	universe   *exchange.Universe
	enricher   Enricher
	dispatcher Dispatcher
	log        logger.Logger
}

// NewEngine creates an engine; gateways are evaluated in the given order
func NewEngine(gateways []*exchange.Gateway, universe *exchange.Universe, enricher Enricher,
	dispatcher Dispatcher, log logger.Logger) *Engine {
	return &Engine{
		gateways:   gateways,
		universe:   universe,
		enricher:   enricher,
		dispatcher: dispatcher,
		log:        log,
	}
}

// Crossed reports whether change crosses the threshold of direction
func Crossed(change core.Change, direction core.Direction, threshold float64) bool {
	if direction == core.DirectionDump {
		return change.PriceChangePct <= -threshold
	}
	return change.PriceChangePct >= threshold
}

// activeDirections lists the categories that may still produce a signal, pump first
func activeDirections(settings *core.Settings) []core.Direction {
	if !settings.SignalsEnabled {
		return nil
	}

	return lo.Filter(core.Directions, func(direction core.Direction, _ int) bool {
		category := settings.Category(direction)
		return category.Enabled && category.Remaining() > 0
	})
}

// Evaluate scans the universe for the owner of settings and dispatches the
// signals found. Per-symbol failures are logged and skipped. An unreachable
// recipient or a failed counter update ends the evaluation with an error.
func (e *Engine) Evaluate(ctx context.Context, settings *core.Settings) error {
	symbols := e.universe.Symbols()

	for _, gateway := range e.gateways {
		name := gateway.Exchange()
		if !settings.ExchangeEnabled(name) {
			continue
		}

		for _, symbol := range symbols {
			if err := ctx.Err(); err != nil {
				return err
			}

			directions := activeDirections(settings)
			if len(directions) == 0 {
				// every quota is spent, no point fetching further
				return nil
			}

			if err := e.evaluateSymbol(ctx, gateway, settings, symbol, directions); err != nil {
				return err
			}
		}
	}

	return nil
}

// evaluateSymbol emits at most one signal for symbol
func (e *Engine) evaluateSymbol(ctx context.Context, gateway *exchange.Gateway, settings *core.Settings,
	symbol string, directions []core.Direction) error {
	name := gateway.Exchange()

	for _, direction := range directions {
		category := settings.Category(direction)

		change, err := gateway.FetchChange(ctx, symbol, category.Timeframe)
		if err != nil {
			e.log.WithFields(map[string]any{
				"identity": settings.Identity,
				"exchange": name,
				"symbol":   symbol,
			}).WithError(err).Debug("skipping symbol")
			continue
		}

		if !Crossed(change, direction, category.ThresholdPct) {
			continue
		}

		signal := core.Signal{
			Symbol:     symbol,
			Direction:  direction,
			Exchange:   name,
			Timeframe:  category.Timeframe,
			Change:     change,
			Enrichment: e.enricher.Enrich(ctx, name, symbol, category.Timeframe),
		}

		_, err = e.dispatcher.Dispatch(ctx, settings, signal)
		if errors.Is(err, core.ErrRecipientUnreachable) || errors.Is(err, core.ErrPersistence) {
			return err
		}
		if err != nil {
			e.log.WithField("symbol", symbol).WithError(err).Warn("dispatch failed")
		}

		return nil
	}

	return nil
}
