package alert

import (
	"context"
	"errors"
	"fmt"

	"github.com/raykavin/screener/pkg/core"
	"github.com/raykavin/screener/pkg/exchange"
	"github.com/raykavin/screener/pkg/logger"
	"github.com/raykavin/screener/pkg/metrics"
)

// Outcome is the result of a dispatch attempt
type Outcome int

const (
	Skipped   Outcome = iota // gate closed, nothing sent
	Delivered                // sent and counted
	Failed                   // send failed, quota untouched
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case Failed:
		return "failed"
	default:
		return "skipped"
	}
}

// Controller owns the check-then-act sequence of a delivery: gate, format,
// send and, only after a confirmed delivery, count.
type Controller struct {
	store   core.SettingsStore
	sender  core.Sender
	quote   string
	log     logger.Logger
	metrics *metrics.Recorder
}

// ControllerOption is a function that configures a Controller
type ControllerOption func(*Controller)

// WithQuoteAsset sets the quote stripped for the symbol link
func WithQuoteAsset(quote string) ControllerOption {
	return func(c *Controller) {
		c.quote = quote
	}
}

// WithMetrics records deliveries
func WithMetrics(recorder *metrics.Recorder) ControllerOption {
	return func(c *Controller) {
		c.metrics = recorder
	}
}

// NewController creates a dispatch controller
func NewController(store core.SettingsStore, sender core.Sender, log logger.Logger, options ...ControllerOption) *Controller {
	controller := &Controller{
		store:   store,
		sender:  sender,
		quote:   exchange.DefaultQuoteAsset,
		log:     log,
		metrics: metrics.New(),
	}

	for _, option := range options {
		option(controller)
	}

	return controller
}

// Dispatch delivers signal to the owner of settings when the gate allows it.
// settings is updated in place with the new sent counter.
//
// Errors are returned for an unreachable recipient (core.ErrRecipientUnreachable)
// and for a counter that could not be persisted (core.ErrPersistence); both
// end the identity's unit of work. Transient send failures only log.
func (c *Controller) Dispatch(ctx context.Context, settings *core.Settings, signal core.Signal) (Outcome, error) {
	if !settings.CanDispatch(signal.Direction, signal.Exchange) {
		return Skipped, nil
	}

	log := c.log.WithFields(map[string]any{
		"identity":  settings.Identity,
		"symbol":    signal.Symbol,
		"exchange":  signal.Exchange,
		"direction": signal.Direction,
	})

	err := c.sender.Send(ctx, settings.Identity, Format(signal, c.quote))
	if errors.Is(err, core.ErrRecipientUnreachable) {
		c.metrics.DeliveryFailed("unreachable")
		return Failed, err
	}
	if err != nil {
		c.metrics.DeliveryFailed("transient")
		log.WithError(err).Warn("signal delivery failed")
		return Failed, nil
	}

	category := settings.Category(signal.Direction)
	// the local counter moves even when persisting fails so the cycle never
	// sends past the quota
	category.SentToday++
	c.metrics.SignalDispatched(string(signal.Exchange), string(signal.Direction))

	sent, err := c.store.IncrementSent(ctx, settings.Identity, signal.Direction)
	if err != nil {
		return Delivered, fmt.Errorf("%w: counting %s for %d: %v", core.ErrPersistence, signal.Direction, settings.Identity, err)
	}
	if sent > category.SentToday {
		category.SentToday = sent
	}

	log.Infof("%s signal delivered (%d/%d)", signal.Direction, category.SentToday, category.DailyQuota)
	return Delivered, nil
}
