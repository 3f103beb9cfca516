package screener

import (
	"context"
	"errors"
	"time"

	"github.com/raykavin/screener/pkg/access"
	"github.com/raykavin/screener/pkg/alert"
	"github.com/raykavin/screener/pkg/core"
	"github.com/raykavin/screener/pkg/evaluator"
	"github.com/raykavin/screener/pkg/exchange"
	"github.com/raykavin/screener/pkg/indicator"
	"github.com/raykavin/screener/pkg/logger"
	"github.com/raykavin/screener/pkg/metrics"
)

// DefaultLog is the default logger instance
var DefaultLog logger.Logger

// DefaultEvalInterval is the pause between two evaluation cycles
const DefaultEvalInterval = 300 * time.Second

// DefaultUniverse seeds the symbol universe until the first refresh succeeds
var DefaultUniverse = []string{
	"BTCUSDT", "ETHUSDT", "BNBUSDT", "SOLUSDT", "XRPUSDT",
	"DOGEUSDT", "ADAUSDT", "AVAXUSDT", "LINKUSDT", "DOTUSDT",
}

// Listener receives inbound messages until ctx is done, eg: the Telegram bot
type Listener interface {
	Start(ctx context.Context)
}

// Screener runs the evaluation loop over every entitled identity
type Screener struct {
	store    core.Store
	access   *access.Service
	sender   core.Sender
	listener Listener
	metered  indicator.Metered
	log      logger.Logger
	metrics  *metrics.Recorder
	now      func() time.Time

	interval         time.Duration
	seed             []string
	quote            string
	topN             int
	universeInterval time.Duration
	cacheTTL         time.Duration
	concurrency      int
	requestTimeout   time.Duration

	gateways []*exchange.Gateway
	universe *exchange.Universe
	updater  *exchange.UniverseUpdater
	engine   *evaluator.Engine
	reset    *alert.DailyReset
}

// NewScreener wires the pipeline: one gateway per feed, in the given order,
// an indicator resolver, the dispatch controller and the universe updater
func NewScreener(store core.Store, accessService *access.Service, feeds []core.MarketFeed,
	sender core.Sender, options ...Option) (*Screener, error) {

	if len(feeds) == 0 {
		return nil, errors.New("at least one exchange feed is required")
	}

	s := &Screener{
		store:            store,
		access:           accessService,
		sender:           sender,
		log:              DefaultLog,
		metrics:          metrics.New(),
		now:              time.Now,
		interval:         DefaultEvalInterval,
		seed:             DefaultUniverse,
		quote:            exchange.DefaultQuoteAsset,
		topN:             exchange.DefaultUniverseTopN,
		universeInterval: exchange.DefaultUniverseInterval,
		cacheTTL:         exchange.DefaultCacheTTL,
		concurrency:      exchange.DefaultConcurrency,
		requestTimeout:   exchange.DefaultRequestTimeout,
	}

	for _, option := range options {
		option(s)
	}

	for _, feed := range feeds {
		s.gateways = append(s.gateways, exchange.NewGateway(feed, s.log,
			exchange.WithCache(exchange.NewCache(s.cacheTTL, s.now)),
			exchange.WithConcurrency(s.concurrency),
			exchange.WithRequestTimeout(s.requestTimeout),
			exchange.WithMetrics(s.metrics),
		))
	}

	s.universe = exchange.NewUniverse(s.seed...)
	s.updater = exchange.NewUniverseUpdater(s.universe, s.log, feeds,
		exchange.WithQuoteAsset(s.quote),
		exchange.WithTopN(s.topN),
		exchange.WithRefreshInterval(s.universeInterval),
		exchange.WithClock(s.now),
		exchange.WithUpdaterMetrics(s.metrics),
	)

	resolverOptions := []indicator.ResolverOption{
		indicator.WithQuote(s.quote),
		indicator.WithResolverMetrics(s.metrics),
	}
	if s.metered != nil {
		resolverOptions = append(resolverOptions, indicator.WithMetered(s.metered))
	}
	resolver := indicator.NewResolver(s.log, s.gateways, resolverOptions...)

	controller := alert.NewController(store, sender, s.log,
		alert.WithQuoteAsset(s.quote),
		alert.WithMetrics(s.metrics),
	)

	s.engine = evaluator.NewEngine(s.gateways, s.universe, resolver, controller, s.log)
	s.reset = alert.NewDailyReset(store, s.log, s.now)

	return s, nil
}

// Universe returns the monitored symbols
func (s *Screener) Universe() *exchange.Universe {
	return s.universe
}

// Metrics returns the recorder shared by every component
func (s *Screener) Metrics() *metrics.Recorder {
	return s.metrics
}

// Run starts the listener and the daily reset, then evaluates every
// interval until ctx is cancelled
func (s *Screener) Run(ctx context.Context) error {
	go s.reset.Run(ctx)

	if s.listener != nil {
		go s.listener.Start(ctx)
	}

	s.log.Infof("screener started, evaluating every %s", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.Tick(ctx); err != nil {
			s.log.WithError(err).Error("evaluation cycle failed")
		}

		select {
		case <-ctx.Done():
			s.log.Info("screener stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Tick runs one evaluation cycle. Identities are evaluated sequentially and
// a failing identity never stops the others.
func (s *Screener) Tick(ctx context.Context) error {
	started := s.now()

	// the daily reset runs on its own timer, this covers a missed midnight
	if _, err := s.reset.Check(ctx); err != nil {
		s.log.WithError(err).Warn("daily counter check failed")
	}

	s.updater.MaybeUpdate(ctx)

	subscribers, err := s.access.Subscribers(ctx)
	if err != nil {
		return err
	}

	for _, settings := range subscribers {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := s.engine.Evaluate(ctx, settings)
		if err == nil || errors.Is(err, context.Canceled) {
			continue
		}

		log := s.log.WithField("identity", settings.Identity).WithError(err)
		if errors.Is(err, core.ErrRecipientUnreachable) {
			log.Warn("recipient unreachable, skipping for this cycle")
			continue
		}
		log.Error("evaluation aborted")
	}

	purged := 0
	for _, gateway := range s.gateways {
		purged += gateway.Purge()
	}

	s.log.WithFields(map[string]any{
		"subscribers": len(subscribers),
		"symbols":     s.universe.Len(),
		"purged":      purged,
	}).Debugf("evaluation cycle finished in %s", s.now().Sub(started))

	return nil
}
