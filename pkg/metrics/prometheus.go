// Package metrics records pipeline counters with Prometheus
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns the screener collectors and the registry they live in
type Recorder struct {
	registry *prometheus.Registry

	signals      *prometheus.CounterVec
	deliveries   *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
	fetchLatency *prometheus.HistogramVec
	indicators   *prometheus.CounterVec
	universeSize prometheus.Gauge
}

// New creates a recorder backed by a private registry
func New() *Recorder {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Recorder{
		registry: registry,
		signals: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screener_signals_dispatched_total",
				Help: "Signals delivered to subscribers",
			},
			[]string{"exchange", "direction"},
		),
		deliveries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screener_delivery_failures_total",
				Help: "Failed deliveries by kind",
			},
			[]string{"kind"},
		),
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screener_gateway_cache_lookups_total",
				Help: "Market data cache lookups by result",
			},
			[]string{"exchange", "result"},
		),
		fetchLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "screener_gateway_fetch_seconds",
				Help:    "Duration of candle fetches",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"exchange"},
		),
		indicators: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screener_indicator_resolutions_total",
				Help: "Indicator resolutions by provider, unavailable when every provider failed",
			},
			[]string{"indicator", "source"},
		),
		universeSize: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "screener_universe_symbols",
				Help: "Symbols in the monitored universe",
			},
		),
	}
}

// Handler exposes the registry in the Prometheus text format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// SignalDispatched counts a delivered signal
func (r *Recorder) SignalDispatched(exchange, direction string) {
	r.signals.WithLabelValues(exchange, direction).Inc()
}

// DeliveryFailed counts a failed delivery, kind is unreachable or transient
func (r *Recorder) DeliveryFailed(kind string) {
	r.deliveries.WithLabelValues(kind).Inc()
}

// CacheLookup counts a gateway cache hit or miss
func (r *Recorder) CacheLookup(exchange string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(exchange, result).Inc()
}

// FetchDuration observes a candle fetch latency
func (r *Recorder) FetchDuration(exchange string, seconds float64) {
	r.fetchLatency.WithLabelValues(exchange).Observe(seconds)
}

// IndicatorResolved counts which provider produced an indicator
func (r *Recorder) IndicatorResolved(indicator, source string) {
	r.indicators.WithLabelValues(indicator, source).Inc()
}

// UniverseSize records the symbol count after a refresh
func (r *Recorder) UniverseSize(size int) {
	r.universeSize.Set(float64(size))
}
