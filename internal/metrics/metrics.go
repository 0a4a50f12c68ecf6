package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the live service. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	hubPublished  *prometheus.CounterVec
	hubDelivered  prometheus.Counter
	hubDropped    prometheus.Counter
	hubMembers    prometheus.Gauge
	relayDropped  *prometheus.CounterVec
	reconnects    prometheus.Counter
	decisions     *prometheus.CounterVec
	cacheHits     prometheus.Counter
	cacheFetches  prometheus.Counter
	contentErrors *prometheus.CounterVec
	preloadAssets *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		hubPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worship_hub_published_total",
			Help: "Envelopes published to the hub, by event name",
		}, []string{"event"}),
		hubDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "worship_hub_delivered_total",
			Help: "Envelopes handed to topic members",
		}),
		hubDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "worship_hub_dropped_total",
			Help: "Envelopes dropped because a member's buffer was full",
		}),
		hubMembers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "worship_hub_members",
			Help: "Members currently joined to any topic",
		}),
		relayDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worship_relay_dropped_total",
			Help: "Envelopes dropped by the in-process relay, by event name",
		}, []string{"event"}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "worship_channel_reconnects_total",
			Help: "Channel session reconnect attempts",
		}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worship_display_decisions_total",
			Help: "Bible event classifications, by decision",
		}, []string{"decision"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "worship_chapter_cache_hits_total",
			Help: "Chapter cache lookups served without a fetch",
		}),
		cacheFetches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "worship_chapter_cache_fetches_total",
			Help: "Chapter resolver calls issued by the cache",
		}),
		contentErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worship_content_errors_total",
			Help: "Content resolution and validation failures, by kind",
		}, []string{"kind"}),
		preloadAssets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worship_preload_assets_total",
			Help: "Slide media preloads, by result",
		}, []string{"result"}),
	}
	m.registry.MustRegister(
		m.hubPublished, m.hubDelivered, m.hubDropped, m.hubMembers,
		m.relayDropped, m.reconnects, m.decisions,
		m.cacheHits, m.cacheFetches, m.contentErrors, m.preloadAssets,
	)
	return m
}

func (m *Metrics) IncPublished(event string) {
	if m != nil {
		m.hubPublished.WithLabelValues(event).Inc()
	}
}

func (m *Metrics) IncDelivered() {
	if m != nil {
		m.hubDelivered.Inc()
	}
}

func (m *Metrics) IncHubDropped() {
	if m != nil {
		m.hubDropped.Inc()
	}
}

func (m *Metrics) AddMembers(delta int) {
	if m != nil {
		m.hubMembers.Add(float64(delta))
	}
}

func (m *Metrics) IncRelayDropped(event string) {
	if m != nil {
		m.relayDropped.WithLabelValues(event).Inc()
	}
}

func (m *Metrics) IncReconnects() {
	if m != nil {
		m.reconnects.Inc()
	}
}

func (m *Metrics) IncDecision(decision string) {
	if m != nil {
		m.decisions.WithLabelValues(decision).Inc()
	}
}

func (m *Metrics) IncCacheHit() {
	if m != nil {
		m.cacheHits.Inc()
	}
}

func (m *Metrics) IncCacheFetch() {
	if m != nil {
		m.cacheFetches.Inc()
	}
}

func (m *Metrics) IncContentError(kind string) {
	if m != nil {
		m.contentErrors.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) IncPreloadAsset(result string) {
	if m != nil {
		m.preloadAssets.WithLabelValues(result).Inc()
	}
}

// Handler serves the private registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
