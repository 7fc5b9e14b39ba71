package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the pipeline counters. A nil *Metrics records nothing.
type Metrics struct {
	ChatRequests    *prometheus.CounterVec
	ChatLatency     prometheus.Histogram
	EmbedCacheLooks *prometheus.CounterVec
	CatalogEntries  prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ChatRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bingio_chat_requests_total",
			Help: "Chat requests by pipeline outcome",
		}, []string{"outcome"}),
		ChatLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "bingio_chat_request_duration_seconds",
			Help:    "Chat request latency in seconds, measured until the stream ends",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		EmbedCacheLooks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bingio_embed_cache_lookups_total",
			Help: "Embedding cache lookups by layer and result",
		}, []string{"layer", "result"}),
		CatalogEntries: factory.NewGauge(prometheus.GaugeOpts{
			Name: "bingio_catalog_entries",
			Help: "Entries written by the most recent catalog sync",
		}),
	}
}

func (m *Metrics) RecordOutcome(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.ChatRequests.WithLabelValues(outcome).Inc()
	m.ChatLatency.Observe(seconds)
}

// ObserveEmbedCache matches embedcache.HitObserver.
func (m *Metrics) ObserveEmbedCache(layer string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.EmbedCacheLooks.WithLabelValues(layer, result).Inc()
}

func (m *Metrics) SetCatalogEntries(n int) {
	if m == nil {
		return
	}
	m.CatalogEntries.Set(float64(n))
}
