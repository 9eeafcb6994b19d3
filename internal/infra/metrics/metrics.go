// File: internal/infra/metrics/metrics.go
package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	webhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Inbound webhook deliveries by result (ok/ignored/not_found/bad_request).",
		},
		[]string{"result"},
	)

	forwardsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forwards_total",
			Help: "Forwarding attempts by outcome and content type.",
		},
		[]string{"outcome", "content_type"},
	)

	forwardLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "forward_latency_ms",
			Help:    "Destination-API send latency distribution in milliseconds.",
			Buckets: []float64{10, 25, 50, 100, 200, 400, 800, 1600, 3000, 5000, 10000},
		},
		[]string{"content_type", "success"},
	)

	quotaBlocks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quota_blocks_total",
			Help: "Forwards skipped because the daily limit was exhausted.",
		},
	)

	pruneDeleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retention_deleted_total",
			Help: "Rows removed by retention sweeps (posts_success/posts_failed/counters).",
		},
		[]string{"kind"},
	)

	cacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_requests_total",
			Help: "Cache lookups by entity and result (hit/miss).",
		},
		[]string{"entity", "result"},
	)
)

// MustRegister registers collectors with the default registry (idempotent).
func MustRegister() {
	once.Do(func() {
		prometheus.MustRegister(
			webhookEvents, forwardsTotal, forwardLatencyMs,
			quotaBlocks, pruneDeleted, cacheRequests,
		)
	})
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// -------- Dispatch helpers --------

func IncWebhookEvent(result string) {
	webhookEvents.WithLabelValues(norm(result)).Inc()
}

func IncForward(outcome, contentType string) {
	forwardsTotal.WithLabelValues(norm(outcome), norm(contentType)).Inc()
}

func ObserveForwardLatency(contentType string, latencyMs int64, success bool) {
	s := "false"
	if success {
		s = "true"
	}
	forwardLatencyMs.WithLabelValues(norm(contentType), s).Observe(float64(latencyMs))
}

func IncQuotaBlock() { quotaBlocks.Inc() }

// -------- Retention helpers --------

func AddPruned(kind string, n int64) {
	if n > 0 {
		pruneDeleted.WithLabelValues(norm(kind)).Add(float64(n))
	}
}

// -------- Cache helpers --------

func IncCacheRequest(entity, result string) {
	cacheRequests.WithLabelValues(norm(entity), norm(result)).Inc()
}
