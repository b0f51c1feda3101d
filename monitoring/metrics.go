package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	purchasesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchases_total",
			Help: "Purchase pipeline outcomes per kind",
		},
		[]string{"kind", "status"},
	)

	pipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "purchase_pipeline_duration_seconds",
			Help:    "End to end purchase pipeline duration",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"kind"},
	)

	lockFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "purchase_lock_failures_total",
			Help: "Lock acquisitions lost to a concurrent worker",
		},
	)

	reservationRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_reservation_retries_total",
			Help: "Ledger reservation attempts beyond the first",
		},
	)

	gatewayLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gateway_call_duration_seconds",
			Help:    "Payment gateway step duration",
			Buckets: prometheus.DefBuckets,
		},
	)

	resultsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchase_results_published_total",
			Help: "Purchase results published to the result sink",
		},
		[]string{"sink", "status"},
	)
)

// TrackPurchase records one pipeline outcome. status is ok, err or failed.
func TrackPurchase(kind, status string) {
	purchasesTotal.WithLabelValues(kind, status).Inc()
}

// TrackPipeline records the pipeline duration for one request.
func TrackPipeline(kind string, duration time.Duration) {
	pipelineDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// TrackLockFailure records a lock acquisition lost to a concurrent worker.
func TrackLockFailure() {
	lockFailures.Inc()
}

// TrackReservationRetry records a ledger reservation re-attempt.
func TrackReservationRetry() {
	reservationRetries.Inc()
}

// TrackGatewayCall records the duration of the gateway step.
func TrackGatewayCall(duration time.Duration) {
	gatewayLatency.Observe(duration.Seconds())
}

// TrackResultPublished records a result delivered to a sink.
func TrackResultPublished(sink, status string) {
	resultsPublished.WithLabelValues(sink, status).Inc()
}
