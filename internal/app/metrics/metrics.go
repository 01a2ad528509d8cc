package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the marketplace-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "marketplace_layer",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marketplace_layer",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "marketplace_layer",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marketplace_layer",
			Subsystem: "market",
			Name:      "operations_total",
			Help:      "Total number of marketplace operations.",
		},
		[]string{"operation", "status"},
	)

	settledVolume = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "marketplace_layer",
			Subsystem: "market",
			Name:      "settled_volume_units",
			Help:      "Total value settled through buys and ask acceptances.",
		},
	)

	royaltyPaid = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "marketplace_layer",
			Subsystem: "market",
			Name:      "royalty_paid_units",
			Help:      "Total royalty value paid to original vendors.",
		},
	)

	openEscrow = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "marketplace_layer",
			Subsystem: "market",
			Name:      "open_escrow_units",
			Help:      "Value currently escrowed across open asks.",
		},
	)

	escrowViolations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "marketplace_layer",
			Subsystem: "market",
			Name:      "escrow_violations_total",
			Help:      "Escrow audit findings where escrow != ask price.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		operations,
		settledVolume,
		royaltyPaid,
		openEscrow,
		escrowViolations,
	)
}

// Handler exposes the registry over HTTP.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// IncrementInFlight tracks an HTTP request entering the stack.
func IncrementInFlight() { httpInFlight.Inc() }

// DecrementInFlight tracks an HTTP request leaving the stack.
func DecrementInFlight() { httpInFlight.Dec() }

// RecordHTTPRequest records one handled HTTP request.
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequests.WithLabelValues(method, path, status).Inc()
	httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordOperation records a marketplace operation outcome.
func RecordOperation(operation string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	operations.WithLabelValues(operation, status).Inc()
}

// RecordSettlement records value settled and royalty paid by one operation.
func RecordSettlement(total, royalty uint64) {
	settledVolume.Add(float64(total))
	royaltyPaid.Add(float64(royalty))
}

// SetOpenEscrow updates the open escrow gauge.
func SetOpenEscrow(total uint64) {
	openEscrow.Set(float64(total))
}

// RecordEscrowViolation counts an audit finding.
func RecordEscrowViolation() {
	escrowViolations.Inc()
}
