package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// --- Registration hot path ---
	CallsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voxguard",
			Name:      "calls_processed_total",
			Help:      "Count of calls registered, labeled by resulting status.",
		},
		[]string{"status"},
	)

	RegistrationLatencySeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "voxguard",
			Name:      "registration_latency_seconds",
			Help:      "RegisterCall end-to-end latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
	)

	// --- Fraud detection outcomes ---
	AlertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voxguard",
			Name:      "alerts_total",
			Help:      "Count of fraud alerts materialized, labeled by fraud type and severity.",
		},
		[]string{"fraud_type", "severity"},
	)

	BlockedCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voxguard",
			Name:      "blocked_calls_total",
			Help:      "Count of calls blocked at the blacklist short-circuit, labeled by gateway ip.",
		},
		[]string{"gateway_ip"},
	)

	PendingAlerts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "voxguard",
			Name:      "pending_alerts",
			Help:      "Current number of alerts awaiting operator acknowledgement.",
		},
	)

	// --- Outbox ---
	OutboxDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "voxguard",
			Name:      "outbox_dropped_total",
			Help:      "Count of routine domain events dropped under outbox back pressure.",
		},
	)

	registerOnce sync.Once
)

// Register registers every detection metric once against reg.
func Register(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		reg.MustRegister(CallsProcessedTotal)
		reg.MustRegister(RegistrationLatencySeconds)
		reg.MustRegister(AlertsTotal)
		reg.MustRegister(BlockedCallsTotal)
		reg.MustRegister(PendingAlerts)
		reg.MustRegister(OutboxDroppedTotal)
	})
}
