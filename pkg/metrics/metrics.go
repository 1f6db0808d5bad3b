// Package metrics holds the process-wide Prometheus collectors exposed at
// GET /metrics. Counter/gauge shapes follow the teacher's pkg/metrics
// style (one file per concern, package-level vars registered once) but
// the concerns themselves are this system's: classification outcomes,
// tarpit streaming, escalation throughput, model/reputation latency, and
// alert dispatch — replacing the teacher's anomaly-ladder and rate-limit
// counters, which have no equivalent in this domain.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	EdgeDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "protector",
			Name:      "edge_decisions_total",
			Help:      "EdgeClassifier decisions, labeled by route (proxy|reject|tarpit).",
		},
		[]string{"route"},
	)

	TarpitHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "protector",
			Name:      "tarpit_hits_total",
			Help:      "Requests served by TarpitService, labeled by outcome (streamed|hop_ceiling_blocked).",
		},
		[]string{"outcome"},
	)

	EscalationQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "protector",
			Name:      "escalation_queue_depth",
			Help:      "Current number of jobs buffered in the EscalationEngine queue.",
		},
	)

	EscalationDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "protector",
			Name:      "escalation_dropped_total",
			Help:      "Escalation jobs dropped because the worker queue was full.",
		},
	)

	EscalationActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "protector",
			Name:      "escalation_actions_total",
			Help:      "ActionEvents submitted by EscalationEngine after crossing the combined-score threshold.",
		},
		[]string{"reason"},
	)

	ModelClassifyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "protector",
			Name:      "model_classify_duration_seconds",
			Help:      "ModelAdapter.Classify latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	ReputationLookupDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "protector",
			Name:      "reputation_lookup_duration_seconds",
			Help:      "Reputation client lookup latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	AlertsDispatchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "protector",
			Name:      "alerts_dispatched_total",
			Help:      "Alert notifications dispatched, labeled by sink kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	BlocklistSizeGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "protector",
			Name:      "blocklist_active_entries",
			Help:      "Count of active blocklist entries, when set by a caller; the gateway itself does not update it.",
		},
	)

	CircuitBreakerStateTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "protector",
			Name:      "http_breaker_state_transitions_total",
			Help:      "Per-host circuit breaker state transitions, labeled by host and new state.",
		},
		[]string{"host", "state"},
	)

	registerOnce sync.Once
)

// Register registers every collector against reg exactly once, even if
// called from multiple goroutines or multiple test setups.
func Register(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		reg.MustRegister(
			EdgeDecisionsTotal,
			TarpitHitsTotal,
			EscalationQueueDepth,
			EscalationDroppedTotal,
			EscalationActionsTotal,
			ModelClassifyDuration,
			ReputationLookupDuration,
			AlertsDispatchedTotal,
			BlocklistSizeGauge,
			CircuitBreakerStateTotal,
		)
	})
}
