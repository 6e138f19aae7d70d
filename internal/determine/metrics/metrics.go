package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the determination module.
type Metrics struct {
	// Master data resolution latencies by source
	ResolveLatency *prometheus.HistogramVec

	// Determination outcomes by tenant and outcome
	Outcomes *prometheus.CounterVec

	// Overall evaluation latency including resolution
	EvaluateLatency prometheus.Histogram

	// Idempotent replays served from the decision store
	IdempotentReplays prometheus.Counter

	// Claim contention events (a concurrent evaluation held the key)
	ClaimConflicts prometheus.Counter
}

// New creates a new Metrics instance with all determination metrics registered.
func New() *Metrics {
	return &Metrics{
		ResolveLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "licenseiq_determine_resolve_duration_seconds",
			Help:    "Duration of master data resolution by source",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"source"}), // source: "party", "product"

		Outcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "licenseiq_determine_outcomes_total",
			Help: "Total determination outcomes by tenant and outcome",
		}, []string{"tenant", "outcome"}),

		EvaluateLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "licenseiq_determine_evaluate_duration_seconds",
			Help:    "Duration of full order evaluation including master data resolution",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),

		IdempotentReplays: promauto.NewCounter(prometheus.CounterOpts{
			Name: "licenseiq_determine_idempotent_replays_total",
			Help: "Total evaluations answered from a prior decision via idempotency key",
		}),

		ClaimConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "licenseiq_determine_claim_conflicts_total",
			Help: "Total evaluations that found the idempotency claim already held",
		}),
	}
}

// ObserveResolveLatency records the duration of one master data lookup.
func (m *Metrics) ObserveResolveLatency(source string, d time.Duration) {
	if m != nil {
		m.ResolveLatency.WithLabelValues(source).Observe(d.Seconds())
	}
}

// IncrementOutcome records an order-level outcome.
func (m *Metrics) IncrementOutcome(tenant, outcome string) {
	if m != nil {
		m.Outcomes.WithLabelValues(tenant, outcome).Inc()
	}
}

// ObserveEvaluateLatency records the total evaluation duration.
func (m *Metrics) ObserveEvaluateLatency(d time.Duration) {
	if m != nil {
		m.EvaluateLatency.Observe(d.Seconds())
	}
}

// IncrementIdempotentReplay records a replayed decision.
func (m *Metrics) IncrementIdempotentReplay() {
	if m != nil {
		m.IdempotentReplays.Inc()
	}
}

// IncrementClaimConflict records contention on an idempotency claim.
func (m *Metrics) IncrementClaimConflict() {
	if m != nil {
		m.ClaimConflicts.Inc()
	}
}
