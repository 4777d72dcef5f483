// Package metrics exposes the bridge's Prometheus instrumentation: counters
// and gauges tracking deposit and redemption lifecycle events, registered
// against a caller-supplied prometheus.Registerer so the embedding process
// controls where (or whether) they're served.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "bridge"

// Registry holds every metric the bridge emits. The zero value is not
// usable; construct one with New.
type Registry struct {
	DepositsRegistered  prometheus.Counter
	DepositsConfirmed   prometheus.Counter
	DepositsSwept       prometheus.Counter
	DepositsFailed      prometheus.Counter
	RedemptionsRequested prometheus.Counter
	RedemptionsCompleted prometheus.Counter
	RedemptionsFailed    prometheus.Counter
	NullifiersRejected   prometheus.Counter

	PendingDeposits    prometheus.Gauge
	PendingRedemptions prometheus.Gauge

	TickDuration *prometheus.HistogramVec
}

// New builds a Registry and registers every metric against reg. Passing
// prometheus.NewRegistry() keeps the bridge's metrics isolated from the
// global default registry; passing prometheus.DefaultRegisterer merges them
// into the process-wide /metrics endpoint.
func New(reg prometheus.Registerer) *Registry {
	r := &Registry{
		DepositsRegistered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "deposit",
			Name:      "registered_total",
			Help:      "Deposits registered with the engine.",
		}),
		DepositsConfirmed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "deposit",
			Name:      "confirmed_total",
			Help:      "Deposits that reached the required confirmation depth.",
		}),
		DepositsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "deposit",
			Name:      "swept_total",
			Help:      "Deposits swept into the custodial pool.",
		}),
		DepositsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "deposit",
			Name:      "failed_total",
			Help:      "Deposits that exhausted their retry budget.",
		}),
		RedemptionsRequested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "redemption",
			Name:      "requested_total",
			Help:      "Redemption requests accepted by the engine.",
		}),
		RedemptionsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "redemption",
			Name:      "completed_total",
			Help:      "Redemptions whose payout transaction confirmed.",
		}),
		RedemptionsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "redemption",
			Name:      "failed_total",
			Help:      "Redemptions that failed to broadcast or confirm.",
		}),
		NullifiersRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "nullifier",
			Name:      "rejected_total",
			Help:      "Redemption requests rejected for reusing a spent nullifier.",
		}),
		PendingDeposits: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "deposit",
			Name:      "pending",
			Help:      "Deposits currently awaiting confirmation or sweep.",
		}),
		PendingRedemptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "redemption",
			Name:      "pending",
			Help:      "Redemption requests awaiting payout confirmation.",
		}),
		TickDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Duration of each driver loop stage, by stage name.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
	}

	reg.MustRegister(
		r.DepositsRegistered,
		r.DepositsConfirmed,
		r.DepositsSwept,
		r.DepositsFailed,
		r.RedemptionsRequested,
		r.RedemptionsCompleted,
		r.RedemptionsFailed,
		r.NullifiersRejected,
		r.PendingDeposits,
		r.PendingRedemptions,
		r.TickDuration,
	)
	return r
}

// Noop is a Registry whose metrics are registered only against a fresh,
// private prometheus.Registry that nothing serves, safe for use when the
// embedding process hasn't wired up a /metrics endpoint.
func Noop() *Registry {
	return New(prometheus.NewRegistry())
}
