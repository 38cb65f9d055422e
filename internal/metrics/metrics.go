// Package metrics exposes reconciliation counters for Prometheus
// scraping.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Set struct {
	MutationsReplayed    prometheus.Counter
	ReconciliationErrors prometheus.Counter
	Drains               prometheus.Counter
	Stalls               prometheus.Counter
	QueueDepth           prometheus.Gauge
}

func New(reg prometheus.Registerer) *Set {
	s := &Set{
		MutationsReplayed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pos_sync_mutations_replayed_total",
			Help: "Queued mutations confirmed by the remote store.",
		}),
		ReconciliationErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pos_sync_reconciliation_errors_total",
			Help: "Mutations dropped after a permanent remote rejection.",
		}),
		Drains: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pos_sync_drains_total",
			Help: "Drain passes started by the reconciler.",
		}),
		Stalls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pos_sync_stalls_total",
			Help: "Drain passes stopped by a transient remote failure.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pos_sync_queue_depth",
			Help: "Mutations currently awaiting remote confirmation.",
		}),
	}
	if reg != nil {
		reg.MustRegister(s.MutationsReplayed, s.ReconciliationErrors, s.Drains, s.Stalls, s.QueueDepth)
	}
	return s
}
