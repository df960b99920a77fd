package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics with bounded cardinality: message kinds and step directions are
// small fixed sets, never per-duel labels.
var (
	messagesIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "duel_messages_ingested_total",
		Help: "Messages appended to duel logs",
	}, []string{"kind"}) // "critical" or "non_critical"

	stepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "duel_steps_total",
		Help: "Cursor steps taken over duel logs",
	}, []string{"direction"}) // "forward" or "backward"

	stepFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "duel_step_failures_total",
		Help: "Steps aborted by a malformed or inconsistent message",
	})

	duelsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "duel_observed_count",
		Help: "Duels currently under observation",
	})

	feedConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "feed_connections_active",
		Help: "Currently active simulator feed connections",
	})
)

func recordIngest(critical bool) {
	if critical {
		messagesIngested.WithLabelValues("critical").Inc()
	} else {
		messagesIngested.WithLabelValues("non_critical").Inc()
	}
}
