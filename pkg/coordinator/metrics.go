package coordinator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "watchparty"

var (
	participants = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "participants",
		Help:      "Connected participants.",
	})
	events = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_total",
		Help:      "Incoming participant events by type.",
	}, []string{"type"})
	hostChanges = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "host_changes_total",
		Help:      "Accepted host declarations.",
	})
	droppedSignals = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "signals_dropped_total",
		Help:      "Signals with a target that is gone.",
	})
	uploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "uploads_total",
		Help:      "New videos by the way they came and the result.",
	}, []string{"source", "result"})
)
