// Package metrics holds the bridge's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bridge"

var (
	commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "commands_total",
		Help:      "Commands handled, by object type, command and outcome.",
	}, []string{"type", "command", "outcome"})
	commandDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "command_duration_seconds",
		Help:      "Time from queue admission to result, by object type.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14),
	}, []string{"type"})
	launchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "launches_total",
		Help:      "Session launches, by engine and outcome.",
	}, []string{"engine", "outcome"})
	eventCallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "event_callbacks_total",
		Help:      "Event callback runs, by event and outcome.",
	}, []string{"event", "outcome"})
	liveObjects = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "objects_registered",
		Help:      "Objects currently held in the registry.",
	})
)

// Outcome labels.
const (
	OutcomeOK = "ok"
)

// ObserveCommand records one command outcome. An empty kind counts as success.
func ObserveCommand(typ, command, kind string, elapsed time.Duration) {
	if kind == "" {
		kind = OutcomeOK
	}
	commandsTotal.WithLabelValues(typ, command, kind).Inc()
	commandDuration.WithLabelValues(typ).Observe(elapsed.Seconds())
}

// ObserveLaunch records one session launch.
func ObserveLaunch(engine string, ok bool) {
	launchesTotal.WithLabelValues(engine, outcome(ok)).Inc()
}

// ObserveCallback records one event callback run.
func ObserveCallback(event string, ok bool) {
	eventCallbacksTotal.WithLabelValues(event, outcome(ok)).Inc()
}

// SetObjects sets the registered object gauge.
func SetObjects(n int) {
	liveObjects.Set(float64(n))
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func outcome(ok bool) string {
	if ok {
		return OutcomeOK
	}
	return "error"
}
