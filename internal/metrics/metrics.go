package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	childStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "keeprun",
			Subsystem: "child",
			Name:      "starts_total",
			Help:      "Number of successful child launches.",
		}, []string{"name"},
	)
	childExits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "keeprun",
			Subsystem: "child",
			Name:      "exits_total",
			Help:      "Number of child exits, labeled by exit code.",
		}, []string{"name", "code"},
	)
	childStartFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "keeprun",
			Subsystem: "child",
			Name:      "start_failures_total",
			Help:      "Number of failed child spawn attempts.",
		}, []string{"name"},
	)
	childRunning = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "keeprun",
			Subsystem: "child",
			Name:      "running",
			Help:      "1 while the child is running, 0 while waiting to restart.",
		}, []string{"name"},
	)
	runDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "keeprun",
			Subsystem: "child",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of each child run.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 4, 10),
		}, []string{"name"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{childStarts, childExits, childStartFailures, childRunning, runDuration}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the
// DefaultGatherer. The caller wires the route.
func Handler() http.Handler { return promhttp.Handler() }

// Helpers used by the supervisor loop. They no-op before Register.

func IncStart(name string) {
	if regOK.Load() {
		childStarts.WithLabelValues(name).Inc()
	}
}

func IncExit(name string, code int) {
	if regOK.Load() {
		childExits.WithLabelValues(name, strconv.Itoa(code)).Inc()
	}
}

func IncStartFailure(name string) {
	if regOK.Load() {
		childStartFailures.WithLabelValues(name).Inc()
	}
}

func SetRunning(name string, running bool) {
	if regOK.Load() {
		v := 0.0
		if running {
			v = 1.0
		}
		childRunning.WithLabelValues(name).Set(v)
	}
}

func ObserveRunDuration(name string, seconds float64) {
	if regOK.Load() {
		runDuration.WithLabelValues(name).Observe(seconds)
	}
}
