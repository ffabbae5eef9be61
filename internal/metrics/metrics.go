package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	probes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "portwatch",
			Subsystem: "target",
			Name:      "probes_total",
			Help:      "Number of port probes by result (up or down).",
		}, []string{"target", "result"},
	)
	probeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "portwatch",
			Subsystem: "target",
			Name:      "probe_errors_total",
			Help:      "Number of probes whose health query failed.",
		}, []string{"target"},
	)
	restarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "portwatch",
			Subsystem: "target",
			Name:      "restarts_total",
			Help:      "Number of restart attempts allowed by the policy.",
		}, []string{"target"},
	)
	suppressions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "portwatch",
			Subsystem: "target",
			Name:      "suppressed_total",
			Help:      "Number of restarts suppressed because the budget was exhausted.",
		}, []string{"target"},
	)
	launchErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "portwatch",
			Subsystem: "target",
			Name:      "launch_errors_total",
			Help:      "Number of start commands that failed to launch.",
		}, []string{"target"},
	)
	up = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "portwatch",
			Subsystem: "target",
			Name:      "up",
			Help:      "Last observed state of the target port (1 = up, 0 = down).",
		}, []string{"target"},
	)
	attemptsInWindow = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "portwatch",
			Subsystem: "target",
			Name:      "restart_attempts_in_window",
			Help:      "Restart attempts currently counted against the sliding window.",
		}, []string{"target"},
	)
	cycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "portwatch",
			Subsystem: "monitor",
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of one probe and recovery cycle.",
			Buckets:   []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60, 120},
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{probes, probeErrors, restarts, suppressions, launchErrors, up, attemptsInWindow, cycleDuration}
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

// Handler serves metrics from the default gatherer.
func Handler() http.Handler { return promhttp.Handler() }

// HandlerFor serves metrics from g.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Helpers below no-op until Register has succeeded.

func ObserveProbe(target string, alive bool) {
	if !regOK.Load() {
		return
	}
	result, v := "down", 0.0
	if alive {
		result, v = "up", 1
	}
	probes.WithLabelValues(target, result).Inc()
	up.WithLabelValues(target).Set(v)
}

func IncProbeError(target string) {
	if regOK.Load() {
		probeErrors.WithLabelValues(target).Inc()
	}
}

func IncRestart(target string) {
	if regOK.Load() {
		restarts.WithLabelValues(target).Inc()
	}
}

func IncSuppressed(target string) {
	if regOK.Load() {
		suppressions.WithLabelValues(target).Inc()
	}
}

func IncLaunchError(target string) {
	if regOK.Load() {
		launchErrors.WithLabelValues(target).Inc()
	}
}

func SetAttemptsInWindow(target string, n int) {
	if regOK.Load() {
		attemptsInWindow.WithLabelValues(target).Set(float64(n))
	}
}

func ObserveCycle(d time.Duration) {
	if regOK.Load() {
		cycleDuration.Observe(d.Seconds())
	}
}
