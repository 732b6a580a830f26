package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	checks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "svcmon",
			Subsystem: "supervisor",
			Name:      "checks_total",
			Help:      "Number of supervision checks by result (healthy, missing, exited, error).",
		}, []string{"result"},
	)
	launches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "svcmon",
			Subsystem: "supervisor",
			Name:      "launches_total",
			Help:      "Number of relaunch attempts by result (success, failure).",
		}, []string{"result"},
	)
	launchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "svcmon",
			Subsystem: "supervisor",
			Name:      "launch_duration_seconds",
			Help:      "Time from launch request until the launch resolved, including any security prompt.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 15, 30, 60, 120},
		},
	)
	dialogClicks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "svcmon",
			Subsystem: "dialog",
			Name:      "clicks_total",
			Help:      "Number of security dialogs dismissed.",
		},
	)
	exits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "svcmon",
			Subsystem: "process",
			Name:      "exits_total",
			Help:      "Observed exits of the managed process by exit category.",
		}, []string{"category"},
	)
	stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "svcmon",
			Subsystem: "supervisor",
			Name:      "state_transitions_total",
			Help:      "Number of supervisor state transitions.",
		}, []string{"from", "to"},
	)
	currentState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "svcmon",
			Subsystem: "supervisor",
			Name:      "current_state",
			Help:      "Current supervisor state (1 = active state, 0 = inactive).",
		}, []string{"state"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{checks, launches, launchDuration, dialogClicks, exits, stateTransitions, currentState}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// If already registered, ignore (allows double Register with default registry)
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

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// HandlerFor serves metrics from a specific gatherer.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func IncCheck(result string) {
	if regOK.Load() {
		checks.WithLabelValues(result).Inc()
	}
}

func IncLaunch(success bool) {
	if regOK.Load() {
		result := "failure"
		if success {
			result = "success"
		}
		launches.WithLabelValues(result).Inc()
	}
}

func ObserveLaunchDuration(seconds float64) {
	if regOK.Load() {
		launchDuration.Observe(seconds)
	}
}

func IncDialogClick() {
	if regOK.Load() {
		dialogClicks.Inc()
	}
}

func IncExit(category string) {
	if regOK.Load() {
		exits.WithLabelValues(category).Inc()
	}
}

// RecordStateTransition counts the transition and flips the current_state gauge.
func RecordStateTransition(from, to string) {
	if !regOK.Load() || from == to {
		return
	}
	stateTransitions.WithLabelValues(from, to).Inc()
	if from != "" {
		currentState.WithLabelValues(from).Set(0)
	}
	currentState.WithLabelValues(to).Set(1)
}
