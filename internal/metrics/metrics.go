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

	launches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "winevisor",
			Subsystem: "process",
			Name:      "launches_total",
			Help:      "Number of launch attempts by outcome.",
		}, []string{"outcome"},
	)
	exits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "winevisor",
			Subsystem: "process",
			Name:      "exits_total",
			Help:      "Number of terminal transitions by final state.",
		}, []string{"state"},
	)
	signals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "winevisor",
			Subsystem: "process",
			Name:      "signals_total",
			Help:      "Number of control signals delivered by operation.",
		}, []string{"op"},
	)
	tracked = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "winevisor",
			Subsystem: "process",
			Name:      "tracked",
			Help:      "Number of non-terminal processes currently tracked.",
		},
	)
	memoryRSS = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "winevisor",
			Subsystem: "process",
			Name:      "memory_rss_bytes",
			Help:      "Resident set size per tracked pid.",
		}, []string{"pid"},
	)
	cpuPercent = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "winevisor",
			Subsystem: "process",
			Name:      "cpu_percent",
			Help:      "CPU usage percentage per tracked pid.",
		}, []string{"pid"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{launches, exits, signals, tracked, memoryRSS, cpuPercent}
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
// The caller is responsible for starting an HTTP server and wiring the route.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func ObserveLaunch(ok bool) {
	if regOK.Load() {
		outcome := "ok"
		if !ok {
			outcome = "failed"
		}
		launches.WithLabelValues(outcome).Inc()
	}
}

func ObserveExit(state string) {
	if regOK.Load() {
		exits.WithLabelValues(state).Inc()
	}
}

func IncSignal(op string) {
	if regOK.Load() {
		signals.WithLabelValues(op).Inc()
	}
}

func SetTracked(n int) {
	if regOK.Load() {
		tracked.Set(float64(n))
	}
}

func SetProcessUsage(pid int, rss uint64, cpu float64) {
	if regOK.Load() {
		l := strconv.Itoa(pid)
		memoryRSS.WithLabelValues(l).Set(float64(rss))
		cpuPercent.WithLabelValues(l).Set(cpu)
	}
}

func DeleteProcessUsage(pid int) {
	if regOK.Load() {
		l := strconv.Itoa(pid)
		memoryRSS.DeleteLabelValues(l)
		cpuPercent.DeleteLabelValues(l)
	}
}
