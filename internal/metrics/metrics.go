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

	toggles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rackstat",
			Subsystem: "store",
			Name:      "toggles_total",
			Help:      "Number of status toggles, labeled by resulting status.",
		}, []string{"status"},
	)
	bulkUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rackstat",
			Subsystem: "store",
			Name:      "bulk_updates_total",
			Help:      "Number of bulk status updates, labeled by target status.",
		}, []string{"status"},
	)
	noteUpdates = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "rackstat",
			Subsystem: "store",
			Name:      "note_updates_total",
			Help:      "Number of note updates.",
		},
	)
	storeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rackstat",
			Subsystem: "store",
			Name:      "errors_total",
			Help:      "Number of failed store mutations per operation.",
		}, []string{"op"},
	)
	exports = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rackstat",
			Subsystem: "export",
			Name:      "exports_total",
			Help:      "Number of export downloads per format.",
		}, []string{"format"},
	)
	machines = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "rackstat",
			Name:      "machines",
			Help:      "Machines per status, refreshed on stats queries.",
		}, []string{"status"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{toggles, bulkUpdates, noteUpdates, storeErrors, exports, machines}
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

// Handler returns an http.Handler serving Prometheus metrics for the
// DefaultGatherer. The caller wires the route.
func Handler() http.Handler { return promhttp.Handler() }

// Helpers below no-op until Register has been called.

func IncToggle(status string) {
	if regOK.Load() {
		toggles.WithLabelValues(status).Inc()
	}
}

func IncBulkUpdate(status string) {
	if regOK.Load() {
		bulkUpdates.WithLabelValues(status).Inc()
	}
}

func IncNoteUpdate() {
	if regOK.Load() {
		noteUpdates.Inc()
	}
}

func IncStoreError(op string) {
	if regOK.Load() {
		storeErrors.WithLabelValues(op).Inc()
	}
}

func IncExport(format string) {
	if regOK.Load() {
		exports.WithLabelValues(format).Inc()
	}
}

func SetMachineCounts(ready, pending int) {
	if regOK.Load() {
		machines.WithLabelValues("ready").Set(float64(ready))
		machines.WithLabelValues("pending").Set(float64(pending))
	}
}
