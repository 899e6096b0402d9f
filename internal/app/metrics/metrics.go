// Package metrics exposes Prometheus collectors for the instruction surface.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	instructionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "solji",
			Subsystem: "program",
			Name:      "instructions_total",
			Help:      "Total number of instructions executed.",
		},
		[]string{"instruction", "status"},
	)

	instructionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "solji",
			Subsystem: "program",
			Name:      "instruction_duration_seconds",
			Help:      "Duration of instruction execution.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12), // 100µs to ~400ms
		},
		[]string{"instruction"},
	)

	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "solji",
			Subsystem: "program",
			Name:      "events_total",
			Help:      "Total number of program events emitted.",
		},
		[]string{"event"},
	)
)

func init() {
	Registry.MustRegister(instructionsTotal, instructionDuration, eventsTotal)
}

// ObserveInstruction records one instruction execution.
func ObserveInstruction(instruction string, err error, elapsed time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	instructionsTotal.WithLabelValues(instruction, status).Inc()
	instructionDuration.WithLabelValues(instruction).Observe(elapsed.Seconds())
}

// IncEvent records one emitted event.
func IncEvent(event string) {
	eventsTotal.WithLabelValues(event).Inc()
}

// Handler serves the registry over HTTP.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
