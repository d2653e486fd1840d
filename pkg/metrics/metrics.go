// Package metrics provides Prometheus metrics for the Nightshade service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScansTotal tracks completed scan tasks by kind and terminal status
	ScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nightshade",
			Subsystem: "scans",
			Name:      "total",
			Help:      "Total number of scan tasks by kind and terminal status",
		},
		[]string{"kind", "status"},
	)

	// ScanDuration tracks scan execution duration in seconds
	ScanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "nightshade",
			Subsystem: "scans",
			Name:      "duration_seconds",
			Help:      "Duration of scan executions in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"kind"},
	)

	// ScansInFlight tracks scans currently being processed
	ScansInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "nightshade",
			Subsystem: "scans",
			Name:      "in_flight",
			Help:      "Number of scans currently being processed",
		},
	)

	// TasksSubmitted tracks tasks accepted by the engine
	TasksSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nightshade",
			Subsystem: "tasks",
			Name:      "submitted_total",
			Help:      "Total number of tasks submitted by kind",
		},
		[]string{"kind"},
	)

	// TasksCancelled tracks cancellation requests that took effect
	TasksCancelled = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "nightshade",
			Subsystem: "tasks",
			Name:      "cancelled_total",
			Help:      "Total number of tasks cancelled",
		},
	)

	// GraphBuildDuration tracks graph assembly duration in seconds
	GraphBuildDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "nightshade",
			Subsystem: "graph",
			Name:      "build_duration_seconds",
			Help:      "Duration of graph builds in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"scope"},
	)

	// GraphNodesReturned tracks node counts per graph build
	GraphNodesReturned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "nightshade",
			Subsystem: "graph",
			Name:      "nodes_returned",
			Help:      "Number of nodes returned per graph build",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500},
		},
	)
)

// RecordScan records a finished scan with its duration
func RecordScan(kind, status string, duration time.Duration) {
	ScansTotal.WithLabelValues(kind, status).Inc()
	ScanDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordGraphBuild records a completed graph build
func RecordGraphBuild(scope string, nodes int, duration time.Duration) {
	GraphBuildDuration.WithLabelValues(scope).Observe(duration.Seconds())
	GraphNodesReturned.Observe(float64(nodes))
}
