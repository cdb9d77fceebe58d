// Package metrics provides Prometheus metrics for the vision-api service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "jan"
	subsystem = "vision_api"
)

var (
	// ActivePipelines tracks pipelines currently decoding a source.
	ActivePipelines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "active_pipelines",
			Help:      "Number of pipelines in the running state",
		},
	)

	// RegisteredSessions tracks sessions held by the registry.
	RegisteredSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "registered_sessions",
			Help:      "Number of sessions known to the registry",
		},
	)

	// PipelineTransitions counts lifecycle state changes.
	PipelineTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "pipeline_transitions_total",
			Help:      "Total number of pipeline state transitions",
		},
		[]string{"from_state", "to_state"},
	)

	// FramesProcessed counts decoded frames per device.
	FramesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "frames_processed_total",
			Help:      "Total number of frames run through a pipeline",
		},
		[]string{"device_id"},
	)

	// CrossingEvents counts emitted crossing events.
	CrossingEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "crossing_events_total",
			Help:      "Total number of line crossing events",
		},
		[]string{"device_id", "direction"},
	)

	// SinkFailures counts transient failures of external sinks.
	SinkFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sink_failures_total",
			Help:      "Total number of failed frame, event, status or tracker calls",
		},
		[]string{"sink"},
	)

	// TrackerLatency tracks detector/tracker round trips.
	TrackerLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tracker_update_duration_seconds",
			Help:      "Duration of detector/tracker update calls",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	// OpenTracks tracks unresolved track histories across pipelines.
	OpenTracks = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "open_tracks",
			Help:      "Tracks with retained history that have not crossed a line",
		},
		[]string{"device_id"},
	)

	// StopOverruns counts stops that exceeded the bounded wait.
	StopOverruns = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "pipeline_stop_overruns_total",
			Help:      "Total number of stops where the decode loop missed the deadline",
		},
	)

	// RequestsTotal counts HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// RequestDuration tracks HTTP latency.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"method", "endpoint"},
	)
)

// RecordTransition records a pipeline state change.
func RecordTransition(from, to string) {
	PipelineTransitions.WithLabelValues(from, to).Inc()
}

// RecordFrame records one processed frame.
func RecordFrame(deviceID string) {
	FramesProcessed.WithLabelValues(deviceID).Inc()
}

// RecordCrossing records one emitted crossing event.
func RecordCrossing(deviceID, direction string) {
	CrossingEvents.WithLabelValues(deviceID, direction).Inc()
}

// RecordSinkFailure records a failed sink call.
func RecordSinkFailure(sink string) {
	SinkFailures.WithLabelValues(sink).Inc()
}

// RecordRequest records an HTTP request.
func RecordRequest(method, endpoint, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	RequestDuration.WithLabelValues(method, endpoint).Observe(durationSec)
}
