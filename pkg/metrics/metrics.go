// Package metrics exposes Prometheus counters for the board link pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	samplesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dartlink",
		Subsystem: "ingest",
		Name:      "samples_dropped_total",
		Help:      "Raw samples dropped because the ingest queue was full.",
	})

	samplesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dartlink",
		Subsystem: "ingest",
		Name:      "samples_processed_total",
		Help:      "Raw samples decoded, persisted and published.",
	})

	unknownSegments = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dartlink",
		Subsystem: "ingest",
		Name:      "unknown_segments_total",
		Help:      "Samples whose segment code had no calibration entry.",
	})

	processingErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dartlink",
		Subsystem: "ingest",
		Name:      "processing_errors_total",
		Help:      "Samples whose persistence failed; the worker keeps running.",
	})

	reconnects = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dartlink",
		Subsystem: "supervisor",
		Name:      "reconnects_total",
		Help:      "Reconnect cycles entered after a lost or failed link.",
	})

	handlerFaults = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dartlink",
		Subsystem: "eventbus",
		Name:      "handler_faults_total",
		Help:      "Event handlers that panicked during dispatch.",
	})
)

// RecordSampleDropped increments the queue-overflow drop counter.
func RecordSampleDropped() { samplesDropped.Inc() }

// RecordSampleProcessed increments the processed-sample counter.
func RecordSampleProcessed() { samplesProcessed.Inc() }

// RecordUnknownSegment increments the unknown-segment counter.
func RecordUnknownSegment() { unknownSegments.Inc() }

// RecordProcessingError increments the per-sample processing failure counter.
func RecordProcessingError() { processingErrors.Inc() }

// RecordReconnect increments the reconnect-cycle counter.
func RecordReconnect() { reconnects.Inc() }

// RecordHandlerFault increments the panicked-handler counter.
func RecordHandlerFault() { handlerFaults.Inc() }
