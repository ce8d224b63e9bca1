package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts texts passed through request redaction
	RequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "redactor_requests_total",
		Help: "Total number of request texts processed",
	})

	// SecretsDetectedTotal counts detected secrets by pattern
	SecretsDetectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "redactor_secrets_detected_total",
		Help: "Total number of secrets detected",
	}, []string{"pattern"})

	// SecretsRedactedTotal counts secrets replaced with placeholders
	SecretsRedactedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "redactor_secrets_redacted_total",
		Help: "Total number of secrets replaced with placeholders",
	})

	// PlaceholdersRestoredTotal counts mapping entries applied to responses
	PlaceholdersRestoredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "redactor_placeholders_restored_total",
		Help: "Total number of placeholders restored to secrets in responses",
	})

	// ErrorsTotal counts internal failures absorbed or surfaced by the middleware
	ErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "redactor_errors_total",
		Help: "Total number of processing failures",
	})

	// SkippedOverLengthTotal counts inputs skipped for exceeding the length cap
	SkippedOverLengthTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "redactor_skipped_over_length_total",
		Help: "Total number of inputs skipped because they exceeded the length cap",
	})

	// ProcessingDuration tracks processing latency by direction
	ProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "redactor_processing_duration_seconds",
		Help:    "Processing duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"direction"}) // "request", "response" or "stream"

	// StreamingChunksTotal counts restored streaming chunks
	StreamingChunksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "redactor_streaming_chunks_total",
		Help: "Total number of streaming chunks processed",
	})

	// SessionCount tracks the number of live sessions in the store
	SessionCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "redactor_session_count",
		Help: "Current number of sessions with stored mappings",
	})
)

// RecordSecretDetected records a detected secret
func RecordSecretDetected(patternKey string) {
	SecretsDetectedTotal.WithLabelValues(patternKey).Inc()
}

// RecordDuration records processing duration for one direction
func RecordDuration(direction string, seconds float64) {
	ProcessingDuration.WithLabelValues(direction).Observe(seconds)
}
