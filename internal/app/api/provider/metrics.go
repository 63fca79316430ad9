package provider

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transcriptionAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicepipe_transcription_attempts_total",
			Help: "Transcription attempts by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)

	transcriptionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voicepipe_transcription_duration_seconds",
			Help:    "Wall-clock transcription latency by provider.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 12),
		},
		[]string{"provider"},
	)

	transcriptionRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicepipe_transcription_retries_total",
			Help: "Retry attempts after transient provider failures.",
		},
		[]string{"provider"},
	)
)

func recordAttempt(provider, outcome string, elapsed time.Duration) {
	transcriptionAttempts.WithLabelValues(provider, outcome).Inc()
	transcriptionDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}

func recordRetry(provider string) {
	transcriptionRetries.WithLabelValues(provider).Inc()
}
