// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "v2v_bridge"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Channel lifecycle metrics
	ChannelsActive prometheus.Gauge
	ChannelStarts  *prometheus.CounterVec
	ChannelStops   *prometheus.CounterVec
	HardResets     prometheus.Counter

	// Transcription session metrics
	SessionsTotal   *prometheus.CounterVec
	SessionsFailed  *prometheus.CounterVec
	SessionDuration *prometheus.HistogramVec

	// Segment metrics
	SegmentsPartial    *prometheus.CounterVec
	SegmentsFinal      *prometheus.CounterVec
	SegmentsStabilized *prometheus.CounterVec

	// Audio metrics
	AudioChunksSent    *prometheus.CounterVec
	AudioFramesDropped *prometheus.CounterVec

	// Pipeline metrics
	TranslateLatency  *prometheus.HistogramVec
	TranslateErrors   *prometheus.CounterVec
	SynthesizeLatency *prometheus.HistogramVec
	SynthesizeErrors  *prometheus.CounterVec

	// Kafka publish metrics
	KafkaPublishTotal  *prometheus.CounterVec
	KafkaPublishErrors *prometheus.CounterVec

	// Control API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	latencyBuckets := []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}

	return &Metrics{
		ChannelsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "channels_active",
			Help:      "Number of channels currently transcribing",
		}),
		ChannelStarts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_starts_total",
			Help:      "Total number of channel start operations",
		}, []string{"channel"}),
		ChannelStops: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_stops_total",
			Help:      "Total number of channel stop operations",
		}, []string{"channel"}),
		HardResets: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hard_resets_total",
			Help:      "Total number of call-ended hard resets",
		}),

		SessionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcribe_sessions_total",
			Help:      "Total number of transcription sessions opened",
		}, []string{"channel"}),
		SessionsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcribe_sessions_failed_total",
			Help:      "Total number of transcription sessions ended by error",
		}, []string{"channel"}),
		SessionDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transcribe_session_duration_seconds",
			Help:      "Duration of transcription sessions in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"channel"}),

		SegmentsPartial: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_partial_total",
			Help:      "Total number of partial segments emitted",
		}, []string{"channel"}),
		SegmentsFinal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_final_total",
			Help:      "Total number of final segments emitted",
		}, []string{"channel"}),
		SegmentsStabilized: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_stabilized_total",
			Help:      "Total number of final segments committed early through partial-result stabilization",
		}, []string{"channel"}),

		AudioChunksSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_chunks_sent_total",
			Help:      "Total number of encoded audio chunks pushed to the transport",
		}, []string{"channel"}),
		AudioFramesDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_dropped_total",
			Help:      "Total number of malformed audio frames dropped before encoding",
		}, []string{"channel"}),

		TranslateLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "translate_latency_seconds",
			Help:      "Latency of translation service calls",
			Buckets:   latencyBuckets,
		}, []string{"channel"}),
		TranslateErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "translate_errors_total",
			Help:      "Total number of failed translation service calls",
		}, []string{"channel"}),
		SynthesizeLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "synthesize_latency_seconds",
			Help:      "Latency of speech synthesis service calls",
			Buckets:   latencyBuckets,
		}, []string{"channel"}),
		SynthesizeErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synthesize_errors_total",
			Help:      "Total number of failed speech synthesis calls",
		}, []string{"channel"}),

		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka publish attempts",
		}, []string{"topic", "type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of failed Kafka publishes",
		}, []string{"topic", "type"}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of control API requests",
		}, []string{"method", "code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of control API requests",
			Buckets:   latencyBuckets,
		}, []string{"method"}),
	}
}
