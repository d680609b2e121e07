// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "supreme_memory"

// Metrics holds all Prometheus metrics for the monitor.
type Metrics struct {
	// Capture metrics
	FramesReceived prometheus.Counter
	FramesDropped  prometheus.Counter
	AudioBytes     prometheus.Counter
	InputLevel     prometheus.Gauge

	// VAD metrics
	VADTransitions *prometheus.CounterVec
	VoiceActive    prometheus.Gauge

	// Recorder metrics
	RecordingsStarted   prometheus.Counter
	RecordingsFinalized prometheus.Counter
	RecordingsDiscarded prometheus.Counter
	PartsRotated        prometheus.Counter
	RecordingDuration   prometheus.Histogram
	FileOpErrors        *prometheus.CounterVec

	// Pipeline metrics
	WindowsEnqueued  prometheus.Counter
	WindowsDiscarded *prometheus.CounterVec
	WindowsThrottled prometheus.Counter
	QueueDepth       prometheus.Gauge

	// Transcriber metrics
	TranscriberLatency *prometheus.HistogramVec
	TranscriberErrors  *prometheus.CounterVec
	Transcriptions     *prometheus.CounterVec

	// Event metrics
	EventsDropped *prometheus.CounterVec
	WSClients     prometheus.Gauge

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// Control surface metrics
	GRPCRequests     *prometheus.CounterVec
	GRPCLatency      *prometheus.HistogramVec
	HTTPRequests     *prometheus.CounterVec
	ManualFlushes    *prometheus.CounterVec
	SummariesWritten *prometheus.CounterVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		// Capture metrics
		FramesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Total audio frames delivered by the capture source",
		}),
		FramesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Total audio frames dropped at the capture boundary",
		}),
		AudioBytes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_received_total",
			Help:      "Total audio bytes delivered by the capture source",
		}),
		InputLevel: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "input_level",
			Help:      "RMS level of the most recent frame, normalized to [0, 1]",
		}),

		// VAD metrics
		VADTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vad_transitions_total",
			Help:      "Total VAD edges emitted",
		}, []string{"edge"}),
		VoiceActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "voice_active",
			Help:      "1 while the VAD is in the active state",
		}),

		// Recorder metrics
		RecordingsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recordings_started_total",
			Help:      "Total recording sessions started",
		}),
		RecordingsFinalized: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recordings_finalized_total",
			Help:      "Total recording sessions submitted for transcription",
		}),
		RecordingsDiscarded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recordings_discarded_total",
			Help:      "Total recording sessions discarded below the minimum duration",
		}),
		PartsRotated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parts_rotated_total",
			Help:      "Total part rotations caused by the part size cap",
		}),
		RecordingDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recording_duration_seconds",
			Help:      "Duration of finished recording sessions in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		}),
		FileOpErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "file_op_errors_total",
			Help:      "Total failed file operations",
		}, []string{"op"}),

		// Pipeline metrics
		WindowsEnqueued: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "windows_enqueued_total",
			Help:      "Total windows pushed onto the transcription queue",
		}),
		WindowsDiscarded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "windows_discarded_total",
			Help:      "Total windows or frames discarded before transcription",
		}, []string{"reason"}),
		WindowsThrottled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "windows_throttled_total",
			Help:      "Total windows re-enqueued by the rate throttle",
		}),
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Number of windows waiting for transcription",
		}),

		// Transcriber metrics
		TranscriberLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transcriber_latency_seconds",
			Help:      "Transcriber call latency in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"provider", "source"}),
		TranscriberErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcriber_errors_total",
			Help:      "Total failed transcriber calls",
		}, []string{"provider", "source"}),
		Transcriptions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcriptions_total",
			Help:      "Total non-empty transcripts produced",
		}, []string{"source"}),

		// Event metrics
		EventsDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Total events dropped because a subscriber fell behind",
		}, []string{"subscriber"}),
		WSClients: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Number of connected WebSocket event clients",
		}),

		// Kafka publish metrics
		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),

		// Control surface metrics
		GRPCRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_requests_total",
			Help:      "Total number of gRPC calls by method and status code",
		}, []string{"method", "code"}),
		GRPCLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "grpc_request_duration_seconds",
			Help:      "gRPC call duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of control API requests by route and status",
		}, []string{"route", "status"}),
		ManualFlushes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "manual_flushes_total",
			Help:      "Total number of manual flush requests by outcome",
		}, []string{"outcome"}),
		SummariesWritten: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summaries_total",
			Help:      "Total number of session summaries by outcome",
		}, []string{"outcome"}),
	}
}

// RecordFrame records a frame delivered to the monitor.
func (m *Metrics) RecordFrame(bytes int, level float64) {
	m.FramesReceived.Inc()
	m.AudioBytes.Add(float64(bytes))
	m.InputLevel.Set(level)
}

// RecordFrameDropped records a frame dropped at the capture boundary.
func (m *Metrics) RecordFrameDropped() {
	m.FramesDropped.Inc()
}

// RecordTransition records a VAD edge.
func (m *Metrics) RecordTransition(edge string, active bool) {
	m.VADTransitions.WithLabelValues(edge).Inc()
	if active {
		m.VoiceActive.Set(1)
	} else {
		m.VoiceActive.Set(0)
	}
}

// RecordRecordingStarted records a new recording session.
func (m *Metrics) RecordRecordingStarted() {
	m.RecordingsStarted.Inc()
}

// RecordRecordingEnded records a finished session and whether it was kept.
func (m *Metrics) RecordRecordingEnded(kept bool, durationSeconds float64) {
	m.RecordingDuration.Observe(durationSeconds)
	if kept {
		m.RecordingsFinalized.Inc()
	} else {
		m.RecordingsDiscarded.Inc()
	}
}

// RecordRotation records a part rotation.
func (m *Metrics) RecordRotation() {
	m.PartsRotated.Inc()
}

// RecordFileOpError records a failed file operation.
func (m *Metrics) RecordFileOpError(op string) {
	m.FileOpErrors.WithLabelValues(op).Inc()
}

// RecordWindowEnqueued records a window entering the queue.
func (m *Metrics) RecordWindowEnqueued(depth int) {
	m.WindowsEnqueued.Inc()
	m.QueueDepth.Set(float64(depth))
}

// RecordWindowDiscarded records a discarded frame or window.
func (m *Metrics) RecordWindowDiscarded(reason string) {
	m.WindowsDiscarded.WithLabelValues(reason).Inc()
}

// RecordThrottled records a window pushed back by the throttle.
func (m *Metrics) RecordThrottled() {
	m.WindowsThrottled.Inc()
}

// SetQueueDepth updates the queue depth gauge.
func (m *Metrics) SetQueueDepth(depth int) {
	m.QueueDepth.Set(float64(depth))
}

// RecordTranscription records a transcriber call.
func (m *Metrics) RecordTranscription(provider, source string, err error, text string, latencySeconds float64) {
	m.TranscriberLatency.WithLabelValues(provider, source).Observe(latencySeconds)
	if err != nil {
		m.TranscriberErrors.WithLabelValues(provider, source).Inc()
		return
	}
	if text != "" {
		m.Transcriptions.WithLabelValues(source).Inc()
	}
}

// RecordEventDropped records an event dropped for a slow subscriber.
func (m *Metrics) RecordEventDropped(subscriber string) {
	m.EventsDropped.WithLabelValues(subscriber).Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordGRPCCall records a completed gRPC call.
func (m *Metrics) RecordGRPCCall(method, code string, latencySeconds float64) {
	m.GRPCRequests.WithLabelValues(method, code).Inc()
	m.GRPCLatency.WithLabelValues(method).Observe(latencySeconds)
}

// RecordHTTPRequest records a control API request.
func (m *Metrics) RecordHTTPRequest(route string, status int) {
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// RecordManualFlush records a flush request. outcome is submitted, empty or rejected.
func (m *Metrics) RecordManualFlush(outcome string) {
	m.ManualFlushes.WithLabelValues(outcome).Inc()
}

// RecordSummary records a session summary attempt.
func (m *Metrics) RecordSummary(err error) {
	if err != nil {
		m.SummariesWritten.WithLabelValues("error").Inc()
		return
	}
	m.SummariesWritten.WithLabelValues("ok").Inc()
}
