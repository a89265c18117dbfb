// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "speech_to_data"

// Metrics holds all Prometheus metrics for the pipeline.
type Metrics struct {
	// Audio metrics
	ChunksQueued prometheus.Counter
	BytesQueued  prometheus.Counter
	QueueDepth   prometheus.Gauge
	DrainCycles  prometheus.Counter
	CaptureFlush *prometheus.CounterVec

	// Transcript metrics
	PhrasesStarted prometheus.Counter
	PhraseUpdates  prometheus.Counter

	// STT metrics
	STTLatency *prometheus.HistogramVec
	STTErrors  *prometheus.CounterVec

	// Collector metrics
	LinesReceived    prometheus.Counter
	CollectorNotices *prometheus.CounterVec

	// Analysis metrics
	AnalysesStarted   *prometheus.CounterVec
	AnalysesCompleted *prometheus.CounterVec
	AnalysesFailed    *prometheus.CounterVec
	AnalysisDuration  prometheus.Histogram
	AnalysisInFlight  prometheus.Gauge
	AnalysisFragments prometheus.Counter

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// Live viewer metrics
	LiveClients prometheus.Gauge

	// Control plane metrics
	GRPCRequests *prometheus.CounterVec
	GRPCLatency  *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		ChunksQueued: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_chunks_queued_total",
			Help:      "Total number of audio chunks pushed to the chunk queue",
		}),
		BytesQueued: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_queued_total",
			Help:      "Total audio bytes pushed to the chunk queue",
		}),
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "audio_queue_depth",
			Help:      "Number of chunks waiting in the chunk queue",
		}),
		DrainCycles: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segment_drain_cycles_total",
			Help:      "Total number of segmentation cycles that drained audio",
		}),
		CaptureFlush: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_flush_total",
			Help:      "Total number of capture buffer flushes",
		}, []string{"reason"}),

		PhrasesStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phrases_started_total",
			Help:      "Total number of transcript log elements opened",
		}),
		PhraseUpdates: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phrase_updates_total",
			Help:      "Total number of transcript updates emitted",
		}),

		STTLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stt_latency_seconds",
			Help:      "Speech-to-text latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"provider"}),
		STTErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stt_errors_total",
			Help:      "Total number of STT errors",
		}, []string{"provider"}),

		LinesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collector_lines_total",
			Help:      "Total number of lines seen by the trigger collector",
		}),
		CollectorNotices: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collector_notices_total",
			Help:      "Total number of collector notices by kind",
		}, []string{"kind"}),

		AnalysesStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_started_total",
			Help:      "Total number of analyses dispatched",
		}, []string{"kind"}),
		AnalysesCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_completed_total",
			Help:      "Total number of analyses that received a full response",
		}, []string{"kind"}),
		AnalysesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_failed_total",
			Help:      "Total number of analyses that failed",
		}, []string{"kind"}),
		AnalysisDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Duration of analysis tasks in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		AnalysisInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "analysis_in_flight",
			Help:      "1 while an analysis holds the single-flight gate",
		}),
		AnalysisFragments: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_fragments_total",
			Help:      "Total number of streamed response fragments received",
		}),

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

		LiveClients: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_clients",
			Help:      "Number of connected live transcript websocket clients",
		}),

		GRPCRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_requests_total",
			Help:      "gRPC calls handled, by method and status code",
		}, []string{"method", "code"}),

		GRPCLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "grpc_request_duration_seconds",
			Help:      "gRPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
}

// RecordChunkQueued records a chunk entering the queue.
func (m *Metrics) RecordChunkQueued(bytes int) {
	m.ChunksQueued.Inc()
	m.BytesQueued.Add(float64(bytes))
	m.QueueDepth.Inc()
}

// RecordDrain records a drain of n chunks.
func (m *Metrics) RecordDrain(n int) {
	m.DrainCycles.Inc()
	m.QueueDepth.Sub(float64(n))
}

func (m *Metrics) RecordCaptureFlush(reason string) {
	m.CaptureFlush.WithLabelValues(reason).Inc()
}

// RecordPhraseUpdate records a transcript update; newPhrase is set when a
// new log element was opened.
func (m *Metrics) RecordPhraseUpdate(newPhrase bool) {
	m.PhraseUpdates.Inc()
	if newPhrase {
		m.PhrasesStarted.Inc()
	}
}

// RecordTranscribe records one transcription call.
func (m *Metrics) RecordTranscribe(provider string, err error, latencySeconds float64) {
	m.STTLatency.WithLabelValues(provider).Observe(latencySeconds)
	if err != nil {
		m.STTErrors.WithLabelValues(provider).Inc()
	}
}

func (m *Metrics) RecordLine() {
	m.LinesReceived.Inc()
}

func (m *Metrics) RecordNotice(kind string) {
	m.CollectorNotices.WithLabelValues(kind).Inc()
}

// RecordAnalysisStart records an analysis acquiring the gate.
func (m *Metrics) RecordAnalysisStart(kind string) {
	m.AnalysesStarted.WithLabelValues(kind).Inc()
	m.AnalysisInFlight.Set(1)
}

// RecordAnalysisEnd records an analysis releasing the gate.
func (m *Metrics) RecordAnalysisEnd(kind string, err error, durationSeconds float64) {
	m.AnalysisInFlight.Set(0)
	m.AnalysisDuration.Observe(durationSeconds)
	if err != nil {
		m.AnalysesFailed.WithLabelValues(kind).Inc()
	} else {
		m.AnalysesCompleted.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) RecordFragment() {
	m.AnalysisFragments.Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

func (m *Metrics) RecordLiveClients(n int) {
	m.LiveClients.Set(float64(n))
}

// RecordGRPC records one finished gRPC call.
func (m *Metrics) RecordGRPC(method, code string, latencySeconds float64) {
	m.GRPCRequests.WithLabelValues(method, code).Inc()
	m.GRPCLatency.WithLabelValues(method).Observe(latencySeconds)
}
