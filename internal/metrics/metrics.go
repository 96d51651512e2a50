package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels successful operations.
	OutcomeSuccess = "success"
	// OutcomeError labels failed operations (validation, storage or dependency issues).
	OutcomeError = "error"
)

var (
	predictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "learnsense",
			Name:      "predictions_total",
			Help:      "Total number of predictions handled, partitioned by routed action and outcome.",
		},
		[]string{"action", "outcome"},
	)

	predictionDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "learnsense",
			Name:      "prediction_seconds",
			Help:      "Prediction latency in seconds.",
			Buckets:   []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)

	consentRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "learnsense",
			Name:      "consent_rejections_total",
			Help:      "Predictions refused because consent was absent or revoked.",
		},
	)

	activeLearningCasesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "learnsense",
			Name:      "active_learning_cases_total",
			Help:      "Cases queued for human correction, partitioned by reason.",
		},
		[]string{"reason"},
	)

	realtimePointsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "learnsense",
			Name:      "realtime_points_total",
			Help:      "Real-time data points accepted by the collector, partitioned by signal type.",
		},
		[]string{"type"},
	)

	realtimeFlushesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "learnsense",
			Name:      "realtime_flushes_total",
			Help:      "Buffer flushes, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	realtimeFlushedPoints = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "learnsense",
			Name:      "realtime_flushed_points_total",
			Help:      "Data points durably written by flushes.",
		},
	)

	realtimeBufferDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "learnsense",
			Name:      "realtime_buffer_depth",
			Help:      "Data points currently buffered in memory.",
		},
	)
)

// Register attaches learnsense collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		predictionsTotal,
		predictionDurationSeconds,
		consentRejectionsTotal,
		activeLearningCasesTotal,
		realtimePointsTotal,
		realtimeFlushesTotal,
		realtimeFlushedPoints,
		realtimeBufferDepth,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObservePrediction records a prediction duration, routed action and outcome label.
func ObservePrediction(duration time.Duration, action, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	if action == "" {
		action = "none"
	}
	predictionsTotal.WithLabelValues(action, label).Inc()
	if duration < 0 {
		duration = 0
	}
	predictionDurationSeconds.Observe(duration.Seconds())
}

// IncConsentRejection counts a consent refusal.
func IncConsentRejection() {
	consentRejectionsTotal.Inc()
}

// IncActiveLearningCase counts a queued case.
func IncActiveLearningCase(reason string) {
	activeLearningCasesTotal.WithLabelValues(reason).Inc()
}

// IncRealtimePoint counts an accepted data point.
func IncRealtimePoint(signalType string) {
	realtimePointsTotal.WithLabelValues(signalType).Inc()
}

// ObserveFlush records a flush outcome and the number of points written.
func ObserveFlush(points int, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
		realtimeFlushedPoints.Add(float64(points))
	}
	realtimeFlushesTotal.WithLabelValues(label).Inc()
}

// SetBufferDepth publishes the collector's current buffer length.
func SetBufferDepth(n int) {
	realtimeBufferDepth.Set(float64(n))
}
