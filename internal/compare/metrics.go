package compare

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "gostt_compare"

// Metrics holds the Prometheus collectors updated by the engine.
type Metrics struct {
	transcriptions *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	audioSeconds   *prometheus.CounterVec
	available      *prometheus.GaugeVec
}

// NewMetrics creates the engine collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transcriptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "transcriptions_total",
			Help:      "Transcriptions run, by model and outcome.",
		}, []string{"model", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "transcription_duration_seconds",
			Help:      "Wall time spent in model inference.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"model"}),
		audioSeconds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "audio_seconds_total",
			Help:      "Seconds of audio submitted to each model.",
		}, []string{"model"}),
		available: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "model_available",
			Help:      "1 if the model loaded successfully, 0 otherwise.",
		}, []string{"model"}),
	}
	if reg != nil {
		reg.MustRegister(m.transcriptions, m.duration, m.audioSeconds, m.available)
	}
	return m
}

func (m *Metrics) observe(modelID string, elapsed time.Duration, audioSeconds float64, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.transcriptions.WithLabelValues(modelID, outcome).Inc()
	m.duration.WithLabelValues(modelID).Observe(elapsed.Seconds())
	m.audioSeconds.WithLabelValues(modelID).Add(audioSeconds)
}

func (m *Metrics) setAvailable(modelID string, ok bool) {
	v := 0.0
	if ok {
		v = 1
	}
	m.available.WithLabelValues(modelID).Set(v)
}
