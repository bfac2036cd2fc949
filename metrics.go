package esiasign

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsRecorder receives one observation per Sign call.
type MetricsRecorder interface {
	// RecordSign records a Sign outcome. result is "success" or an
	// ErrorCode name such as "key_access".
	RecordSign(algorithm, provider, result string, elapsed time.Duration)
}

// NoopMetricsRecorder discards observations. It is the default.
type NoopMetricsRecorder struct{}

// RecordSign is a no-op.
func (NoopMetricsRecorder) RecordSign(string, string, string, time.Duration) {}

// PrometheusMetricsRecorder exports signing counters and latencies.
type PrometheusMetricsRecorder struct {
	signTotal    *prometheus.CounterVec
	signDuration *prometheus.HistogramVec
}

// NewPrometheusMetricsRecorder registers the recorder with the default
// Prometheus registry.
func NewPrometheusMetricsRecorder() *PrometheusMetricsRecorder {
	return NewPrometheusMetricsRecorderWithRegistry(prometheus.DefaultRegisterer)
}

// NewPrometheusMetricsRecorderWithRegistry registers the recorder with reg.
// It panics if the collectors are already registered there.
func NewPrometheusMetricsRecorderWithRegistry(reg prometheus.Registerer) *PrometheusMetricsRecorder {
	signTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "esiasign_sign_total",
		Help: "Total Sign calls by algorithm, provider and result",
	}, []string{"algorithm", "provider", "result"})

	signDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "esiasign_sign_duration_seconds",
		Help:    "Sign call latency, including key recovery",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"algorithm", "provider"})

	reg.MustRegister(signTotal, signDuration)

	return &PrometheusMetricsRecorder{
		signTotal:    signTotal,
		signDuration: signDuration,
	}
}

// RecordSign increments the counter and observes the latency.
func (p *PrometheusMetricsRecorder) RecordSign(algorithm, provider, result string, elapsed time.Duration) {
	p.signTotal.WithLabelValues(algorithm, provider, result).Inc()
	p.signDuration.WithLabelValues(algorithm, provider).Observe(elapsed.Seconds())
}
