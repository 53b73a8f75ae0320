package datasets

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Noofbiz/qptsynth/field"
	"github.com/Noofbiz/qptsynth/process"
)

// Metrics counts generated samples and failures. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	Samples       *prometheus.CounterVec
	Failures      *prometheus.CounterVec
	BatchDuration prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg when reg is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Samples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qptsynth",
			Name:      "samples_generated_total",
			Help:      "Samples generated, by mode.",
		}, []string{"mode"}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qptsynth",
			Name:      "sample_failures_total",
			Help:      "Samples that failed to generate, by reason.",
		}, []string{"reason"}),
		BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "qptsynth",
			Name:      "batch_duration_seconds",
			Help:      "Wall time to generate one batch.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Samples, m.Failures, m.BatchDuration)
	}
	return m
}

func (m *Metrics) sample(mode Mode) {
	if m == nil {
		return
	}
	m.Samples.WithLabelValues(mode.String()).Inc()
}

func (m *Metrics) failure(err error) {
	if m == nil {
		return
	}
	m.Failures.WithLabelValues(failureReason(err)).Inc()
}

func (m *Metrics) batch(start time.Time) {
	if m == nil {
		return
	}
	m.BatchDuration.Observe(time.Since(start).Seconds())
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, process.ErrDegenerateRetrieval):
		return "degenerate_retrieval"
	case errors.Is(err, process.ErrNormalizationSingularity):
		return "normalization_singularity"
	case errors.Is(err, field.ErrInvalidSpec):
		return "invalid_field_spec"
	}
	return "other"
}
