package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CertificationMetrics tracks lifecycle transitions and attachment traffic.
type CertificationMetrics struct {
	transitions     *prometheus.CounterVec
	uploadBytes     *prometheus.HistogramVec
	cleanupFailures *prometheus.CounterVec
}

// NewCertificationMetrics registers the certification metrics on reg. A nil
// registerer yields a no-op recorder.
func NewCertificationMetrics(reg prometheus.Registerer) *CertificationMetrics {
	if reg == nil {
		return &CertificationMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "certify_certification_transitions_total",
		Help: "Certification status transitions by source and target status.",
	}, []string{"from", "to"})
	uploadBytes := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "certify_attachment_upload_bytes",
		Help:    "Size of accepted attachment uploads.",
		Buckets: prometheus.ExponentialBuckets(64*1024, 4, 7),
	}, []string{"slot"})
	cleanupFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "certify_attachment_cleanup_failures_total",
		Help: "Attachment blobs that could not be deleted.",
	}, []string{"slot"})
	reg.MustRegister(transitions, uploadBytes, cleanupFailures)
	return &CertificationMetrics{
		transitions:     transitions,
		uploadBytes:     uploadBytes,
		cleanupFailures: cleanupFailures,
	}
}

func (m *CertificationMetrics) IncTransition(from, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	if from == "" {
		from = "none"
	}
	m.transitions.WithLabelValues(from, normalizeLabel(to)).Inc()
}

func (m *CertificationMetrics) ObserveUpload(slot string, size int64) {
	if m == nil || m.uploadBytes == nil {
		return
	}
	m.uploadBytes.WithLabelValues(normalizeLabel(slot)).Observe(float64(size))
}

func (m *CertificationMetrics) IncCleanupFailure(slot string) {
	if m == nil || m.cleanupFailures == nil {
		return
	}
	m.cleanupFailures.WithLabelValues(normalizeLabel(slot)).Inc()
}
