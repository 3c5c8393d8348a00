package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EvidenceMetrics tracks evidence persistence.
//
// Metrics:
//   - compliance_evidence_writes_total: writes by backend and result
//   - compliance_evidence_write_duration_seconds: write latency by backend
//   - compliance_evidence_dropped_total: records discarded by the async recorder
//   - compliance_evidence_pruned_total: records removed by retention
type EvidenceMetrics struct {
	writesTotal   *prometheus.CounterVec
	writeDuration *prometheus.HistogramVec
	droppedTotal  prometheus.Counter
	prunedTotal   prometheus.Counter
}

// NewEvidenceMetrics creates and registers evidence metrics.
func NewEvidenceMetrics(namespace string, buckets []float64, registry *prometheus.Registry) *EvidenceMetrics {
	em := &EvidenceMetrics{
		writesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evidence_writes_total",
				Help:      "Total number of evidence writes",
			},
			[]string{"backend", "result"},
		),
		writeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "evidence_write_duration_seconds",
				Help:      "Duration of evidence writes in seconds",
				Buckets:   buckets,
			},
			[]string{"backend"},
		),
		droppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evidence_dropped_total",
			Help:      "Total number of evidence records dropped because the buffer was full",
		}),
		prunedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evidence_pruned_total",
			Help:      "Total number of evidence records removed by retention",
		}),
	}
	registry.MustRegister(em.writesTotal, em.writeDuration, em.droppedTotal, em.prunedTotal)
	return em
}

// RecordWrite records one evidence write.
func (em *EvidenceMetrics) RecordWrite(backend, result string, duration time.Duration) {
	em.writesTotal.WithLabelValues(backend, result).Inc()
	em.writeDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

// RecordDropped records one dropped record.
func (em *EvidenceMetrics) RecordDropped() {
	em.droppedTotal.Inc()
}

// RecordPruned adds n pruned records.
func (em *EvidenceMetrics) RecordPruned(n int64) {
	em.prunedTotal.Add(float64(n))
}
