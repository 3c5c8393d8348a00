package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultDurationBuckets covers sub-millisecond evaluations up to ~1s.
var DefaultDurationBuckets = prometheus.ExponentialBuckets(0.0001, 2, 14)

// EvaluationMetrics tracks evaluation outcomes.
//
// Metrics:
//   - compliance_evaluations_total: evaluations by result and phase
//   - compliance_evaluation_errors_total: rejected evaluations by phase and reason
//   - compliance_evaluation_duration_seconds: engine latency by phase
//   - compliance_violations_total: blocks and warnings by kind and severity
//   - compliance_rule_hits_total: violations attributed to a rule
//   - compliance_injected_controls_total: injected controls by type
//   - compliance_approvals_required_total: approval requests raised
type EvaluationMetrics struct {
	evaluationsTotal   *prometheus.CounterVec
	errorsTotal        *prometheus.CounterVec
	evaluationDuration *prometheus.HistogramVec
	violationsTotal    *prometheus.CounterVec
	ruleHitsTotal      *prometheus.CounterVec
	controlsTotal      *prometheus.CounterVec
	approvalsTotal     prometheus.Counter
}

// NewEvaluationMetrics creates and registers evaluation metrics.
func NewEvaluationMetrics(namespace string, buckets []float64, registry *prometheus.Registry) *EvaluationMetrics {
	em := &EvaluationMetrics{
		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evaluations_total",
				Help:      "Total number of compliance evaluations",
			},
			[]string{"result", "phase"},
		),
		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evaluation_errors_total",
				Help:      "Total number of evaluations rejected before producing a result",
			},
			[]string{"phase", "reason"},
		),
		evaluationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of compliance evaluation in seconds",
				Buckets:   buckets,
			},
			[]string{"phase"},
		),
		violationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "violations_total",
				Help:      "Total number of blocks and warnings",
			},
			[]string{"kind", "severity"},
		),
		ruleHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rule_hits_total",
				Help:      "Total number of violations per rule",
			},
			[]string{"rule_id"},
		),
		controlsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "injected_controls_total",
				Help:      "Total number of controls injected into nodes",
			},
			[]string{"control"},
		),
		approvalsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "approvals_required_total",
				Help:      "Total number of approval requests raised",
			},
		),
	}

	registry.MustRegister(
		em.evaluationsTotal,
		em.errorsTotal,
		em.evaluationDuration,
		em.violationsTotal,
		em.ruleHitsTotal,
		em.controlsTotal,
		em.approvalsTotal,
	)
	return em
}

// RecordEvaluation records an evaluation outcome and its duration.
func (em *EvaluationMetrics) RecordEvaluation(phase string, passed bool, duration time.Duration) {
	result := "fail"
	if passed {
		result = "pass"
	}
	phase = phaseLabel(phase)
	em.evaluationsTotal.WithLabelValues(result, phase).Inc()
	em.evaluationDuration.WithLabelValues(phase).Observe(duration.Seconds())
}

// RecordError records a rejected evaluation.
func (em *EvaluationMetrics) RecordError(phase, reason string) {
	em.errorsTotal.WithLabelValues(phaseLabel(phase), reason).Inc()
}

// RecordViolation records one violation.
func (em *EvaluationMetrics) RecordViolation(kind, severity, ruleID string) {
	em.violationsTotal.WithLabelValues(kind, severity).Inc()
	em.ruleHitsTotal.WithLabelValues(ruleID).Inc()
}

// RecordInjectedControl records one injected control.
func (em *EvaluationMetrics) RecordInjectedControl(control string) {
	em.controlsTotal.WithLabelValues(control).Inc()
}

// RecordApprovals adds n approval requests.
func (em *EvaluationMetrics) RecordApprovals(n int) {
	em.approvalsTotal.Add(float64(n))
}

// phaseLabel normalizes an empty phase.
func phaseLabel(phase string) string {
	if phase == "" {
		return "compile"
	}
	return phase
}
