package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"skuldbot/compliance/pkg/config"
)

// DefaultNamespace is used when the configuration leaves Namespace empty.
const DefaultNamespace = "compliance"

// maxRuleCardinality bounds the number of distinct rule_id label values.
const maxRuleCardinality = 500

// overflowLabel replaces label values once the cardinality limit is reached.
const overflowLabel = "other"

// Collector is the entry point for all Prometheus metrics of the compliance
// engine. It owns metric registration and exposes one Record method per
// observable event.
//
// A nil *Collector is valid and records nothing, so components can take an
// optional collector without guarding every call.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	evaluationMetrics *EvaluationMetrics
	packMetrics       *PackMetrics
	evidenceMetrics   *EvidenceMetrics

	ruleLimiter *CardinalityLimiter
}

// NewCollector creates a collector registered against registry. A nil
// registry gets a fresh one; a nil cfg uses the defaults.
//
// Example:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	mux.Handle("/metrics", collector.Handler())
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if cfg == nil {
		cfg = &config.MetricsConfig{Enabled: true}
	}
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = DefaultNamespace
	}
	buckets := cfg.DurationBuckets
	if len(buckets) == 0 {
		buckets = DefaultDurationBuckets
	}

	return &Collector{
		config:            cfg,
		registry:          registry,
		evaluationMetrics: NewEvaluationMetrics(namespace, buckets, registry),
		packMetrics:       NewPackMetrics(namespace, registry),
		evidenceMetrics:   NewEvidenceMetrics(namespace, buckets, registry),
		ruleLimiter:       NewCardinalityLimiter(maxRuleCardinality),
	}
}

func (c *Collector) enabled() bool {
	return c != nil && c.config.Enabled
}

// RecordEvaluation records one completed evaluation.
//
// Parameters:
//   - phase: "compile" or "runtime"
//   - passed: whether the evaluation produced no blocks
//   - duration: wall time spent in the engine
func (c *Collector) RecordEvaluation(phase string, passed bool, duration time.Duration) {
	if !c.enabled() {
		return
	}
	c.evaluationMetrics.RecordEvaluation(phase, passed, duration)
}

// RecordEvaluationError records an evaluation that was rejected before
// producing a result.
func (c *Collector) RecordEvaluationError(phase, reason string) {
	if !c.enabled() {
		return
	}
	c.evaluationMetrics.RecordError(phase, reason)
}

// RecordViolation records a single block or warning.
func (c *Collector) RecordViolation(kind, severity, ruleID string) {
	if !c.enabled() {
		return
	}
	if !c.ruleLimiter.Allow(ruleID) {
		ruleID = overflowLabel
	}
	c.evaluationMetrics.RecordViolation(kind, severity, ruleID)
}

// RecordInjectedControl records a control injected into a node.
func (c *Collector) RecordInjectedControl(control string) {
	if !c.enabled() {
		return
	}
	c.evaluationMetrics.RecordInjectedControl(control)
}

// RecordApprovals records the number of approval requests an evaluation raised.
func (c *Collector) RecordApprovals(n int) {
	if !c.enabled() || n <= 0 {
		return
	}
	c.evaluationMetrics.RecordApprovals(n)
}

// SetPacksRegistered updates the gauge of registered pack versions.
func (c *Collector) SetPacksRegistered(n int) {
	if !c.enabled() {
		return
	}
	c.packMetrics.SetRegistered(n)
}

// RecordPackRegistration records the outcome of registering a pack.
// A nil err counts as "accepted".
func (c *Collector) RecordPackRegistration(err error) {
	if !c.enabled() {
		return
	}
	result := "accepted"
	if err != nil {
		result = "rejected"
	}
	c.packMetrics.RecordRegistration(result)
}

// RecordPackReload records a reload triggered by the file watcher or a git sync.
func (c *Collector) RecordPackReload(source string, err error) {
	if !c.enabled() {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	c.packMetrics.RecordReload(source, result)
}

// RecordEvidenceWrite records an evidence write against backend.
func (c *Collector) RecordEvidenceWrite(backend string, duration time.Duration, err error) {
	if !c.enabled() {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	c.evidenceMetrics.RecordWrite(backend, result, duration)
}

// RecordEvidenceDropped records evidence discarded because the async buffer was full.
func (c *Collector) RecordEvidenceDropped() {
	if !c.enabled() {
		return
	}
	c.evidenceMetrics.RecordDropped()
}

// RecordEvidencePruned records records removed by the retention pruner.
func (c *Collector) RecordEvidencePruned(n int64) {
	if !c.enabled() || n <= 0 {
		return
	}
	c.evidenceMetrics.RecordPruned(n)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label values per metric.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether value may be used as a label. Values already seen
// are always allowed; new values are allowed until the limit is reached.
func (cl *CardinalityLimiter) Allow(value string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[value]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	// Double-check after acquiring write lock
	if _, exists := cl.current[value]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}
	cl.current[value] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
