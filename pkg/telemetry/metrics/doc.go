// Package metrics provides Prometheus metrics for the compliance engine.
//
// # Metrics
//
//   - Evaluation metrics: evaluations by result and phase, latency,
//     violations by kind and severity, per-rule hits, injected controls
//     and approval requests
//   - Pack metrics: registered pack versions, registration outcomes and
//     reloads from the file watcher or git
//   - Evidence metrics: writes, write latency, dropped and pruned records
//
// All metric names are prefixed with MetricsConfig.Namespace, "compliance"
// by default.
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	collector.RecordEvaluation("compile", result.Passed, elapsed)
//	for _, v := range result.Blocks {
//		collector.RecordViolation(string(v.Kind), string(v.Severity), v.RuleID)
//	}
//
//	router.Handle("/metrics", collector.Handler())
//
// # Cardinality
//
// Rule identifiers come from tenant-authored packs, so the rule_id label is
// capped by a CardinalityLimiter. Values past the cap are reported as
// "other".
package metrics
