// Package telemetry groups the observability packages of the compliance
// service.
//
//   - logging: structured slog logging with secret and PII redaction
//   - metrics: Prometheus metrics for evaluations, packs and evidence
//   - tracing: OpenTelemetry tracing exported over OTLP gRPC
//   - health: liveness and readiness probes
//
// Each subpackage is configured from the matching section of
// config.TelemetryConfig and wired together in cmd/compliance.
package telemetry
