// Package tracing configures OpenTelemetry tracing for the compliance
// service.
//
// Spans are exported over OTLP gRPC to TracingConfig.Endpoint. The
// evaluator records one span per evaluation, with an event for every state
// it passes through (INIT, MATCH, RESOLVE_CONTROLS, RESOLVE_APPROVALS,
// CHECK_EGRESS_RETENTION, FINALIZE), so a trace shows where a slow or
// failing evaluation spent its time.
//
// # Usage
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, version)
//	if err != nil {
//		return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	router.Use(tracing.HTTPMiddleware(tracer))
//
// When tracing is disabled New returns a noop tracer and leaves the global
// provider untouched.
package tracing
