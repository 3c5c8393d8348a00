// Package server exposes the compliance engine over HTTP.
//
// # Routes
//
//	POST /v1/evaluations          evaluate a bot's nodes against its packs
//	GET  /v1/packs?tenant=        list packs visible to a tenant
//	GET  /v1/packs/{id}/{version} fetch one pack
//	GET  /v1/evidence             query evidence records (when storage is set)
//	GET  /v1/evidence/{id}        fetch one evidence record
//	GET  /healthz, /readyz        liveness and readiness probes
//	GET  /version                 build information
//	GET  /metrics                 Prometheus metrics (path configurable)
//
// Evaluation bodies are validated before they reach the engine. Field
// failures are returned as a map keyed by the request field path:
//
//	{
//	    "error": "request validation failed",
//	    "code": "validation_failed",
//	    "fields": {"evaluationRequest.Nodes[0].NodeID": "NodeID is required"}
//	}
//
// Evaluations are rate limited per tenant when server.rate_limit is set;
// rejected requests get 429 with a Retry-After header. Requests that pin
// packs without a tenant share one bucket.
//
// With server.tls enabled the listener serves HTTPS and re-reads the key
// pair whenever the files change, keeping the old pair if the new one does
// not load. Setting client_ca_file requires client certificates.
//
// # Usage
//
//	srv, err := server.New(&cfg.Server, server.Deps{
//	    Evaluator: svc,
//	    Packs:     registry,
//	    Evidence:  store,
//	    Health:    checker,
//	    Metrics:   collector.Handler(),
//	    Tracer:    tracer,
//	}, logger)
//	if err != nil {
//	    return err
//	}
//	return srv.Start(ctx)
//
// Start blocks until ctx is cancelled, then drains in-flight requests for
// up to ServerConfig.ShutdownTimeout.
package server
