// Package health implements the liveness and readiness probes of the
// compliance service.
//
// Liveness only reports that the process is up. Readiness runs the checks
// registered by the components: the pack registry must hold at least one
// pack, and the evidence store must answer a ping.
//
//	checker := health.New(2 * time.Second)
//	checker.RegisterCheck("packs", health.PackRegistryCheck(registry.Count))
//	checker.RegisterCheck("evidence", health.PingCheck("sqlite", store))
//
//	router.Get("/healthz", checker.LivenessHandler())
//	router.Get("/readyz", checker.ReadinessHandler())
package health
