// Package service is the entry point used by the CLI and the HTTP API to
// evaluate a bot.
//
// A request names a tenant and either pinned pack references or nothing,
// in which case the tenant's bound packs are used. The service resolves
// the composite from the registry, runs the evaluator (usually through an
// engine.Pool), records metrics and a span, and hands the result to the
// evidence recorder. The returned Evaluation carries the engine result and
// the manifest's compliance section.
package service
