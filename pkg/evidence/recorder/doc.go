// Package recorder writes compliance evidence asynchronously.
//
// Record builds the manifest section for an evaluation, redacts secrets
// and personal data from violation messages, seals the section with a
// SHA-256 hash and enqueues the record. A single writer goroutine drains
// the queue into the configured evidence.Storage. Close drains whatever is
// still queued before returning.
//
// Verify recomputes a stored record's hash, so tampering with a stored
// section is detectable.
package recorder
