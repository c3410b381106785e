// Package store provides SQLite-backed durable storage for shiftrule.
//
// The database holds two tables:
//   - blobs: the persisted rule sets, one canonical JSON document per key
//   - events: an append-only audit log of responder events
//
// # Rule Blobs
//
// Each rule set is written whole on every mutation (RuleStore). The blob
// carries a domain-separated SHA-256 digest computed by ir.Digest; a blob
// whose digest does not verify is reported as *BlobError and treated by
// RuleStore.Load as absent.
//
// # Event Ordering
//
// Events are ordered by (session, seq). seq comes from the engine's logical
// clock, never from wall time, so two runs with the same inputs produce the
// same log.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store
