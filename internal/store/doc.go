// Package store provides SQLite-backed durable storage for the Darkroom
// snapshot log and everything sealed alongside it.
//
// The store holds:
//   - Snapshots: the append-only, hash-chained collection log
//   - Task metrics: count-only rows for the structural engine
//   - Seal record: the single time-lock record (at most one row)
//   - Protocol registry: definitions plus the frozen/freeze-hash state
//   - Analysis runs: the append-only log of executed analyses
//
// # Critical patterns
//
// Single total order: snapshots are appended inside a transaction that reads
// the current chain head, so the chain has exactly one order regardless of
// caller concurrency.
//
// Content gating: any read that returns snapshot payloads or analysis result
// payloads passes through the ContentGate. The gate is implemented by the
// seal manager, so the blind-period check lives inside the store rather than
// in caller convention. Chain verification hashes payload bytes without
// returning them and is therefore not a content read.
//
// All content-addressed hashes are computed in internal/model using RFC 8785
// canonical JSON and SHA-256 with domain separation.
//
// # Database configuration
//
//   - WAL mode: concurrent metadata reads during appends
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: enforce referential integrity
package store
