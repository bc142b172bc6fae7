// Package store provides SQLite-backed durable storage for traced
// computations.
//
// The store keeps:
//   - Computations: canonical JSON IR keyed by ComputationID
//   - Computation intrinsics: which intrinsic URIs each body reaches
//   - Policy checks: recorded policy outcomes per computation
//
// # Invariants
//
// Content addressing
//   - A computation's id is the domain-separated SHA-256 of its canonical
//     JSON (RFC 8785), so writes are idempotent and reads re-verify the hash
//
// Logical time
//   - All ordering uses seq INTEGER (logical clock), never timestamps
//   - Listings use ORDER BY seq ASC, id ASC COLLATE BINARY
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
