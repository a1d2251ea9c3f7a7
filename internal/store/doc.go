// Package store provides SQLite-backed durable storage for pass traces.
//
// The store is an append-only log with:
//   - Passes: one row per propagated trigger
//   - Executions: node pipeline runs within a pass, in execution order
//   - Errors: records reported on the kernel's error channel during a pass
//
// # Critical Patterns
//
// Logical Time
//   - All ordering uses seq INTEGER (the kernel's logical clock), never
//     timestamps
//   - MaxSeq lets a new kernel continue the stored sequence
//
// Deterministic Query Results
//   - Queries order by seq ASC, trigger_id COLLATE BINARY ASC, or by the
//     position within a pass
//
// Canonical Values
//   - Payloads and step outputs are stored as canonical JSON text (see
//     internal/canon), so a trace reads back byte-identical
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
