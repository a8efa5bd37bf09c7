// Package store provides SQLite-backed durable storage for call audit logs.
//
// Two append-only tables:
//   - calls: one row per intercepted call (member, canonical args)
//   - outcomes: at most one row per call (value or failure)
//
// All ordering uses the engine's logical seq, never timestamps, and every
// query ends in ORDER BY seq ASC, id COLLATE BINARY ASC so reads are
// identical across runs.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: An outcome always references a recorded call
//
// Arguments and results are stored as canonical JSON from package trace.
package store
