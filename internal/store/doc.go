// Package store provides SQLite-backed durable storage for render traces.
//
// The store is an append-only log with:
//   - Renders: one row per traced render session of a component
//   - Patches: every DOM write a directive performed during a session
//
// # Ordering
//
// Renders are ordered by their insertion seq and patches by the logical seq
// the recorder assigns, never by wall time, so traces of the same scenario
// compare equal across runs. Every list query ends in
// ORDER BY seq ASC, id ASC COLLATE BINARY (or render_id for patches).
//
// # Idempotency
//
// Writing a render with an existing id, or a patch with an existing
// (render_id, seq), is a no-op.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Patch values are stored as msgpack blobs next to the hash of their
// canonical encoding (see internal/trace).
package store
