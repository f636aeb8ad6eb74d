// Package store provides SQLite-backed persistence for canonical lowered
// scene forms.
//
// Lowering a scene is the expensive step of the compile pipeline, and its
// output is deterministic for a given source text. The store keys each
// lowered form by (scene_id, source_hash) so a restart, or a second process
// pointed at the same database, skips straight to the canonical form
// without re-lowering. Source hashes use SHA-256 with domain separation
// (see the scene package), so a hit can never serve text lowered from
// different source.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: enforce referential integrity
//
// The connection pool is capped at a single connection because SQLite
// allows only one writer at a time; the cap avoids SQLITE_BUSY churn.
package store
