// Package store provides SQLite-backed durable storage for the scenario
// ledger.
//
// The store holds four tables:
//   - runs: one row per generation run, ordered by insertion seq
//   - entries: the current ledger entry of every scenario ever registered
//   - events: the append-only status history, keyed by logical seq
//   - impacts: classified before/after behavior changes, one per feature
//
// # Ordering
//
// Every read carries an explicit ORDER BY on logical columns (seq,
// position, id COLLATE BINARY). Timestamps are stored for display only and
// never order anything.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Scenario ids are content-addressed by internal/ir; the store treats them
// as opaque keys.
package store
