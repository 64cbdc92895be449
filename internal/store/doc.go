// Package store provides SQLite-backed durable storage for the vault ledger.
//
// The store holds:
//   - Vaults: keyed by id, indexed by owner and by (owner, status)
//   - Triggers: at most one per vault, time triggers indexed by target time
//   - Events: append-only, ordered by a global sequence id and indexed by
//     (resource id, id)
//   - Continuations: opaque pending-operation records keyed by vault id
//   - Disburse-escrow tasks: keyed by vault id, indexed by due time
//   - Sequences: named counters behind atomic fetch-and-increment
//   - Ledger config: a single row
//
// The store owns no business rules. Every inbound request runs inside one
// Update transaction, so all of its writes commit together or not at all.
//
// # Ordering
//
// Every list query carries an explicit ORDER BY on the primary key so
// results are identical across runs. Pagination is start-after exclusive.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Events are protected by SQL triggers that abort any UPDATE or DELETE.
package store
