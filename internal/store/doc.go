// Package store provides SQLite-backed durable storage for the vault ledger.
//
// Tables:
//   - vaults: one row per owner, balance triple plus lifetime counters
//   - vault_events: append-only per-owner event history keyed by global seq
//   - transaction_logs: on-chain transaction records keyed by signature
//   - withdrawal_tickets: locks awaiting an on-chain withdrawal outcome
//   - collateral_locks: amounts held by authorized programs
//   - authorized_programs: allow-list with soft removal
//   - audit_entries, reconciliation_logs: write-mostly records
//
// # Atomic Units
//
// A balance mutation, the transaction-record transition it depends on and the
// event it produces are written through one *Queries obtained from WithTx.
// Either all of them commit or none do.
//
// # Guarded Writes
//
//   - vault updates carry the version that was read; a mismatch is ErrStale
//   - transaction completion only matches pending rows
//   - ticket updates only match the expected prior status
//
// # Deterministic Reads
//
// Listings order by seq, or by created_at with id as tiebreaker, and return
// empty slices rather than nil.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
