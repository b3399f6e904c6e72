// Package harness runs ledger scenarios described in YAML and compares their
// traces against golden files.
//
// # Scenario Format
//
//	name: confirm_withdrawal
//	description: "Confirmed withdrawal leaves the vault"
//	setup:
//	  - op: deposit
//	    args: { owner: owner_a, signature: sig1, amount: 1000,
//	            vault_address: vault_a, token_mint: mint }
//	flow:
//	  - op: request_withdrawal
//	    args: { owner: owner_a, amount: 300 }
//	    as: t1
//	    expect:
//	      balance: { total: 1000, locked: 300, available: 700 }
//	  - op: submit_withdrawal
//	    args: { owner: owner_a, ticket: t1, signature: sig2 }
//	assertions:
//	  - type: event_order
//	    owner: owner_a
//	    events: [deposit, lock, withdraw_requested]
//	  - type: final_state
//	    table: transaction_logs
//	    where: { signature: sig2 }
//	    expect: { status: pending }
//
// String arguments are resolved through aliases: owner_a..owner_c,
// vault_a..vault_c, mint, program and sig1..sig12 name the testutil
// fixtures, and a step's "as" binds the ticket it returns. Traces and
// golden files show aliases rather than raw values.
//
// # Operations
//
//	open, deposit, observe_deposit, reject_deposit,
//	request_withdrawal, submit_withdrawal, confirm_withdrawal,
//	fail_withdrawal, cancel_withdrawal,
//	lock_collateral, unlock_collateral, adjust,
//	add_program, remove_program
//
// A step without expect must succeed. expect.error names the fault code the
// step must fail with; expect.balance is the owner's balance afterwards.
//
// # Assertion Types
//
//   - event_order: the owner's history is exactly the listed event types
//   - event_count: the owner has exactly N events of one type
//   - final_state: queries a table and verifies expected column values
//   - consistent: replays history and compares it with the stored balances
//
// # Deterministic Testing
//
// Every run uses a fresh in-memory SQLite database, testutil's
// DeterministicClock and SequenceIDGenerator. Golden snapshots omit ids and
// timestamps altogether.
package harness
