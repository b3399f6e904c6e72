// Package model defines the ledger's domain records and their state machines.
//
// All amounts are int64 counts of the smallest token unit. Records are plain
// values; persistence lives in internal/store and mutation rules in
// internal/ledger and internal/tracker.
package model

import "time"

// Vault is the per-owner custody account.
//
// TotalBalance == LockedBalance + AvailableBalance holds after every committed
// operation. Vaults are never deleted.
type Vault struct {
	ID               string    `json:"id"`
	Owner            string    `json:"owner"`
	VaultAddress     string    `json:"vault_address"`
	TokenMint        string    `json:"token_mint"`
	TotalBalance     int64     `json:"total_balance"`
	LockedBalance    int64     `json:"locked_balance"`
	AvailableBalance int64     `json:"available_balance"`
	TotalDeposited   int64     `json:"total_deposited"`
	TotalWithdrawn   int64     `json:"total_withdrawn"`
	Version          int64     `json:"version"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Balance returns the balance triple of the vault.
func (v Vault) Balance() Balance {
	return Balance{
		Total:     v.TotalBalance,
		Locked:    v.LockedBalance,
		Available: v.AvailableBalance,
	}
}

// Balance is the committed balance triple of a vault.
type Balance struct {
	Total     int64 `json:"total"`
	Locked    int64 `json:"locked"`
	Available int64 `json:"available"`
}

// Consistent reports whether total == locked + available with no negative field.
func (b Balance) Consistent() bool {
	return b.Total >= 0 && b.Locked >= 0 && b.Available >= 0 && b.Total == b.Locked+b.Available
}

// EventType is the closed set of vault event kinds.
type EventType string

const (
	EventDeposit           EventType = "deposit"
	EventWithdrawRequested EventType = "withdraw_requested"
	EventWithdrawConfirmed EventType = "withdraw_confirmed"
	EventWithdrawFailed    EventType = "withdraw_failed"
	EventLock              EventType = "lock"
	EventUnlock            EventType = "unlock"
	EventAdjustment        EventType = "adjustment"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case EventDeposit, EventWithdrawRequested, EventWithdrawConfirmed,
		EventWithdrawFailed, EventLock, EventUnlock, EventAdjustment:
		return true
	}
	return false
}

// VaultEvent is an immutable entry of the per-owner event history.
//
// Seq is the global append position assigned by the store; per-owner order is
// Seq order.
type VaultEvent struct {
	Seq       int64     `json:"seq"`
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	Type      EventType `json:"type"`
	Payload   Payload   `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

// TxType is the kind of on-chain transaction a record tracks.
type TxType string

const (
	TxDeposit  TxType = "deposit"
	TxWithdraw TxType = "withdraw"
	TxAdmin    TxType = "admin"
)

// Valid reports whether t is a known transaction type.
func (t TxType) Valid() bool {
	return t == TxDeposit || t == TxWithdraw || t == TxAdmin
}

// TransactionRecord tracks one on-chain transaction by signature.
type TransactionRecord struct {
	Signature    string    `json:"signature"`
	Owner        string    `json:"owner,omitempty"`
	Type         TxType    `json:"type"`
	Status       TxStatus  `json:"status"`
	Amount       int64     `json:"amount"`
	Slot         int64     `json:"slot,omitempty"`
	BlockTime    int64     `json:"block_time,omitempty"`
	Fee          int64     `json:"fee,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// WithdrawalTicket links a balance lock to the on-chain withdrawal that later
// resolves it.
type WithdrawalTicket struct {
	ID        string       `json:"id"`
	Owner     string       `json:"owner"`
	Amount    int64        `json:"amount"`
	Status    TicketStatus `json:"status"`
	Signature string       `json:"signature,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// CollateralLock is the amount an authorized program currently holds locked
// in an owner's vault.
type CollateralLock struct {
	Owner     string    `json:"owner"`
	Program   string    `json:"program"`
	Amount    int64     `json:"amount"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProgramStatus is the allow-list state of a program.
type ProgramStatus string

const (
	ProgramActive  ProgramStatus = "active"
	ProgramRemoved ProgramStatus = "removed"
)

// AuthorizedProgram is an allow-list row. Removal is soft.
type AuthorizedProgram struct {
	Program   string        `json:"program"`
	Status    ProgramStatus `json:"status"`
	AddedBy   string        `json:"added_by"`
	AddedAt   time.Time     `json:"added_at"`
	RemovedBy string        `json:"removed_by,omitempty"`
	RemovedAt *time.Time    `json:"removed_at,omitempty"`
}

// AuditEntry records a privileged mutation with before/after snapshots.
type AuditEntry struct {
	ID        string    `json:"id"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Target    string    `json:"target"`
	Before    Payload   `json:"before,omitempty"`
	After     Payload   `json:"after,omitempty"`
	Metadata  Payload   `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Discrepancy is a mismatch between the on-chain vault balance and the
// ledger's total balance, observed by the reconciliation poller.
type Discrepancy struct {
	ID              string    `json:"id"`
	Owner           string    `json:"owner"`
	OnchainBalance  int64     `json:"onchain_balance"`
	OffchainBalance int64     `json:"offchain_balance"`
	Discrepancy     int64     `json:"discrepancy"`
	ObservedAt      time.Time `json:"observed_at"`
}
