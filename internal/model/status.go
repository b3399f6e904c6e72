package model

// TxStatus is the lifecycle state of a TransactionRecord.
type TxStatus string

const (
	TxPending   TxStatus = "pending"
	TxConfirmed TxStatus = "confirmed"
	TxFailed    TxStatus = "failed"
)

// Valid reports whether s is a known transaction status.
func (s TxStatus) Valid() bool {
	return s == TxPending || s == TxConfirmed || s == TxFailed
}

// Terminal reports whether s is final.
func (s TxStatus) Terminal() bool {
	return s == TxConfirmed || s == TxFailed
}

// CanTransitionTo reports whether pending → next is allowed.
// Terminal states never transition.
func (s TxStatus) CanTransitionTo(next TxStatus) bool {
	return s == TxPending && next.Terminal()
}

// TicketStatus is the lifecycle state of a WithdrawalTicket.
type TicketStatus string

const (
	TicketLocked    TicketStatus = "locked"
	TicketSubmitted TicketStatus = "submitted"
	TicketConfirmed TicketStatus = "confirmed"
	TicketFailed    TicketStatus = "failed"
	TicketCancelled TicketStatus = "cancelled"
)

var ticketTransitions = map[TicketStatus][]TicketStatus{
	TicketLocked:    {TicketSubmitted, TicketCancelled},
	TicketSubmitted: {TicketConfirmed, TicketFailed},
}

// Terminal reports whether s is final.
func (s TicketStatus) Terminal() bool {
	return s == TicketConfirmed || s == TicketFailed || s == TicketCancelled
}

// CanTransitionTo reports whether s → next is an allowed ticket transition.
func (s TicketStatus) CanTransitionTo(next TicketStatus) bool {
	for _, allowed := range ticketTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
