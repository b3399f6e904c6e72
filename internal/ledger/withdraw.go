package ledger

import (
	"context"
	"errors"

	"github.com/roach88/vaultledger/internal/audit"
	"github.com/roach88/vaultledger/internal/fault"
	"github.com/roach88/vaultledger/internal/model"
	"github.com/roach88/vaultledger/internal/store"
	"github.com/roach88/vaultledger/internal/tracker"
)

// Confirmation is a finalized on-chain withdrawal.
type Confirmation struct {
	Owner     string
	Signature string
	Amount    int64
	Slot      int64
	BlockTime int64
	Fee       int64
}

// RequestWithdrawal locks amount for a withdrawal the caller is about to
// submit on-chain.
//
// Fails with InsufficientFundsError when the available balance is below
// amount. The returned ticket stays locked until SubmitWithdrawal or
// CancelWithdrawal.
func (l *Ledger) RequestWithdrawal(ctx context.Context, owner string, amount int64) (model.WithdrawalTicket, error) {
	if err := validateOwner(owner); err != nil {
		return model.WithdrawalTicket{}, err
	}
	if err := validateAmount(amount); err != nil {
		return model.WithdrawalTicket{}, err
	}

	var ticket model.WithdrawalTicket
	err := l.mutate(ctx, "request withdrawal", owner, func(ctx context.Context, q *store.Queries) error {
		v, err := l.loadVault(ctx, q, owner)
		if err != nil {
			return err
		}
		if v.AvailableBalance < amount {
			return fault.InsufficientFunds(owner, amount, v.AvailableBalance)
		}

		if err := moveToLocked(&v, amount); err != nil {
			return err
		}
		if _, err := l.saveVault(ctx, q, v); err != nil {
			return err
		}

		now := l.clock.Now()
		ticket = model.WithdrawalTicket{
			ID:        l.ids.Generate(),
			Owner:     owner,
			Amount:    amount,
			Status:    model.TicketLocked,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := q.InsertTicket(ctx, ticket); err != nil {
			return err
		}

		_, err = l.events.Append(ctx, q, owner, model.EventLock, model.Payload{
			"amount":    amount,
			"ticket_id": ticket.ID,
		})
		return err
	})
	if err != nil {
		return model.WithdrawalTicket{}, err
	}

	l.logger.Info("withdrawal requested", "owner", owner, "amount", amount, "ticket_id", ticket.ID)
	return ticket, nil
}

// SubmitWithdrawal binds the on-chain signature of a submitted withdrawal to
// its ticket and registers the pending transaction record.
//
// Repeating the call with the same signature returns the ticket unchanged.
func (l *Ledger) SubmitWithdrawal(ctx context.Context, owner, ticketID, signature string) (model.WithdrawalTicket, error) {
	if err := validateOwner(owner); err != nil {
		return model.WithdrawalTicket{}, err
	}
	if err := validateSignature(signature); err != nil {
		return model.WithdrawalTicket{}, err
	}

	var ticket model.WithdrawalTicket
	err := l.mutateSigned(ctx, "submit withdrawal", owner, signature, func(ctx context.Context, q *store.Queries) error {
		t, err := l.loadTicket(ctx, q, owner, ticketID)
		if err != nil {
			return err
		}
		if t.Status == model.TicketSubmitted && t.Signature == signature {
			ticket = t
			return nil
		}
		if t.Status != model.TicketLocked {
			return fault.Conflict("ticket %s is %s", t.ID, t.Status).WithOwner(owner).WithSignature(signature)
		}

		if _, err := l.tracker.BeginTx(ctx, q, signature, model.TxWithdraw, owner, t.Amount); err != nil {
			if fault.IsDuplicateSignature(err) {
				return fault.DuplicateSignature(signature).WithOwner(owner)
			}
			return err
		}

		t.Status = model.TicketSubmitted
		t.Signature = signature
		t.UpdatedAt = l.clock.Now()
		if err := q.UpdateTicket(ctx, t, model.TicketLocked); err != nil {
			return err
		}

		// Balances are unchanged; the save stamps updated_at and bumps the
		// version of the vault the submission touched.
		v, err := l.loadVault(ctx, q, owner)
		if err != nil {
			return err
		}
		if _, err := l.saveVault(ctx, q, v); err != nil {
			return err
		}

		if _, err := l.events.Append(ctx, q, owner, model.EventWithdrawRequested, model.Payload{
			"amount":    t.Amount,
			"signature": signature,
			"ticket_id": t.ID,
		}); err != nil {
			return err
		}
		ticket = t
		return nil
	})
	if err != nil {
		return model.WithdrawalTicket{}, err
	}

	l.logger.Info("withdrawal submitted", "owner", owner, "ticket_id", ticket.ID, "signature", signature)
	return ticket, nil
}

// ConfirmWithdrawal settles a submitted withdrawal: the locked amount leaves
// the vault.
//
// The record must be a pending withdrawal of owner for exactly amount.
// Confirming a terminal record, or an amount the vault does not hold locked,
// is InvalidStateError and changes nothing.
func (l *Ledger) ConfirmWithdrawal(ctx context.Context, c Confirmation) (model.Vault, error) {
	if err := validateOwner(c.Owner); err != nil {
		return model.Vault{}, err
	}
	if err := validateSignature(c.Signature); err != nil {
		return model.Vault{}, err
	}
	if err := validateAmount(c.Amount); err != nil {
		return model.Vault{}, err
	}
	if c.Fee < 0 {
		return model.Vault{}, fault.Validation("fee must not be negative, got %d", c.Fee)
	}

	var v model.Vault
	err := l.mutateSigned(ctx, "confirm withdrawal", c.Owner, c.Signature, func(ctx context.Context, q *store.Queries) error {
		var err error
		if v, err = l.loadVault(ctx, q, c.Owner); err != nil {
			return err
		}

		rec, err := l.withdrawalRecord(ctx, q, c.Owner, c.Signature)
		if err != nil {
			return err
		}
		if rec.Status.Terminal() {
			return fault.InvalidState("withdrawal is already %s", rec.Status).WithOwner(c.Owner).WithSignature(c.Signature)
		}
		if rec.Amount != c.Amount {
			return fault.InvalidState("confirmed amount %d differs from locked amount %d", c.Amount, rec.Amount).
				WithOwner(c.Owner).WithSignature(c.Signature)
		}
		if v.LockedBalance < c.Amount {
			return fault.InvalidState("locked balance %d below withdrawal amount %d", v.LockedBalance, c.Amount).
				WithOwner(c.Owner).WithSignature(c.Signature)
		}

		if _, err := l.tracker.CompleteTx(ctx, q, c.Signature, tracker.Outcome{
			Status:    model.TxConfirmed,
			Slot:      c.Slot,
			BlockTime: c.BlockTime,
			Fee:       c.Fee,
		}); err != nil {
			return err
		}

		if err := add(&v.LockedBalance, -c.Amount, "locked balance"); err != nil {
			return err
		}
		if err := add(&v.TotalBalance, -c.Amount, "total balance"); err != nil {
			return err
		}
		if err := add(&v.TotalWithdrawn, c.Amount, "total withdrawn"); err != nil {
			return err
		}
		if v, err = l.saveVault(ctx, q, v); err != nil {
			return err
		}

		ticketID, err := l.settleTicket(ctx, q, c.Signature, model.TicketConfirmed)
		if err != nil {
			return err
		}

		payload := model.Payload{
			"amount":    c.Amount,
			"signature": c.Signature,
			"slot":      c.Slot,
			"fee":       c.Fee,
		}
		if ticketID != "" {
			payload["ticket_id"] = ticketID
		}
		_, err = l.events.Append(ctx, q, c.Owner, model.EventWithdrawConfirmed, payload)
		return err
	})
	if err != nil {
		return model.Vault{}, err
	}

	l.logger.Info("withdrawal confirmed", "owner", c.Owner, "signature", c.Signature, "amount", c.Amount, "fee", c.Fee)
	return v, nil
}

// FailWithdrawal settles a withdrawal that failed on-chain: its locked
// amount returns to the available balance.
//
// A record that already failed returns the current vault unchanged. A record
// that was confirmed is InvalidStateError.
func (l *Ledger) FailWithdrawal(ctx context.Context, owner, signature, errorMessage string) (model.Vault, error) {
	if err := validateOwner(owner); err != nil {
		return model.Vault{}, err
	}
	if err := validateSignature(signature); err != nil {
		return model.Vault{}, err
	}

	var (
		v       model.Vault
		amount  int64
		applied bool
	)
	err := l.mutateSigned(ctx, "fail withdrawal", owner, signature, func(ctx context.Context, q *store.Queries) error {
		var err error
		if v, err = l.loadVault(ctx, q, owner); err != nil {
			return err
		}

		rec, err := l.withdrawalRecord(ctx, q, owner, signature)
		if err != nil {
			return err
		}
		switch rec.Status {
		case model.TxFailed:
			return nil
		case model.TxConfirmed:
			return fault.InvalidState("withdrawal is already confirmed").WithOwner(owner).WithSignature(signature)
		}
		amount = rec.Amount

		if _, err := l.tracker.CompleteTx(ctx, q, signature, tracker.Outcome{
			Status:       model.TxFailed,
			ErrorMessage: errorMessage,
		}); err != nil {
			return err
		}

		if err := add(&v.LockedBalance, -amount, "locked balance"); err != nil {
			return err
		}
		if err := add(&v.AvailableBalance, amount, "available balance"); err != nil {
			return err
		}
		if v, err = l.saveVault(ctx, q, v); err != nil {
			return err
		}

		ticketID, err := l.settleTicket(ctx, q, signature, model.TicketFailed)
		if err != nil {
			return err
		}

		payload := model.Payload{
			"amount":    amount,
			"signature": signature,
			"error":     errorMessage,
		}
		if ticketID != "" {
			payload["ticket_id"] = ticketID
		}
		if _, err := l.events.Append(ctx, q, owner, model.EventWithdrawFailed, payload); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return model.Vault{}, err
	}

	if applied {
		l.logger.Info("withdrawal failed", "owner", owner, "signature", signature, "amount", amount, "error", errorMessage)
	} else {
		l.logger.Info("withdrawal already failed", "owner", owner, "signature", signature)
	}
	return v, nil
}

// CancelWithdrawal releases the lock of a ticket that was never submitted.
//
// Only locked tickets can be cancelled; once a signature is bound the
// transaction outcome decides. Cancelling a cancelled ticket is a no-op.
func (l *Ledger) CancelWithdrawal(ctx context.Context, owner, ticketID, reason, actor string) (model.WithdrawalTicket, error) {
	if err := validateOwner(owner); err != nil {
		return model.WithdrawalTicket{}, err
	}
	if reason == "" {
		return model.WithdrawalTicket{}, fault.Validation("reason is required")
	}
	if actor == "" {
		return model.WithdrawalTicket{}, fault.Validation("actor is required")
	}

	var (
		ticket        model.WithdrawalTicket
		before, after model.Vault
		applied       bool
	)
	err := l.mutate(ctx, "cancel withdrawal", owner, func(ctx context.Context, q *store.Queries) error {
		t, err := l.loadTicket(ctx, q, owner, ticketID)
		if err != nil {
			return err
		}
		switch t.Status {
		case model.TicketCancelled:
			ticket = t
			return nil
		case model.TicketLocked:
		default:
			return fault.Conflict("ticket %s is %s", t.ID, t.Status).WithOwner(owner)
		}

		if before, err = l.loadVault(ctx, q, owner); err != nil {
			return err
		}
		v := before
		if err := add(&v.LockedBalance, -t.Amount, "locked balance"); err != nil {
			return err
		}
		if err := add(&v.AvailableBalance, t.Amount, "available balance"); err != nil {
			return err
		}
		if after, err = l.saveVault(ctx, q, v); err != nil {
			return err
		}

		t.Status = model.TicketCancelled
		t.UpdatedAt = l.clock.Now()
		if err := q.UpdateTicket(ctx, t, model.TicketLocked); err != nil {
			return err
		}

		if _, err := l.events.Append(ctx, q, owner, model.EventUnlock, model.Payload{
			"amount":    t.Amount,
			"ticket_id": t.ID,
			"reason":    reason,
		}); err != nil {
			return err
		}
		ticket = t
		applied = true
		return nil
	})
	if err != nil {
		return model.WithdrawalTicket{}, err
	}
	if !applied {
		return ticket, nil
	}

	l.logger.Info("withdrawal cancelled", "owner", owner, "ticket_id", ticket.ID, "amount", ticket.Amount, "reason", reason)
	l.recorder.Record(ctx, model.AuditEntry{
		Actor:    actor,
		Action:   audit.ActionCancelWithdrawal,
		Target:   owner,
		Before:   balanceSnapshot(before),
		After:    balanceSnapshot(after),
		Metadata: model.Payload{"ticket_id": ticket.ID, "amount": ticket.Amount, "reason": reason},
	})
	return ticket, nil
}

func (l *Ledger) loadTicket(ctx context.Context, q *store.Queries, owner, ticketID string) (model.WithdrawalTicket, error) {
	t, err := q.GetTicket(ctx, ticketID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.WithdrawalTicket{}, fault.NotFound("no withdrawal ticket %q", ticketID).WithOwner(owner)
		}
		return model.WithdrawalTicket{}, err
	}
	if t.Owner != owner {
		return model.WithdrawalTicket{}, fault.Conflict("ticket %s belongs to another owner", ticketID).WithOwner(owner)
	}
	return t, nil
}

// withdrawalRecord returns the transaction record of a withdrawal by owner.
func (l *Ledger) withdrawalRecord(ctx context.Context, q *store.Queries, owner, signature string) (model.TransactionRecord, error) {
	rec, err := l.tracker.GetTx(ctx, q, signature)
	if err != nil {
		return model.TransactionRecord{}, err
	}
	if rec.Type != model.TxWithdraw || rec.Owner != owner {
		return model.TransactionRecord{}, fault.Conflict("signature is recorded as %s for %q", rec.Type, rec.Owner).
			WithOwner(owner).WithSignature(signature)
	}
	return rec, nil
}

// settleTicket moves the submitted ticket bound to signature to status and
// returns its id. Withdrawals begun without a ticket return "".
func (l *Ledger) settleTicket(ctx context.Context, q *store.Queries, signature string, status model.TicketStatus) (string, error) {
	t, err := q.GetTicketBySignature(ctx, signature)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	if !t.Status.CanTransitionTo(status) {
		return "", fault.InvalidState("ticket %s is %s, cannot become %s", t.ID, t.Status, status).WithSignature(signature)
	}
	t.Status = status
	t.UpdatedAt = l.clock.Now()
	if err := q.UpdateTicket(ctx, t, model.TicketSubmitted); err != nil {
		return "", err
	}
	return t.ID, nil
}

// moveToLocked moves amount from available to locked.
func moveToLocked(v *model.Vault, amount int64) error {
	if err := add(&v.AvailableBalance, -amount, "available balance"); err != nil {
		return err
	}
	return add(&v.LockedBalance, amount, "locked balance")
}
