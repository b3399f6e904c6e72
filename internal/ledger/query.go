package ledger

import (
	"context"
	"errors"
	"iter"
	"time"

	"github.com/roach88/vaultledger/internal/eventlog"
	"github.com/roach88/vaultledger/internal/fault"
	"github.com/roach88/vaultledger/internal/model"
	"github.com/roach88/vaultledger/internal/store"
)

// Balance returns owner's committed balance triple.
func (l *Ledger) Balance(ctx context.Context, owner string) (model.Balance, error) {
	v, err := l.Vault(ctx, owner)
	if err != nil {
		return model.Balance{}, err
	}
	return v.Balance(), nil
}

// Vault returns owner's committed vault.
func (l *Ledger) Vault(ctx context.Context, owner string) (model.Vault, error) {
	v, err := l.store.GetVault(ctx, owner)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Vault{}, fault.NotFound("no vault").WithOwner(owner)
		}
		return model.Vault{}, l.translate("get vault", owner, err)
	}
	return v, nil
}

// Vaults returns every vault ordered by owner.
func (l *Ledger) Vaults(ctx context.Context) ([]model.Vault, error) {
	vaults, err := l.store.ListVaults(ctx)
	if err != nil {
		return nil, l.translate("list vaults", "", err)
	}
	return vaults, nil
}

// TotalValueLocked is the sum of every vault's total balance.
func (l *Ledger) TotalValueLocked(ctx context.Context) (int64, error) {
	tvl, err := l.store.TotalValueLocked(ctx)
	if err != nil {
		return 0, l.translate("total value locked", "", err)
	}
	return tvl, nil
}

// Events yields owner's events after seq since, in commit order.
func (l *Ledger) Events(ctx context.Context, owner string, since int64) iter.Seq2[model.VaultEvent, error] {
	return l.events.ListByOwner(ctx, owner, since)
}

// Verify audits owner's stored balances against the replayed event history.
func (l *Ledger) Verify(ctx context.Context, owner string) (eventlog.Report, error) {
	report, err := l.events.Audit(ctx, owner)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return eventlog.Report{}, fault.NotFound("no vault").WithOwner(owner)
		}
		return eventlog.Report{}, l.translate("verify", owner, err)
	}
	if !report.OK() {
		l.logger.Error("vault failed consistency audit", "owner", owner, "issues", report.Issues)
	}
	return report, nil
}

// Transaction returns the record for signature.
func (l *Ledger) Transaction(ctx context.Context, signature string) (model.TransactionRecord, error) {
	return l.tracker.Get(ctx, signature)
}

// History returns owner's transaction records, newest first.
func (l *Ledger) History(ctx context.Context, owner string, limit, offset int) ([]model.TransactionRecord, error) {
	return l.tracker.ListByOwner(ctx, owner, limit, offset)
}

// PendingTransactions returns up to limit pending records, oldest first.
func (l *Ledger) PendingTransactions(ctx context.Context, limit int) ([]model.TransactionRecord, error) {
	return l.tracker.ListPending(ctx, limit)
}

// Ticket returns a withdrawal ticket by id.
func (l *Ledger) Ticket(ctx context.Context, id string) (model.WithdrawalTicket, error) {
	t, err := l.store.GetTicket(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.WithdrawalTicket{}, fault.NotFound("no withdrawal ticket %q", id)
		}
		return model.WithdrawalTicket{}, l.translate("get ticket", "", err)
	}
	return t, nil
}

// Tickets returns owner's withdrawal tickets, oldest first.
func (l *Ledger) Tickets(ctx context.Context, owner string) ([]model.WithdrawalTicket, error) {
	tickets, err := l.store.ListTicketsByOwner(ctx, owner)
	if err != nil {
		return nil, l.translate("list tickets", owner, err)
	}
	return tickets, nil
}

// StaleTickets returns up to limit tickets still locked after ttl.
func (l *Ledger) StaleTickets(ctx context.Context, ttl time.Duration, limit int) ([]model.WithdrawalTicket, error) {
	tickets, err := l.store.ListTicketsByStatus(ctx, model.TicketLocked, l.clock.Now().Add(-ttl), limit)
	if err != nil {
		return nil, l.translate("list stale tickets", "", err)
	}
	return tickets, nil
}

// CollateralLocks returns the non-zero program locks on owner's vault.
func (l *Ledger) CollateralLocks(ctx context.Context, owner string) ([]model.CollateralLock, error) {
	locks, err := l.store.ListCollateralLocks(ctx, owner)
	if err != nil {
		return nil, l.translate("list collateral locks", owner, err)
	}
	return locks, nil
}

// AuditTrail returns audit entries for target, all targets when empty.
func (l *Ledger) AuditTrail(ctx context.Context, target string, limit int) ([]model.AuditEntry, error) {
	entries, err := l.store.ListAudit(ctx, target, limit)
	if err != nil {
		return nil, l.translate("list audit", target, err)
	}
	return entries, nil
}

// RecordDiscrepancy stores an observed mismatch between the on-chain balance
// and owner's total balance. Balances are not touched.
func (l *Ledger) RecordDiscrepancy(ctx context.Context, owner string, onchain, offchain int64) (model.Discrepancy, error) {
	d := model.Discrepancy{
		ID:              l.ids.Generate(),
		Owner:           owner,
		OnchainBalance:  onchain,
		OffchainBalance: offchain,
		Discrepancy:     onchain - offchain,
		ObservedAt:      l.clock.Now(),
	}
	if err := l.store.InsertDiscrepancy(ctx, d); err != nil {
		return model.Discrepancy{}, l.translate("record discrepancy", owner, err)
	}
	return d, nil
}

// Discrepancies returns recorded mismatches for owner, all owners when
// empty, newest first.
func (l *Ledger) Discrepancies(ctx context.Context, owner string, limit int) ([]model.Discrepancy, error) {
	out, err := l.store.ListDiscrepancies(ctx, owner, limit)
	if err != nil {
		return nil, l.translate("list discrepancies", owner, err)
	}
	return out, nil
}
