package eventlog

import (
	"context"
	"fmt"

	"github.com/roach88/vaultledger/internal/model"
	"github.com/roach88/vaultledger/internal/store"
)

// Totals are the balance counters derived by folding an owner's events.
type Totals struct {
	Total     int64 `json:"total"`
	Locked    int64 `json:"locked"`
	Available int64 `json:"available"`
	Deposited int64 `json:"deposited"`
	Withdrawn int64 `json:"withdrawn"`
	Adjusted  int64 `json:"adjusted"`
	Events    int   `json:"events"`
	LastSeq   int64 `json:"last_seq"`

	// Negative lists the seqs after which some balance went below zero.
	Negative []int64 `json:"negative,omitempty"`
}

// Apply folds one event into t.
func (t *Totals) Apply(e model.VaultEvent) error {
	switch e.Type {
	case model.EventAdjustment:
		delta, ok := e.Payload.Int("delta")
		if !ok {
			return fmt.Errorf("event %d: adjustment without delta", e.Seq)
		}
		t.Total += delta
		t.Available += delta
		t.Adjusted += delta
	default:
		amount, ok := e.Payload.Int("amount")
		if !ok {
			return fmt.Errorf("event %d: %s without amount", e.Seq, e.Type)
		}
		switch e.Type {
		case model.EventDeposit:
			t.Total += amount
			t.Available += amount
			t.Deposited += amount
		case model.EventWithdrawRequested:
			// The funds were locked when the ticket was created.
		case model.EventWithdrawConfirmed:
			t.Locked -= amount
			t.Total -= amount
			t.Withdrawn += amount
		case model.EventWithdrawFailed, model.EventUnlock:
			t.Locked -= amount
			t.Available += amount
		case model.EventLock:
			t.Available -= amount
			t.Locked += amount
		default:
			return fmt.Errorf("event %d: unknown type %q", e.Seq, e.Type)
		}
	}

	t.Events++
	t.LastSeq = e.Seq
	if t.Total < 0 || t.Locked < 0 || t.Available < 0 {
		t.Negative = append(t.Negative, e.Seq)
	}
	return nil
}

// Replay folds every event of owner into Totals. All pages are read from one
// snapshot, so a concurrent commit is either wholly included or absent.
func (l *Log) Replay(ctx context.Context, owner string) (Totals, error) {
	var t Totals
	err := l.store.WithTx(ctx, func(q *store.Queries) error {
		var err error
		t, err = l.ReplayTx(ctx, q, owner)
		return err
	})
	return t, err
}

// ReplayTx is Replay inside the caller's open transaction.
func (l *Log) ReplayTx(ctx context.Context, q *store.Queries, owner string) (Totals, error) {
	var t Totals
	cursor := int64(0)
	for {
		page, err := q.ListEvents(ctx, owner, cursor, l.pageSize)
		if err != nil {
			return Totals{}, fmt.Errorf("list events for %s: %w", owner, err)
		}
		for _, e := range page {
			if err := t.Apply(e); err != nil {
				return Totals{}, fmt.Errorf("replay %s: %w", owner, err)
			}
			cursor = e.Seq
		}
		if len(page) < l.pageSize {
			return t, nil
		}
	}
}

// Report is the outcome of a consistency audit of one vault.
type Report struct {
	Owner    string        `json:"owner"`
	Stored   model.Balance `json:"stored"`
	Replayed Totals        `json:"replayed"`
	Issues   []string      `json:"issues"`
}

// OK reports whether the audit found nothing.
func (r Report) OK() bool {
	return len(r.Issues) == 0
}

// Audit reads owner's vault row and replays its history in one transaction
// and compares the two. Returns store.ErrNotFound for an unknown owner.
func (l *Log) Audit(ctx context.Context, owner string) (Report, error) {
	var r Report
	err := l.store.WithTx(ctx, func(q *store.Queries) error {
		v, err := q.GetVault(ctx, owner)
		if err != nil {
			return err
		}
		replayed, err := l.ReplayTx(ctx, q, owner)
		if err != nil {
			return err
		}
		r = compare(v, replayed)
		return nil
	})
	return r, err
}

// Verify compares a caller-supplied vault row against its replayed history.
// Audit reads both sides from one snapshot.
func (l *Log) Verify(ctx context.Context, v model.Vault) (Report, error) {
	replayed, err := l.Replay(ctx, v.Owner)
	if err != nil {
		return Report{}, err
	}
	return compare(v, replayed), nil
}

// compare checks total = locked + available, total = deposited - withdrawn +
// adjusted, no balance ever negative, and every stored counter equal to its
// replayed value.
func compare(v model.Vault, replayed Totals) Report {
	r := Report{
		Owner:    v.Owner,
		Stored:   v.Balance(),
		Replayed: replayed,
		Issues:   []string{},
	}

	if v.TotalBalance != v.LockedBalance+v.AvailableBalance {
		r.Issues = append(r.Issues, fmt.Sprintf("total %d != locked %d + available %d",
			v.TotalBalance, v.LockedBalance, v.AvailableBalance))
	}
	if want := v.TotalDeposited - v.TotalWithdrawn + replayed.Adjusted; v.TotalBalance != want {
		r.Issues = append(r.Issues, fmt.Sprintf("total %d != deposited %d - withdrawn %d + adjusted %d",
			v.TotalBalance, v.TotalDeposited, v.TotalWithdrawn, replayed.Adjusted))
	}
	for _, seq := range replayed.Negative {
		r.Issues = append(r.Issues, fmt.Sprintf("negative balance after event %d", seq))
	}

	fields := []struct {
		name             string
		stored, replayed int64
	}{
		{"total_balance", v.TotalBalance, replayed.Total},
		{"locked_balance", v.LockedBalance, replayed.Locked},
		{"available_balance", v.AvailableBalance, replayed.Available},
		{"total_deposited", v.TotalDeposited, replayed.Deposited},
		{"total_withdrawn", v.TotalWithdrawn, replayed.Withdrawn},
	}
	for _, f := range fields {
		if f.stored != f.replayed {
			r.Issues = append(r.Issues, fmt.Sprintf("%s stored %d, replayed %d", f.name, f.stored, f.replayed))
		}
	}

	return r
}
